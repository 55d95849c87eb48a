package transform

import (
	"context"
	"fmt"

	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// Transformer converts one source family into its target rows. Each
// implementation is statically bound to a single (sourceType, dataType)
// pair; output order preserves input order one-to-one.
type Transformer interface {
	SourceType() string
	DataType() string
	Transform(ctx context.Context, records []models.SourceRecord) ([]*models.TargetRecord, error)
}

// RecordError pins a transformation failure to an exact record.
type RecordError struct {
	SourceType string
	DataType   string
	Index      int
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s -> %s: record %d: %v", e.SourceType, e.DataType, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// mappingTransformer drives the field-mapping engine for one family.
type mappingTransformer struct {
	sourceType string
	dataType   string
	renames    map[string]string
	logger     *zap.Logger
}

func (t *mappingTransformer) SourceType() string { return t.sourceType }
func (t *mappingTransformer) DataType() string   { return t.dataType }

func (t *mappingTransformer) Transform(ctx context.Context, records []models.SourceRecord) ([]*models.TargetRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	p, err := planFor(t.sourceType, t.dataType, records[0].Schema(), t.renames, t.logger)
	if err != nil {
		return nil, err
	}

	out := make([]*models.TargetRecord, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, err := p.apply(rec, t.dataType)
		if err != nil {
			return nil, &RecordError{SourceType: t.sourceType, DataType: t.dataType, Index: i, Err: err}
		}
		out = append(out, target)
	}
	return out, nil
}

// Registry resolves the transformer for a source type. The mapping
// between source family and target table is 1:1.
type Registry struct {
	byType map[string]Transformer
}

// NewRegistry wires the three built-in families. The trade family renames
// trade_side to last_trade_side; the rename excludes trade_side from the
// name-match pass.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{byType: make(map[string]Transformer)}
	r.Register(&mappingTransformer{sourceType: models.TypeXbondQuote, dataType: models.TypeXbondQuote, logger: logger})
	r.Register(&mappingTransformer{
		sourceType: models.TypeXbondTrade,
		dataType:   models.TypeXbondTrade,
		renames:    map[string]string{"trade_side": "last_trade_side"},
		logger:     logger,
	})
	r.Register(&mappingTransformer{sourceType: models.TypeBondFutureQuote, dataType: models.TypeBondFutureQuote, logger: logger})
	return r
}

func (r *Registry) Register(t Transformer) {
	r.byType[t.SourceType()] = t
}

func (r *Registry) For(sourceType string) (Transformer, bool) {
	t, ok := r.byType[sourceType]
	return t, ok
}
