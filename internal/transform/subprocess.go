package transform

import (
	"context"
	"fmt"
	"sync"

	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Subprocess is the TRANSFORM stage: partition the extracted records by
// source type, run one transformer per non-empty group concurrently, and
// publish the combined target rows. The first transformer error cancels
// the pending groups and fails the stage with no partial output.
type Subprocess struct {
	registry *Registry
	logger   *zap.Logger
}

func NewSubprocess(registry *Registry, logger *zap.Logger) *Subprocess {
	return &Subprocess{registry: registry, logger: logger}
}

func (s *Subprocess) Type() etl.SubprocessType { return etl.SubprocessTransform }

func (s *Subprocess) ValidateContext(ec *etl.Context) error {
	if !ec.Has(etl.KeyExtractedData) {
		return etl.NewError(etl.KindConfig, etl.SubprocessTransform, ec.CurrentDate(), "extractedData missing from context", nil)
	}
	return nil
}

func (s *Subprocess) Execute(ctx context.Context, ec *etl.Context) (int, error) {
	date := ec.CurrentDate()
	records, _ := ec.ExtractedData()

	// Partition by source type, preserving input order within each group.
	groups := make(map[string][]models.SourceRecord)
	var typeOrder []string
	for _, rec := range records {
		st := rec.SourceType()
		if _, ok := groups[st]; !ok {
			typeOrder = append(typeOrder, st)
		}
		groups[st] = append(groups[st], rec)
	}

	if len(groups) == 0 {
		ec.SetTransformedData(nil)
		return 0, nil
	}

	for _, st := range typeOrder {
		if _, ok := s.registry.For(st); !ok {
			return 0, etl.NewError(etl.KindConfig, etl.SubprocessTransform, date,
				fmt.Sprintf("no transformer registered for source type %q", st), nil)
		}
	}

	var mu sync.Mutex
	outputs := make(map[string][]*models.TargetRecord, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range typeOrder {
		st := st
		group := groups[st]
		g.Go(func() error {
			t, _ := s.registry.For(st)
			rows, err := t.Transform(gctx, group)
			if err != nil {
				return err
			}
			mu.Lock()
			outputs[st] = rows
			mu.Unlock()
			s.logger.Info("transformer done",
				zap.String("source_type", st),
				zap.String("date", etl.FormatBusinessDate(date)),
				zap.Int("records", len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, etl.NewError(etl.KindTransformation, etl.SubprocessTransform, date, "transformation failed", err)
	}

	var combined []*models.TargetRecord
	for _, st := range typeOrder {
		combined = append(combined, outputs[st]...)
	}
	ec.SetTransformedData(combined)
	return len(combined), nil
}
