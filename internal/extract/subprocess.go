package extract

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Subprocess is the EXTRACT stage: build one extractor per configured
// source, fan them out concurrently, and merge their outputs into the
// context. The first extractor error cancels the siblings and fails the
// stage; no partial output is published.
type Subprocess struct {
	factory Factory
	logger  *zap.Logger
}

func NewSubprocess(logger *zap.Logger) *Subprocess {
	return &Subprocess{factory: NewExtractor, logger: logger}
}

// NewSubprocessWithFactory is used by tests to inject fake extractors.
func NewSubprocessWithFactory(factory Factory, logger *zap.Logger) *Subprocess {
	return &Subprocess{factory: factory, logger: logger}
}

func (s *Subprocess) Type() etl.SubprocessType { return etl.SubprocessExtract }

func (s *Subprocess) ValidateContext(ec *etl.Context) error {
	if ec.Config() == nil {
		return etl.NewError(etl.KindConfig, etl.SubprocessExtract, ec.CurrentDate(), "config missing from context", nil)
	}
	if ec.CurrentDate().IsZero() {
		return etl.NewError(etl.KindConfig, etl.SubprocessExtract, ec.CurrentDate(), "currentDate missing from context", nil)
	}
	return nil
}

func (s *Subprocess) Execute(ctx context.Context, ec *etl.Context) (int, error) {
	cfg := ec.Config()
	date := ec.CurrentDate()

	extractors := make([]Extractor, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		ex, err := s.factory(src, cfg.WorkDir, s.logger)
		if err != nil {
			return 0, factoryError(date, err)
		}
		extractors = append(extractors, ex)
	}
	if len(extractors) == 0 {
		ec.SetExtractedData(nil)
		return 0, nil
	}

	// Merge in completion order; downstream never relies on per-extractor
	// ordering.
	var mu sync.Mutex
	var merged []models.SourceRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(extractors), 2*runtime.GOMAXPROCS(0)))
	for _, ex := range extractors {
		ex := ex
		g.Go(func() error {
			records, err := s.runExtractor(gctx, ec, ex)
			if err != nil {
				return err
			}
			mu.Lock()
			merged = append(merged, records...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var terr *etl.Error
		if errors.As(err, &terr) {
			return 0, err
		}
		return 0, etl.NewError(etl.KindExtract, etl.SubprocessExtract, date, "extraction failed", err)
	}

	ec.SetExtractedData(merged)
	return len(merged), nil
}

// runExtractor drives one extractor through its lifecycle. Cleanup runs
// on every exit path.
func (s *Subprocess) runExtractor(ctx context.Context, ec *etl.Context, ex Extractor) ([]models.SourceRecord, error) {
	defer ex.Cleanup()

	if err := ex.Setup(ctx, ec); err != nil {
		return nil, err
	}
	if err := ex.ValidateSource(ec); err != nil {
		return nil, etl.NewError(etl.KindConfig, etl.SubprocessExtract, ec.CurrentDate(), "source validation failed", err)
	}

	records, err := ex.Extract(ctx, ec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("extractor done",
		zap.String("extractor", ex.Name()),
		zap.String("category", ex.Category()),
		zap.String("date", etl.FormatBusinessDate(ec.CurrentDate())),
		zap.Int("records", len(records)))
	return records, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
