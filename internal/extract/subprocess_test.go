package extract

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"go.uber.org/zap"
)

// fakeExtractor emits a fixed number of quotes, optionally failing or
// blocking until cancelled.
type fakeExtractor struct {
	name      string
	records   int
	err       error
	block     bool
	cleanups  *atomic.Int32
	cancelled *atomic.Int32
}

func (f *fakeExtractor) Name() string     { return f.name }
func (f *fakeExtractor) Category() string { return "fake" }

func (f *fakeExtractor) Setup(ctx context.Context, ec *etl.Context) error { return nil }
func (f *fakeExtractor) ValidateSource(ec *etl.Context) error             { return nil }

func (f *fakeExtractor) Extract(ctx context.Context, ec *etl.Context) ([]models.SourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.block {
		select {
		case <-ctx.Done():
			if f.cancelled != nil {
				f.cancelled.Add(1)
			}
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, fmt.Errorf("%s: cancellation never arrived", f.name)
		}
	}
	out := make([]models.SourceRecord, 0, f.records)
	for i := 0; i < f.records; i++ {
		q := models.NewXbondQuote()
		q.BusinessDate = "2026.01.05"
		q.ExchProductID = fmt.Sprintf("21%04d.IB", i)
		q.MQOffset = int64(i)
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeExtractor) Cleanup() {
	if f.cleanups != nil {
		f.cleanups.Add(1)
	}
}

func multiSourceConfig(n int) *config.Config {
	cfg := &config.Config{
		Targets: []config.TargetConfig{{Name: "t", Type: config.TypeColumnar, Properties: map[string]string{"url": "postgres://x"}}},
	}
	for i := 0; i < n; i++ {
		cfg.Sources = append(cfg.Sources, config.SourceConfig{
			Name:     fmt.Sprintf("src%d", i),
			Type:     config.TypeObjectStore,
			Category: config.CategoryAllPriceDepth,
		})
	}
	return cfg
}

func fakeFactory(extractors map[string]Extractor) Factory {
	return func(src config.SourceConfig, workDir string, logger *zap.Logger) (Extractor, error) {
		ex, ok := extractors[src.Name]
		if !ok {
			return nil, fmt.Errorf("no fake for %s", src.Name)
		}
		return ex, nil
	}
}

func TestExtractMergesAllSources(t *testing.T) {
	t.Parallel()

	var cleanups atomic.Int32
	extractors := map[string]Extractor{
		"src0": &fakeExtractor{name: "src0", records: 3, cleanups: &cleanups},
		"src1": &fakeExtractor{name: "src1", records: 5, cleanups: &cleanups},
		"src2": &fakeExtractor{name: "src2", records: 0, cleanups: &cleanups},
	}
	sub := NewSubprocessWithFactory(fakeFactory(extractors), zap.NewNop())

	ec := etl.NewContext(multiSourceConfig(3), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))
	count, err := sub.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 8 {
		t.Fatalf("count = %d, want sum of per-extractor counts 8", count)
	}
	if ec.ExtractedDataCount() != 8 {
		t.Fatalf("extractedDataCount = %d, want 8", ec.ExtractedDataCount())
	}
	if cleanups.Load() != 3 {
		t.Fatalf("cleanups = %d, want 3", cleanups.Load())
	}
}

func TestExtractFailFastCancelsSiblings(t *testing.T) {
	t.Parallel()

	var cleanups, cancelled atomic.Int32
	boom := etl.NewError(etl.KindTargetUnavailable, etl.SubprocessExtract,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local), "database unavailable", fmt.Errorf("refused"))
	extractors := map[string]Extractor{
		"src0": &fakeExtractor{name: "src0", block: true, cleanups: &cleanups, cancelled: &cancelled},
		"src1": &fakeExtractor{name: "src1", err: boom, cleanups: &cleanups},
		"src2": &fakeExtractor{name: "src2", block: true, cleanups: &cleanups, cancelled: &cancelled},
	}
	sub := NewSubprocessWithFactory(fakeFactory(extractors), zap.NewNop())

	ec := etl.NewContext(multiSourceConfig(3), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))
	_, err := sub.Execute(context.Background(), ec)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !etl.IsKind(err, etl.KindTargetUnavailable) {
		t.Fatalf("expected TargetUnavailable, got %v", err)
	}

	// No partial output on failure.
	if ec.Has(etl.KeyExtractedData) {
		t.Fatal("extractedData must not be published on failure")
	}
	if cancelled.Load() != 2 {
		t.Fatalf("cancelled siblings = %d, want 2", cancelled.Load())
	}
	if cleanups.Load() != 3 {
		t.Fatalf("cleanups = %d, want 3 (cleanup guaranteed on failure)", cleanups.Load())
	}
}

func TestExtractRunsConcurrently(t *testing.T) {
	t.Parallel()

	// Each extractor sleeps 100ms; serial execution would take ~400ms.
	sleepy := func(name string) Extractor {
		return &slowExtractor{name: name, delay: 100 * time.Millisecond}
	}
	extractors := map[string]Extractor{
		"src0": sleepy("src0"), "src1": sleepy("src1"),
		"src2": sleepy("src2"), "src3": sleepy("src3"),
	}
	sub := NewSubprocessWithFactory(fakeFactory(extractors), zap.NewNop())

	ec := etl.NewContext(multiSourceConfig(4), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))
	start := time.Now()
	if _, err := sub.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("fan-out took %v, expected parallel execution near 100ms", elapsed)
	}
}

type slowExtractor struct {
	name  string
	delay time.Duration
}

func (s *slowExtractor) Name() string                                      { return s.name }
func (s *slowExtractor) Category() string                                  { return "slow" }
func (s *slowExtractor) Setup(ctx context.Context, ec *etl.Context) error  { return nil }
func (s *slowExtractor) ValidateSource(ec *etl.Context) error              { return nil }
func (s *slowExtractor) Cleanup()                                          {}

func (s *slowExtractor) Extract(ctx context.Context, ec *etl.Context) ([]models.SourceRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	q := models.NewXbondQuote()
	q.BusinessDate = "2026.01.05"
	q.ExchProductID = s.name + ".IB"
	q.MQOffset = 1
	return []models.SourceRecord{q}, nil
}

func TestExtractValidateContext(t *testing.T) {
	t.Parallel()

	sub := NewSubprocess(zap.NewNop())
	ec := etl.NewContext(nil, time.Time{})
	if err := sub.ValidateContext(ec); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestExtractFactoryErrorIsConfigError(t *testing.T) {
	t.Parallel()

	factory := func(src config.SourceConfig, workDir string, logger *zap.Logger) (Extractor, error) {
		return nil, fmt.Errorf("no extractor for category %q", src.Category)
	}
	sub := NewSubprocessWithFactory(factory, zap.NewNop())
	ec := etl.NewContext(multiSourceConfig(1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))

	_, err := sub.Execute(context.Background(), ec)
	if !etl.IsKind(err, etl.KindConfig) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
