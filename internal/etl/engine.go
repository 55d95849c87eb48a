package etl

import (
	"context"
	"time"

	"bondfeed-etl/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DailyRunner runs everything for one day's context.
type DailyRunner interface {
	Run(ctx context.Context, ec *Context) *DailyResult
}

// WorkflowResult is the aggregate outcome of a date-range run. Success is
// true only when every day succeeded.
type WorkflowResult struct {
	RunID   string
	Days    []*DailyResult
	Success bool
}

// FailedDays counts the days that did not succeed.
func (r *WorkflowResult) FailedDays() int {
	n := 0
	for _, d := range r.Days {
		if !d.Success {
			n++
		}
	}
	return n
}

// Engine expands an inclusive date range into chronological business days
// and drives the daily workflow for each. Days run strictly sequentially:
// the target store is a serial consumer and days share transient-artifact
// names.
type Engine struct {
	cfg      *config.Config
	workflow DailyRunner
	logger   *zap.Logger
}

func NewEngine(cfg *config.Config, workflow DailyRunner, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, workflow: workflow, logger: logger}
}

// Execute runs every day in [from, to]. A per-day failure is recorded and
// the run continues with the next day; only a range error aborts the run.
func (e *Engine) Execute(ctx context.Context, from, to time.Time) (*WorkflowResult, error) {
	days, err := DateRange(from, to)
	if err != nil {
		return nil, NewError(KindConfig, SubprocessExtract, from, "invalid date range", err)
	}

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("run start",
		zap.String("from", FormatBusinessDate(from)),
		zap.String("to", FormatBusinessDate(to)),
		zap.Int("days", len(days)))

	result := &WorkflowResult{RunID: runID, Success: true}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// Fresh context per day; one day's state never leaks into another.
		ec := NewContext(e.cfg, day)
		dayResult := e.workflow.Run(ctx, ec)
		result.Days = append(result.Days, dayResult)
		if !dayResult.Success {
			result.Success = false
		}

		logger.Info("day done",
			zap.String("date", FormatBusinessDate(day)),
			zap.Bool("success", dayResult.Success),
			zap.Int("extracted", ec.ExtractedDataCount()),
			zap.Int("transformed", ec.TransformedDataCount()),
			zap.Int("loaded", ec.LoadedDataCount()))
	}

	logger.Info("run done",
		zap.Int("days", len(result.Days)),
		zap.Int("failed_days", result.FailedDays()),
		zap.Bool("success", result.Success))
	return result, nil
}
