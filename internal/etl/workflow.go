package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SubprocessResult is the timing and outcome of one subprocess run.
type SubprocessResult struct {
	Type     SubprocessType
	Count    int
	Duration time.Duration
	Err      error
}

// DailyResult aggregates one business day.
type DailyResult struct {
	Date         time.Time
	Subprocesses []SubprocessResult
	Success      bool
	Err          error
}

// DailyWorkflow drives the five subprocesses of one business day in strict
// order. The ordering is fixed at construction and not configurable.
type DailyWorkflow struct {
	subprocesses []Subprocess
	logger       *zap.Logger
}

// NewDailyWorkflow wires the ordered subprocess list. The list must end
// with the CLEAN subprocess; it is run unconditionally even after an
// earlier failure so transient target artifacts never accumulate.
func NewDailyWorkflow(subprocesses []Subprocess, logger *zap.Logger) (*DailyWorkflow, error) {
	if len(subprocesses) == 0 {
		return nil, fmt.Errorf("daily workflow: no subprocesses")
	}
	if subprocesses[len(subprocesses)-1].Type() != SubprocessClean {
		return nil, fmt.Errorf("daily workflow: last subprocess must be CLEAN, got %s", subprocesses[len(subprocesses)-1].Type())
	}
	return &DailyWorkflow{subprocesses: subprocesses, logger: logger}, nil
}

// Run executes the day. On any failure before CLEAN it stops, marks the
// day failed, and still runs CLEAN as the final step. A CLEAN failure is
// logged but never changes the day's outcome.
func (w *DailyWorkflow) Run(ctx context.Context, ec *Context) *DailyResult {
	date := ec.CurrentDate()
	result := &DailyResult{Date: date, Success: true}

	cleanIdx := len(w.subprocesses) - 1
	for i, sub := range w.subprocesses[:cleanIdx] {
		res := w.runOne(ctx, ec, sub)
		result.Subprocesses = append(result.Subprocesses, res)
		if res.Err != nil {
			result.Success = false
			result.Err = res.Err
			w.logger.Error("day failed, skipping remaining stages",
				zap.String("date", FormatBusinessDate(date)),
				zap.String("subprocess", sub.Type().String()),
				zap.Int("skipped", cleanIdx-i-1),
				zap.Error(res.Err))
			break
		}
	}

	// CLEAN always runs; the data outcome is already determined.
	cleanRes := w.runOne(ctx, ec, w.subprocesses[cleanIdx])
	if cleanRes.Err != nil {
		w.logger.Warn("cleanup failed, day outcome unchanged",
			zap.String("date", FormatBusinessDate(date)),
			zap.Error(cleanRes.Err))
		cleanRes.Err = nil
	}
	result.Subprocesses = append(result.Subprocesses, cleanRes)

	return result
}

func (w *DailyWorkflow) runOne(ctx context.Context, ec *Context, sub Subprocess) SubprocessResult {
	date := ec.CurrentDate()
	ec.SetCurrentSubprocess(sub.Type())

	w.logger.Info("subprocess start",
		zap.String("subprocess", sub.Type().String()),
		zap.String("date", FormatBusinessDate(date)))

	start := time.Now()
	var count int
	err := sub.ValidateContext(ec)
	if err == nil {
		count, err = sub.Execute(ctx, ec)
	}
	elapsed := time.Since(start)

	if err != nil {
		w.logger.Error("subprocess failed",
			zap.String("subprocess", sub.Type().String()),
			zap.String("date", FormatBusinessDate(date)),
			zap.Duration("duration", elapsed),
			zap.Error(err))
	} else {
		w.logger.Info("subprocess done",
			zap.String("subprocess", sub.Type().String()),
			zap.String("date", FormatBusinessDate(date)),
			zap.Int("count", count),
			zap.Duration("duration", elapsed))
	}

	return SubprocessResult{Type: sub.Type(), Count: count, Duration: elapsed, Err: err}
}
