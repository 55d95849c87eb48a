package etl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeSubprocess records its invocations and can be told to fail.
type fakeSubprocess struct {
	typ         SubprocessType
	count       int
	err         error
	validateErr error
	calls       *[]SubprocessType
}

func (f *fakeSubprocess) Type() SubprocessType { return f.typ }

func (f *fakeSubprocess) ValidateContext(ec *Context) error { return f.validateErr }

func (f *fakeSubprocess) Execute(ctx context.Context, ec *Context) (int, error) {
	*f.calls = append(*f.calls, f.typ)
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func newFakeWorkflow(t *testing.T, calls *[]SubprocessType, failAt map[SubprocessType]error) *DailyWorkflow {
	t.Helper()
	order := []SubprocessType{SubprocessExtract, SubprocessTransform, SubprocessLoad, SubprocessValidate, SubprocessClean}
	subs := make([]Subprocess, 0, len(order))
	for _, typ := range order {
		subs = append(subs, &fakeSubprocess{typ: typ, count: 1, err: failAt[typ], calls: calls})
	}
	w, err := NewDailyWorkflow(subs, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w
}

func TestWorkflowRunsSubprocessesInOrder(t *testing.T) {
	t.Parallel()

	var calls []SubprocessType
	w := newFakeWorkflow(t, &calls, nil)
	ec := NewContext(testConfig(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))

	result := w.Run(context.Background(), ec)
	if !result.Success {
		t.Fatalf("expected success, got error %v", result.Err)
	}

	want := []SubprocessType{SubprocessExtract, SubprocessTransform, SubprocessLoad, SubprocessValidate, SubprocessClean}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestWorkflowCleanAlwaysRuns(t *testing.T) {
	t.Parallel()

	for _, failing := range []SubprocessType{SubprocessExtract, SubprocessTransform, SubprocessLoad, SubprocessValidate} {
		failing := failing
		t.Run(failing.String(), func(t *testing.T) {
			t.Parallel()

			var calls []SubprocessType
			w := newFakeWorkflow(t, &calls, map[SubprocessType]error{failing: fmt.Errorf("%s blew up", failing)})
			ec := NewContext(testConfig(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))

			result := w.Run(context.Background(), ec)
			if result.Success {
				t.Fatal("expected day failure")
			}

			cleanRan := false
			for _, c := range calls {
				if c == SubprocessClean {
					cleanRan = true
				}
				// Nothing after the failing stage except CLEAN.
				if c > failing && c != SubprocessClean {
					t.Fatalf("stage %s ran after %s failed", c, failing)
				}
			}
			if !cleanRan {
				t.Fatalf("CLEAN did not run after %s failure (calls=%v)", failing, calls)
			}
		})
	}
}

func TestWorkflowCleanFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	var calls []SubprocessType
	w := newFakeWorkflow(t, &calls, map[SubprocessType]error{SubprocessClean: fmt.Errorf("drop failed")})
	ec := NewContext(testConfig(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))

	result := w.Run(context.Background(), ec)
	if !result.Success {
		t.Fatal("clean failure must not fail the day")
	}
	if result.Err != nil {
		t.Fatalf("clean failure must not surface: %v", result.Err)
	}
	last := result.Subprocesses[len(result.Subprocesses)-1]
	if last.Type != SubprocessClean || last.Err != nil {
		t.Fatalf("clean result = %+v, want swallowed error", last)
	}
}

func TestWorkflowSetsCurrentSubprocess(t *testing.T) {
	t.Parallel()

	var calls []SubprocessType
	w := newFakeWorkflow(t, &calls, nil)
	ec := NewContext(testConfig(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))

	w.Run(context.Background(), ec)
	// CLEAN runs last, so it is what remains in the context.
	cur, ok := ec.CurrentSubprocess()
	if !ok || cur != SubprocessClean {
		t.Fatalf("currentSubprocess = %v/%v, want CLEAN", cur, ok)
	}
}

func TestWorkflowValidationFailureStopsExecution(t *testing.T) {
	t.Parallel()

	var calls []SubprocessType
	order := []SubprocessType{SubprocessExtract, SubprocessTransform, SubprocessLoad, SubprocessValidate, SubprocessClean}
	subs := make([]Subprocess, 0, len(order))
	for _, typ := range order {
		sub := &fakeSubprocess{typ: typ, count: 1, calls: &calls}
		if typ == SubprocessTransform {
			sub.validateErr = NewError(KindConfig, typ, time.Time{}, "extractedData missing from context", nil)
		}
		subs = append(subs, sub)
	}
	w, err := NewDailyWorkflow(subs, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ec := NewContext(testConfig(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local))
	result := w.Run(context.Background(), ec)
	if result.Success {
		t.Fatal("expected failure from context validation")
	}
	if !IsKind(result.Err, KindConfig) {
		t.Fatalf("expected ConfigError, got %v", result.Err)
	}
	// Execute never ran for TRANSFORM; EXTRACT ran, then CLEAN.
	for _, c := range calls {
		if c == SubprocessTransform || c == SubprocessLoad || c == SubprocessValidate {
			t.Fatalf("stage %s should not have executed (calls=%v)", c, calls)
		}
	}
}

func TestWorkflowRequiresTrailingClean(t *testing.T) {
	t.Parallel()

	var calls []SubprocessType
	subs := []Subprocess{
		&fakeSubprocess{typ: SubprocessExtract, calls: &calls},
		&fakeSubprocess{typ: SubprocessLoad, calls: &calls},
	}
	if _, err := NewDailyWorkflow(subs, zap.NewNop()); err == nil {
		t.Fatal("expected error for workflow without trailing CLEAN")
	}
}
