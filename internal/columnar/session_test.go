package columnar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bondfeed-etl/internal/etl"

	"go.uber.org/zap"
)

type stubSession struct{}

func (stubSession) RunScript(ctx context.Context, script string) error { return nil }
func (stubSession) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	return len(rows), nil
}
func (stubSession) Close(ctx context.Context) error { return nil }

type countingConnector struct {
	failUntil int
	attempts  int
}

func (c *countingConnector) Connect(ctx context.Context) (Session, error) {
	c.attempts++
	if c.attempts <= c.failUntil {
		return nil, fmt.Errorf("connection refused")
	}
	return stubSession{}, nil
}

func TestConnectWithRetryFirstAttempt(t *testing.T) {
	t.Parallel()

	c := &countingConnector{}
	session, err := ConnectWithRetry(context.Background(), c, etl.SubprocessLoad,
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || c.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", c.attempts)
	}
}

func TestConnectWithRetryRecoversWithinBudget(t *testing.T) {
	t.Parallel()

	c := &countingConnector{failUntil: 2}
	session, err := ConnectWithRetry(context.Background(), c, etl.SubprocessLoad,
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || c.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", c.attempts)
	}
}

func TestConnectWithRetryExhaustedIsTargetUnavailable(t *testing.T) {
	t.Parallel()

	c := &countingConnector{failUntil: 10}
	_, err := ConnectWithRetry(context.Background(), c, etl.SubprocessClean,
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.Local), zap.NewNop())
	if err == nil {
		t.Fatal("expected failure")
	}
	if !etl.IsKind(err, etl.KindTargetUnavailable) {
		t.Fatalf("expected TargetUnavailable, got %v", err)
	}
	if c.attempts != etl.RetryAttempts {
		t.Fatalf("attempts = %d, want %d", c.attempts, etl.RetryAttempts)
	}

	var etlErr *etl.Error
	if !errors.As(err, &etlErr) {
		t.Fatalf("expected *etl.Error, got %T", err)
	}
	if etlErr.Subprocess != etl.SubprocessClean {
		t.Fatalf("subprocess = %v, want clean", etlErr.Subprocess)
	}
}

func TestSetupScriptEmbedded(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"xbond_quote_stream_temp", "xbond_trade_stream_temp", "fut_market_price_stream_temp"} {
		if !strings.Contains(SetupScript, table) {
			t.Fatalf("setup script missing table %s", table)
		}
		if !strings.Contains(TeardownScript, table) {
			t.Fatalf("teardown script missing table %s", table)
		}
	}
}
