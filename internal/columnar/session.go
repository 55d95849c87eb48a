// Package columnar is the target-store capability: a session that can run
// DDL scripts and bulk-insert column-ordered rows into transient tables.
// The concrete wire protocol stays behind the Session interface.
package columnar

import (
	"context"
	"time"

	"bondfeed-etl/internal/etl"

	"go.uber.org/zap"
)

// Session is one open connection to the columnar target. A single session
// is shared across all target-record types within one day; Load opens it
// and Clean closes it.
type Session interface {
	// RunScript executes an opaque DDL/setup script.
	RunScript(ctx context.Context, script string) error
	// Insert bulk-inserts rows into table using the declared column order.
	Insert(ctx context.Context, table string, columns []string, rows [][]any) (int, error)
	Close(ctx context.Context) error
}

// Connector dials sessions. Implementations must be safe to call once per
// day per target.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectWithRetry dials through c with the standard 1s/2s/4s backoff.
// After the final attempt the failure surfaces as TargetUnavailable.
func ConnectWithRetry(ctx context.Context, c Connector, sub etl.SubprocessType, date time.Time, logger *zap.Logger) (Session, error) {
	var session Session
	attempt := 0
	err := etl.Retry(ctx, etl.RetryAttempts, etl.RetryInitialDelay, func() error {
		attempt++
		s, err := c.Connect(ctx)
		if err != nil {
			logger.Warn("target connect failed",
				zap.Int("attempt", attempt),
				zap.String("date", etl.FormatBusinessDate(date)),
				zap.Error(err))
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, etl.NewError(etl.KindTargetUnavailable, sub, date, "target store unavailable", err)
	}
	return session, nil
}
