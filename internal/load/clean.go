package load

import (
	"context"

	"bondfeed-etl/internal/columnar"
	"bondfeed-etl/internal/etl"

	"go.uber.org/zap"
)

// CleanSubprocess is the CLEAN stage: drop the day's transient target
// artifacts. The daily workflow runs it unconditionally, even after an
// earlier failure; leftover tables would otherwise accumulate across
// days. Failures are logged, never propagated.
type CleanSubprocess struct {
	connector columnar.Connector
	logger    *zap.Logger
}

func NewCleanSubprocess(connector columnar.Connector, logger *zap.Logger) *CleanSubprocess {
	return &CleanSubprocess{connector: connector, logger: logger}
}

func (s *CleanSubprocess) Type() etl.SubprocessType { return etl.SubprocessClean }

func (s *CleanSubprocess) ValidateContext(ec *etl.Context) error {
	// Clean must run no matter what earlier stages managed to write.
	return nil
}

func (s *CleanSubprocess) Execute(ctx context.Context, ec *etl.Context) (int, error) {
	date := ec.CurrentDate()

	// Reuse Load's session when it opened one; connect lazily when the
	// day failed before Load.
	var session columnar.Session
	if v, ok := ec.TargetSession(); ok {
		session, _ = v.(columnar.Session)
	}
	if session == nil {
		var err error
		session, err = columnar.ConnectWithRetry(ctx, s.connector, etl.SubprocessClean, date, s.logger)
		if err != nil {
			// Nothing reachable to clean; the setup script is idempotent,
			// so a later day can still recover.
			return 0, etl.NewError(etl.KindClean, etl.SubprocessClean, date, "could not reach target for cleanup", err)
		}
	}
	defer func() {
		if cerr := session.Close(ctx); cerr != nil {
			s.logger.Warn("failed to close target session",
				zap.String("date", etl.FormatBusinessDate(date)),
				zap.Error(cerr))
		}
	}()

	if err := session.RunScript(ctx, columnar.TeardownScript); err != nil {
		ec.SetCleanupPerformed(false)
		return 0, etl.NewError(etl.KindClean, etl.SubprocessClean, date, "teardown script failed", err)
	}

	ec.SetCleanupPerformed(true)
	return 0, nil
}
