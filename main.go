package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bondfeed-etl/internal/columnar"
	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/extract"
	"bondfeed-etl/internal/load"
	"bondfeed-etl/internal/lockfile"
	"bondfeed-etl/internal/transform"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

// Exit codes.
const (
	exitOK = iota
	exitInputValidation
	exitConcurrentRun
	exitProcessError
	exitConfigError
	exitUnexpected
)

// exitError carries the process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, err error) error { return &exitError{code: code, err: err} }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "unexpected error: %v\n", r)
			code = exitUnexpected
		}
	}()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "error: %v\n", ee.err)
			return ee.code
		}
		// Flag and usage errors.
		return exitInputValidation
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	var (
		fromStr    string
		toStr      string
		configPath string
		lockPath   string
	)

	cmd := &cobra.Command{
		Use:           "bondfeed-etl",
		Short:         "Daily market data ETL: bond quotes, trades and bond-future ticks into the analytics store",
		Version:       BuildCommit,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := etl.ParseBusinessDate(fromStr)
			if err != nil {
				return fail(exitInputValidation, err)
			}
			to, err := etl.ParseBusinessDate(toStr)
			if err != nil {
				return fail(exitInputValidation, err)
			}
			if from.After(to) {
				return fail(exitInputValidation, fmt.Errorf("--from %s is after --to %s", fromStr, toStr))
			}

			// The lock comes before config: a concurrent run must surface
			// as such even when the config is also broken.
			lock, err := lockfile.Acquire(lockPath, lockfile.DefaultStaleAfter)
			if err != nil {
				if errors.Is(err, lockfile.ErrLocked) {
					return fail(exitConcurrentRun, err)
				}
				return fail(exitUnexpected, err)
			}
			defer lock.Release()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fail(exitConfigError, err)
			}

			logger, err := buildLogger(cfg.Logging)
			if err != nil {
				return fail(exitConfigError, err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runETL(ctx, cfg, from, to, logger)
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "first business date, YYYYMMDD (required)")
	cmd.Flags().StringVar(&toStr, "to", "", "last business date, YYYYMMDD (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the run configuration file (required)")
	cmd.Flags().StringVar(&lockPath, "lock", filepath.Join(os.TempDir(), "bondfeed-etl.lock"), "single-instance lock file path")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runETL(ctx context.Context, cfg *config.Config, from, to time.Time, logger *zap.Logger) error {
	connector, err := targetConnector(cfg)
	if err != nil {
		return fail(exitConfigError, err)
	}

	workflow, err := etl.NewDailyWorkflow([]etl.Subprocess{
		extract.NewSubprocess(logger),
		transform.NewSubprocess(transform.NewRegistry(logger), logger),
		load.NewSubprocess(connector, logger),
		etl.NewValidateSubprocess(nil, logger),
		load.NewCleanSubprocess(connector, logger),
	}, logger)
	if err != nil {
		return fail(exitUnexpected, err)
	}

	engine := etl.NewEngine(cfg, workflow, logger)
	result, err := engine.Execute(ctx, from, to)
	if err != nil {
		if etl.IsKind(err, etl.KindConfig) {
			return fail(exitConfigError, err)
		}
		return fail(exitProcessError, err)
	}
	if !result.Success {
		return fail(exitProcessError,
			fmt.Errorf("%d of %d day(s) failed", result.FailedDays(), len(result.Days)))
	}
	return nil
}

func targetConnector(cfg *config.Config) (columnar.Connector, error) {
	for _, t := range cfg.Targets {
		if t.Type == config.TypeColumnar {
			return &columnar.PgConnector{URL: t.Properties["url"]}, nil
		}
	}
	return nil, fmt.Errorf("config: no columnar target defined")
}

func buildLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format != "json" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("config: bad log level %q: %w", lc.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
