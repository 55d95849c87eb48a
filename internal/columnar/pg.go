package columnar

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
)

// PgConnector dials a Postgres-backed columnar target. The session holds a
// single connection for the day, matching the one-session-per-day contract.
type PgConnector struct {
	URL string
	// DialTimeout bounds each connect attempt. Zero means 10s.
	DialTimeout time.Duration
}

func (c *PgConnector) Connect(ctx context.Context) (Session, error) {
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pgx.Connect(dialCtx, c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target: %w", err)
	}
	return &pgSession{conn: conn}, nil
}

type pgSession struct {
	conn *pgx.Conn
}

func (s *pgSession) RunScript(ctx context.Context, script string) error {
	if _, err := s.conn.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to run target script: %w", err)
	}
	return nil
}

func (s *pgSession) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	// NaN is the in-pipeline float sentinel; the store keeps NULL instead.
	clean := make([][]any, len(rows))
	for i, row := range rows {
		out := make([]any, len(row))
		for j, cell := range row {
			if f, ok := cell.(float64); ok && math.IsNaN(f) {
				out[j] = nil
				continue
			}
			out[j] = cell
		}
		clean[i] = out
	}

	n, err := s.conn.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(clean))
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return int(n), nil
}

func (s *pgSession) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
