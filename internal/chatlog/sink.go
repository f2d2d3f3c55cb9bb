// Package chatlog persists the durable, append-only record of every
// completed exchange. Unlike session memory, this log survives restarts
// and is the system of record for conversations.
package chatlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the single database capability the sink needs.
// *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink appends exchanges to the chat log table, keyed by numeric session
// id with parallel origins/questions/answers arrays. The first write for a
// session inserts the row; later writes push onto the arrays. Rows are
// never overwritten or deleted by this service.
//
// Sink is safe for concurrent use by multiple goroutines.
type Sink struct {
	db      Execer
	table   string
	timeout time.Duration
	logger  *slog.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// NewSink creates a Sink writing to table. The table name must already be
// validated as a safe identifier by config validation; it is interpolated
// into DDL and DML here. timeout bounds each write (0 = 5s).
func NewSink(db Execer, table string, timeout time.Duration, logger *slog.Logger) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, table: table, timeout: timeout, logger: logger}
}

// AppendExchange records one completed exchange for sessionID.
// The backing table is created on first use if absent.
func (s *Sink) AppendExchange(ctx context.Context, sessionID int64, origin, question, answer string) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureTable(writeCtx); err != nil {
		return fmt.Errorf("ensuring chat log table: %w", err)
	}

	upsert := fmt.Sprintf(`
INSERT INTO %s (session, origins, questions, answers, updated_at)
VALUES ($1, ARRAY[$2], ARRAY[$3], ARRAY[$4], now())
ON CONFLICT (session) DO UPDATE SET
    origins    = %s.origins    || EXCLUDED.origins,
    questions  = %s.questions  || EXCLUDED.questions,
    answers    = %s.answers    || EXCLUDED.answers,
    updated_at = now()`,
		s.table, s.table, s.table, s.table)

	if _, err := s.db.Exec(writeCtx, upsert, sessionID, origin, question, answer); err != nil {
		return fmt.Errorf("appending exchange for session %d: %w", sessionID, err)
	}

	s.logger.Debug("exchange logged", "session", sessionID)
	return nil
}

// ensureTable creates the backing table once per process.
func (s *Sink) ensureTable(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    session    BIGINT PRIMARY KEY,
    origins    TEXT[] NOT NULL DEFAULT '{}',
    questions  TEXT[] NOT NULL DEFAULT '{}',
    answers    TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
		_, s.ensureErr = s.db.Exec(ctx, ddl)
	})
	return s.ensureErr
}
