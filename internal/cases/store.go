// Package cases reads structured compensation case details from the
// relational store and maps them to a localized presentation form for
// prompt context.
package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no case matches the requested key.
var ErrNotFound = errors.New("case not found")

// Case is one compensation case activity record.
type Case struct {
	CaseID         int64
	ActivityRecord int64
	Classification string
	ActionType     string
	ActionDate     pgtype.Date
	StartDate      pgtype.Date
	EndDate        pgtype.Date
	PayRate        pgtype.Numeric
	Status         string
}

const getCaseSQL = `
SELECT case_id, activity_record, classification, action_type,
       action_date, start_date, end_date, pay_rate, status
FROM cases
WHERE case_id = $1 AND activity_record = $2`

// Store queries case details by (case_id, activity_record).
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewStore creates a Store. timeout bounds each lookup (0 = 5s).
func NewStore(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, timeout: timeout, logger: logger}
}

// Get returns the case identified by (caseID, activityRecord).
// Returns ErrNotFound when no row matches.
func (s *Store) Get(ctx context.Context, caseID, activityRecord int64) (*Case, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var c Case
	err := s.pool.QueryRow(queryCtx, getCaseSQL, caseID, activityRecord).Scan(
		&c.CaseID, &c.ActivityRecord, &c.Classification, &c.ActionType,
		&c.ActionDate, &c.StartDate, &c.EndDate, &c.PayRate, &c.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("case %d/%d: %w", caseID, activityRecord, ErrNotFound)
		}
		return nil, fmt.Errorf("querying case %d/%d: %w", caseID, activityRecord, err)
	}

	s.logger.Debug("case details fetched", "case_id", caseID, "activity_record", activityRecord)
	return &c, nil
}
