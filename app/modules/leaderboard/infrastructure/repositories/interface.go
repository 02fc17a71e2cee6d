package leaderboarddb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Repository is the persistence contract for user scores, the processed
// event log and period counters. Methods accept a bun.IDB so callers can run
// them inside an enclosing transaction; passing nil uses the root connection.
type Repository interface {
	// GetUserScore returns a user's record, or ErrNotFound.
	GetUserScore(ctx context.Context, db bun.IDB, userID string) (*UserScore, error)

	// GetUserScoreForUpdate returns the record locked for the enclosing
	// transaction, creating an empty one first if the user is new.
	GetUserScoreForUpdate(ctx context.Context, db bun.IDB, userID, countryCode string) (*UserScore, error)

	// UpdateUserScore persists a mutated record.
	UpdateUserScore(ctx context.Context, db bun.IDB, rec *UserScore) error

	// ListUserScores returns every record (ranking snapshot source).
	ListUserScores(ctx context.Context, db bun.IDB) ([]UserScore, error)

	// FlagUserScore marks a record for manual reconciliation.
	FlagUserScore(ctx context.Context, db bun.IDB, userID string) error

	// InsertProcessedEvent inserts the idempotency row; reports false when
	// the event was already processed.
	InsertProcessedEvent(ctx context.Context, db bun.IDB, ev *ProcessedEvent) (bool, error)

	// SetAppliedPoints records the per-category points an event granted.
	SetAppliedPoints(ctx context.Context, db bun.IDB, eventID string, applied map[string]float64) error

	// HasProcessedEvent reports whether an event ID was already accepted.
	HasProcessedEvent(ctx context.Context, db bun.IDB, eventID string) (bool, error)

	// ListProcessedEventsForUser returns a user's accepted events ordered by
	// occurredAt (replay order).
	ListProcessedEventsForUser(ctx context.Context, db bun.IDB, userID string) ([]ProcessedEvent, error)

	// AddPeriodCounter accumulates a metric delta for a scoring period.
	AddPeriodCounter(ctx context.Context, db bun.IDB, userID, periodKey, metric string, delta float64, at time.Time) error

	// ListPeriodCounters returns a period metric ordered for ranking:
	// value descending, then earliest update, then userID.
	ListPeriodCounters(ctx context.Context, db bun.IDB, periodKey, metric string) ([]PeriodCounter, error)

	// GetPeriodCounters returns all of one user's metrics for a period.
	GetPeriodCounters(ctx context.Context, db bun.IDB, userID, periodKey string) (map[string]float64, error)
}

var _ Repository = (*Impl)(nil)

// Impl is the bun-backed Repository.
type Impl struct {
	db *bun.DB
}

// New creates the repository over a bun handle.
func New(db *bun.DB) *Impl {
	return &Impl{db: db}
}
