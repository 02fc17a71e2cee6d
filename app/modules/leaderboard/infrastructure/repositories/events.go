package leaderboarddb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// InsertProcessedEvent inserts the idempotency row for an accepted event.
// Returns false when the event ID was already processed (duplicate replay).
func (r *Impl) InsertProcessedEvent(ctx context.Context, db bun.IDB, ev *ProcessedEvent) (bool, error) {
	if db == nil {
		db = r.db
	}
	res, err := db.NewInsert().
		Model(ev).
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("leaderboarddb.InsertProcessedEvent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("leaderboarddb.InsertProcessedEvent: %w", err)
	}
	return n > 0, nil
}

// SetAppliedPoints records the per-category points an event granted.
func (r *Impl) SetAppliedPoints(ctx context.Context, db bun.IDB, eventID string, applied map[string]float64) error {
	if db == nil {
		db = r.db
	}
	_, err := db.NewUpdate().
		Model((*ProcessedEvent)(nil)).
		Set("applied_points = ?", applied).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.SetAppliedPoints: %w", err)
	}
	return nil
}

// HasProcessedEvent reports whether an event ID was already accepted.
func (r *Impl) HasProcessedEvent(ctx context.Context, db bun.IDB, eventID string) (bool, error) {
	if db == nil {
		db = r.db
	}
	exists, err := db.NewSelect().
		Model((*ProcessedEvent)(nil)).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("leaderboarddb.HasProcessedEvent: %w", err)
	}
	return exists, nil
}

// ListProcessedEventsForUser returns a user's accepted events in replay
// order (occurredAt, then eventID for determinism).
func (r *Impl) ListProcessedEventsForUser(ctx context.Context, db bun.IDB, userID string) ([]ProcessedEvent, error) {
	if db == nil {
		db = r.db
	}
	var events []ProcessedEvent
	err := db.NewSelect().
		Model(&events).
		Where("user_id = ?", userID).
		Order("occurred_at ASC", "event_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListProcessedEventsForUser: %w", err)
	}
	return events, nil
}
