package leaderboarddb

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// AddPeriodCounter accumulates a metric delta for a scoring period. The
// updated_at column keeps the occurredAt of the latest contributing event
// for tie-breaking.
func (r *Impl) AddPeriodCounter(ctx context.Context, db bun.IDB, userID, periodKey, metric string, delta float64, at time.Time) error {
	if db == nil {
		db = r.db
	}
	row := &PeriodCounter{
		UserID:    userID,
		PeriodKey: periodKey,
		Metric:    metric,
		Value:     delta,
		UpdatedAt: at,
	}
	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (user_id, period_key, metric) DO UPDATE").
		Set("value = pc.value + EXCLUDED.value").
		Set("updated_at = GREATEST(pc.updated_at, EXCLUDED.updated_at)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.AddPeriodCounter: %w", err)
	}
	return nil
}

// ListPeriodCounters returns one period metric ordered for ranking: value
// descending, earliest update first, then userID.
func (r *Impl) ListPeriodCounters(ctx context.Context, db bun.IDB, periodKey, metric string) ([]PeriodCounter, error) {
	if db == nil {
		db = r.db
	}
	var rows []PeriodCounter
	err := db.NewSelect().
		Model(&rows).
		Where("period_key = ?", periodKey).
		Where("metric = ?", metric).
		Order("value DESC", "updated_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListPeriodCounters: %w", err)
	}
	return rows, nil
}

// GetPeriodCounters returns all of one user's metrics for a period.
func (r *Impl) GetPeriodCounters(ctx context.Context, db bun.IDB, userID, periodKey string) (map[string]float64, error) {
	if db == nil {
		db = r.db
	}
	var rows []PeriodCounter
	err := db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("period_key = ?", periodKey).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetPeriodCounters: %w", err)
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Metric] = row.Value
	}
	return out, nil
}
