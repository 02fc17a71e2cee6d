package leaderboarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// GetUserScore returns a user's record, or ErrNotFound.
func (r *Impl) GetUserScore(ctx context.Context, db bun.IDB, userID string) (*UserScore, error) {
	if db == nil {
		db = r.db
	}
	rec := new(UserScore)
	err := db.NewSelect().
		Model(rec).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leaderboarddb.GetUserScore: %w", err)
	}
	return rec, nil
}

// GetUserScoreForUpdate locks the record for the enclosing transaction,
// creating an empty one first if the user is new. Per-user serialization
// hangs off this row lock: concurrent events for one user queue here while
// other users proceed in parallel.
func (r *Impl) GetUserScoreForUpdate(ctx context.Context, db bun.IDB, userID, countryCode string) (*UserScore, error) {
	if db == nil {
		db = r.db
	}
	seed := NewUserScore(userID, countryCode)
	seed.LastUpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(seed).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetUserScoreForUpdate: seed: %w", err)
	}

	rec := new(UserScore)
	err = db.NewSelect().
		Model(rec).
		Where("user_id = ?", userID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.GetUserScoreForUpdate: %w", err)
	}
	return rec, nil
}

// UpdateUserScore persists a mutated record.
func (r *Impl) UpdateUserScore(ctx context.Context, db bun.IDB, rec *UserScore) error {
	if db == nil {
		db = r.db
	}
	res, err := db.NewUpdate().
		Model(rec).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.UpdateUserScore: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("leaderboarddb.UpdateUserScore: %w", ErrNoRowsAffected)
	}
	return nil
}

// ListUserScores returns every record for the ranking snapshot.
func (r *Impl) ListUserScores(ctx context.Context, db bun.IDB) ([]UserScore, error) {
	if db == nil {
		db = r.db
	}
	var recs []UserScore
	err := db.NewSelect().
		Model(&recs).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboarddb.ListUserScores: %w", err)
	}
	return recs, nil
}

// FlagUserScore marks a record for manual reconciliation.
func (r *Impl) FlagUserScore(ctx context.Context, db bun.IDB, userID string) error {
	if db == nil {
		db = r.db
	}
	_, err := db.NewUpdate().
		Model((*UserScore)(nil)).
		Set("flagged = true").
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboarddb.FlagUserScore: %w", err)
	}
	return nil
}
