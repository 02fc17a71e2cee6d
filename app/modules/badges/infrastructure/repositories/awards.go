package badgedb

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Repository is the persistence contract for badge awards and period seals.
type Repository interface {
	ListAwardsForUser(ctx context.Context, db bun.IDB, userID string) ([]BadgeAward, error)
	ListAwards(ctx context.Context, db bun.IDB, badgeID, periodKey string) ([]BadgeAward, error)
	InsertAward(ctx context.Context, db bun.IDB, award *BadgeAward) error
	DeleteAward(ctx context.Context, db bun.IDB, badgeID, userID, periodKey string) error
	IsSealed(ctx context.Context, db bun.IDB, badgeID, periodKey string) (bool, error)
	// Seal marks a period immutable; reports false when already sealed.
	Seal(ctx context.Context, db bun.IDB, badgeID, periodKey string, at time.Time) (bool, error)
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

// ListAwardsForUser returns every badge a user holds, oldest first.
func (r *Impl) ListAwardsForUser(ctx context.Context, db bun.IDB, userID string) ([]BadgeAward, error) {
	if db == nil {
		db = r.db
	}
	var awards []BadgeAward
	err := db.NewSelect().
		Model(&awards).
		Where("user_id = ?", userID).
		Order("awarded_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("badgedb.ListAwardsForUser: %w", err)
	}
	return awards, nil
}

// ListAwards returns the current holder set for one (badge, period).
func (r *Impl) ListAwards(ctx context.Context, db bun.IDB, badgeID, periodKey string) ([]BadgeAward, error) {
	if db == nil {
		db = r.db
	}
	var awards []BadgeAward
	err := db.NewSelect().
		Model(&awards).
		Where("badge_id = ?", badgeID).
		Where("period_key = ?", periodKey).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("badgedb.ListAwards: %w", err)
	}
	return awards, nil
}

// InsertAward creates one award row.
func (r *Impl) InsertAward(ctx context.Context, db bun.IDB, award *BadgeAward) error {
	if db == nil {
		db = r.db
	}
	_, err := db.NewInsert().
		Model(award).
		On("CONFLICT (badge_id, user_id, period_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("badgedb.InsertAward: %w", err)
	}
	return nil
}

// DeleteAward removes one award row (competitive revocation).
func (r *Impl) DeleteAward(ctx context.Context, db bun.IDB, badgeID, userID, periodKey string) error {
	if db == nil {
		db = r.db
	}
	_, err := db.NewDelete().
		Model((*BadgeAward)(nil)).
		Where("badge_id = ?", badgeID).
		Where("user_id = ?", userID).
		Where("period_key = ?", periodKey).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("badgedb.DeleteAward: %w", err)
	}
	return nil
}

// IsSealed reports whether a (badge, period) award set is immutable.
func (r *Impl) IsSealed(ctx context.Context, db bun.IDB, badgeID, periodKey string) (bool, error) {
	if db == nil {
		db = r.db
	}
	exists, err := db.NewSelect().
		Model((*PeriodSeal)(nil)).
		Where("badge_id = ?", badgeID).
		Where("period_key = ?", periodKey).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("badgedb.IsSealed: %w", err)
	}
	return exists, nil
}

// Seal marks a period immutable exactly once; reports false when a previous
// run already sealed it.
func (r *Impl) Seal(ctx context.Context, db bun.IDB, badgeID, periodKey string, at time.Time) (bool, error) {
	if db == nil {
		db = r.db
	}
	seal := &PeriodSeal{BadgeID: badgeID, PeriodKey: periodKey, SealedAt: at}
	res, err := db.NewInsert().
		Model(seal).
		On("CONFLICT (badge_id, period_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("badgedb.Seal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("badgedb.Seal: %w", err)
	}
	return n > 0, nil
}
