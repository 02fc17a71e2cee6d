package badgedb

import (
	"time"

	"github.com/uptrace/bun"
)

// BadgeAward is one badge held by one user. Achievement awards carry an
// empty period key and are permanent. Competitive awards are scoped to
// their period and may be replaced until the period seals.
type BadgeAward struct {
	bun.BaseModel `bun:"table:badge_awards,alias:ba"`

	ID        int64     `bun:"id,pk,autoincrement"`
	BadgeID   string    `bun:"badge_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	PeriodKey string    `bun:"period_key,notnull,default:''"`
	AwardedAt time.Time `bun:"awarded_at,notnull"`
}

// PeriodSeal records that a competitive badge's period closed and its award
// set became immutable. Insert-once; recomputation skips sealed periods.
type PeriodSeal struct {
	bun.BaseModel `bun:"table:badge_period_seals,alias:ps"`

	BadgeID   string    `bun:"badge_id,pk"`
	PeriodKey string    `bun:"period_key,pk"`
	SealedAt  time.Time `bun:"sealed_at,notnull"`
}
