package leaderboarddb

import (
	"time"

	"github.com/uptrace/bun"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// UserScore is the per-user aggregation record. Mutated only inside Apply
// transactions; replaying the user's accepted event log must reproduce it.
type UserScore struct {
	bun.BaseModel `bun:"table:user_scores,alias:us"`

	UserID      string `bun:"user_id,pk"`
	CountryCode string `bun:"country_code,notnull,default:'UNKNOWN'"`

	// Totals maps category -> points after caps.
	Totals map[string]float64 `bun:"totals,type:jsonb,notnull"`
	// Counters maps raw metric -> cumulative value (uncapped).
	Counters map[string]float64 `bun:"counters,type:jsonb,notnull"`
	// ReachedAt maps category -> occurredAt of the event that last moved the
	// total. Earlier wins rank ties.
	ReachedAt map[string]time.Time `bun:"reached_at,type:jsonb,notnull"`
	// Badges holds the IDs of currently-held badges.
	Badges []string `bun:"badges,type:jsonb,notnull"`

	LastStreakDayAt time.Time `bun:"last_streak_day_at,nullzero"`
	// Flagged marks a record whose event-log replay no longer matches its
	// totals; it awaits manual reconciliation.
	Flagged       bool      `bun:"flagged,notnull,default:false"`
	LastUpdatedAt time.Time `bun:"last_updated_at,notnull"`
}

// NewUserScore returns an empty record for a user.
func NewUserScore(userID, countryCode string) *UserScore {
	if countryCode == "" {
		countryCode = scoringdomain.UnknownCountry
	}
	return &UserScore{
		UserID:      userID,
		CountryCode: countryCode,
		Totals:      map[string]float64{},
		Counters:    map[string]float64{},
		ReachedAt:   map[string]time.Time{},
		Badges:      []string{},
	}
}

// Total returns the capped points for a category.
func (u *UserScore) Total(c scoringdomain.Category) float64 {
	return u.Totals[string(c)]
}

// Counter returns a raw metric value.
func (u *UserScore) Counter(c scoringdomain.Counter) float64 {
	return u.Counters[string(c)]
}

// HasBadge reports whether the user currently holds a badge.
func (u *UserScore) HasBadge(badgeID string) bool {
	for _, b := range u.Badges {
		if b == badgeID {
			return true
		}
	}
	return false
}

// RemoveBadge drops a badge ID from the held set.
func (u *UserScore) RemoveBadge(badgeID string) {
	kept := u.Badges[:0]
	for _, b := range u.Badges {
		if b != badgeID {
			kept = append(kept, b)
		}
	}
	u.Badges = kept
}

// ProcessedEvent is the durable idempotency barrier and audit log entry for
// one accepted activity event. Inserted in the same transaction that mutates
// the user score; a conflicting insert means the event was already applied.
type ProcessedEvent struct {
	bun.BaseModel `bun:"table:processed_events,alias:pe"`

	EventID     string    `bun:"event_id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Type        string    `bun:"type,notnull"`
	Magnitude   float64   `bun:"magnitude,notnull,default:0"`
	CountryCode string    `bun:"country_code,notnull"`
	OccurredAt  time.Time `bun:"occurred_at,notnull"`
	// AppliedPoints maps category -> points this event actually granted
	// (after caps, including badge bonuses it triggered).
	AppliedPoints map[string]float64 `bun:"applied_points,type:jsonb"`
	ProcessedAt   time.Time          `bun:"processed_at,notnull,default:current_timestamp"`
}

// Event reconstructs the normalized activity event for replay.
func (p *ProcessedEvent) Event() scoringdomain.ActivityEvent {
	return scoringdomain.ActivityEvent{
		EventID:     p.EventID,
		UserID:      p.UserID,
		Type:        scoringdomain.EventType(p.Type),
		Magnitude:   p.Magnitude,
		CountryCode: p.CountryCode,
		OccurredAt:  p.OccurredAt,
	}
}

// PeriodCounter accumulates a user's metric delta inside one scoring period
// (calendar month or quarter). Competitive badge ranking reads these.
type PeriodCounter struct {
	bun.BaseModel `bun:"table:period_counters,alias:pc"`

	UserID    string  `bun:"user_id,pk"`
	PeriodKey string  `bun:"period_key,pk"`
	Metric    string  `bun:"metric,pk"`
	Value     float64 `bun:"value,notnull,default:0"`
	// UpdatedAt is the occurredAt of the event that last moved the value;
	// earlier wins period-ranking ties.
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
