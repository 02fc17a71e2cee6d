package badgequeue

import "github.com/riverqueue/river"

// QueueBadges is the dedicated River queue for badge maintenance jobs.
const QueueBadges = "badges"

// RecomputeArgs re-ranks competitive badges. With an empty BadgeID the job
// reconciles every open period; otherwise just the named (badge, period).
type RecomputeArgs struct {
	BadgeID   string `json:"badge_id"`
	PeriodKey string `json:"period_key"`
}

func (RecomputeArgs) Kind() string { return "badge_recompute" }

func (RecomputeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueBadges}
}

// SealArgs finalizes competitive badge periods that have closed.
type SealArgs struct{}

func (SealArgs) Kind() string { return "badge_seal" }

func (SealArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueBadges}
}
