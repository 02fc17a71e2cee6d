package scoringdomain

import (
	"math"
	"time"
)

// Point weights and anti-abuse caps. These are the authoritative business
// rules; do not re-derive them from display copy.
const (
	TipPoints         = 10.0
	LikePoints        = 2.0
	CommentPoints     = 1.0
	StreakDayPoints   = 3.0
	GoalPoints        = 100.0
	TransactionPoints = 1.0

	// SavingsPointsPer100 awards 5 points per 100 pounds logged,
	// proportionally (fractions allowed).
	SavingsPointsPer100 = 5.0

	// CommentPointCap stops comment points after 50 lifetime comments.
	// The raw counter keeps incrementing for display.
	CommentPointCap = 50.0

	// SavingsPointCap stops savings points past 50,000 pounds lifetime.
	SavingsPointCap = 50000.0

	// StreakResetGap is the inactivity window after which a streak restarts.
	StreakResetGap = 24 * time.Hour
)

// Counters holds a user's raw cumulative metrics.
type Counters map[Counter]float64

// Clone returns a copy safe to mutate.
func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Delta is the outcome of scoring a single event against the state it found.
type Delta struct {
	// Category receiving the points (empty when only the overall points
	// total moves, e.g. goals and transactions).
	Category Category
	// Points earned by this event after caps. Always also added to the
	// overall points total.
	Points float64
	// Counter affected and the raw amount applied to it.
	Counter  Counter
	RawDelta float64
	// SetCounter indicates the counter is assigned RawDelta rather than
	// incremented (streak length follows the newest event).
	SetCounter bool
}

// cappedPortion returns the in-bounds fraction of a raw increment under a
// monotonic cap: min(after, cap) - min(before, cap). Summation-order
// invariant, so reordering accepted events cannot change final totals.
func cappedPortion(before, raw, cap float64) float64 {
	after := before + raw
	return math.Min(after, cap) - math.Min(before, cap)
}

// Score maps one event to its point and raw-counter deltas given the user's
// counters and last streak day as they stood before this event. Pure; callers
// persist the result atomically.
func Score(ev ActivityEvent, before Counters, lastStreakDayAt time.Time) Delta {
	switch ev.Type {
	case EventTipShared:
		return Delta{Category: CategoryTips, Points: TipPoints, Counter: CounterTipCount, RawDelta: 1}
	case EventLikeReceived:
		return Delta{Category: CategoryLikes, Points: LikePoints, Counter: CounterLikeCount, RawDelta: 1}
	case EventCommentPosted:
		earned := cappedPortion(before[CounterCommentCount], 1, CommentPointCap) * CommentPoints
		return Delta{Category: CategoryComments, Points: earned, Counter: CounterCommentCount, RawDelta: 1}
	case EventSavingsLogged:
		earned := cappedPortion(before[CounterTotalSavings], ev.Magnitude, SavingsPointCap) * SavingsPointsPer100 / 100
		return Delta{Category: CategorySavings, Points: earned, Counter: CounterTotalSavings, RawDelta: ev.Magnitude}
	case EventStreakDay:
		return Delta{
			Category:   CategoryStreaks,
			Points:     StreakDayPoints,
			Counter:    CounterStreakLength,
			RawDelta:   streakLength(ev, lastStreakDayAt),
			SetCounter: true,
		}
	case EventGoalCompleted:
		return Delta{Points: GoalPoints, Counter: CounterGoalsCompleted, RawDelta: 1}
	case EventTransactionLogged:
		return Delta{Points: TransactionPoints, Counter: CounterTransactionCount, RawDelta: 1}
	}
	return Delta{}
}

// streakLength trusts the producer's day count but clamps it back to 1 when
// a whole day passed unlogged: consecutive daily events sit ~24h apart, so a
// gap beyond StreakResetGap past the expected day means the streak broke.
func streakLength(ev ActivityEvent, lastStreakDayAt time.Time) float64 {
	if !lastStreakDayAt.IsZero() && ev.OccurredAt.Sub(lastStreakDayAt) > StreakResetGap+StreakResetGap {
		return 1
	}
	if ev.Magnitude < 1 {
		return 1
	}
	return ev.Magnitude
}

// BadgeBonus is the delta for a badge's bonus points feeding back into the
// badges category.
func BadgeBonus(points float64) Delta {
	return Delta{Category: CategoryBadges, Points: points, Counter: CounterBadgesEarned, RawDelta: 1}
}
