package scoringdomain

import "time"

// EventType identifies the kind of activity a user performed.
type EventType string

const (
	EventTipShared         EventType = "tip_shared"
	EventLikeReceived      EventType = "like_received"
	EventCommentPosted     EventType = "comment_posted"
	EventSavingsLogged     EventType = "savings_logged"
	EventStreakDay         EventType = "streak_day"
	EventGoalCompleted     EventType = "goal_completed"
	EventTransactionLogged EventType = "transaction_logged"
)

// KnownEventType reports whether t is one of the accepted activity types.
func KnownEventType(t EventType) bool {
	switch t {
	case EventTipShared, EventLikeReceived, EventCommentPosted,
		EventSavingsLogged, EventStreakDay, EventGoalCompleted,
		EventTransactionLogged:
		return true
	}
	return false
}

// RequiresMagnitude reports whether t carries a meaningful magnitude that
// must be positive (an amount in pounds, or a streak day count). The
// remaining types represent a single occurrence each.
func RequiresMagnitude(t EventType) bool {
	return t == EventSavingsLogged || t == EventStreakDay
}

// Category is an independent scoring dimension a user can be ranked on.
type Category string

const (
	CategoryPoints   Category = "points"
	CategoryTips     Category = "tips"
	CategoryLikes    Category = "likes"
	CategoryComments Category = "comments"
	CategorySavings  Category = "savings"
	CategoryStreaks  Category = "streaks"
	CategoryBadges   Category = "badges"
)

// Categories lists every rankable dimension.
func Categories() []Category {
	return []Category{
		CategoryPoints, CategoryTips, CategoryLikes, CategoryComments,
		CategorySavings, CategoryStreaks, CategoryBadges,
	}
}

// KnownCategory reports whether c is a rankable dimension.
func KnownCategory(c Category) bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Counter names a raw cumulative metric tracked per user. Counters feed both
// the diminishing-returns caps and the achievement badge thresholds.
type Counter string

const (
	CounterTipCount         Counter = "tipCount"
	CounterLikeCount        Counter = "likeCount"
	CounterCommentCount     Counter = "commentCount"
	CounterTotalSavings     Counter = "totalSavings"
	CounterStreakLength     Counter = "streakLength"
	CounterGoalsCompleted   Counter = "goalsCompleted"
	CounterTransactionCount Counter = "transactionCount"
	CounterBadgesEarned     Counter = "badgesEarned"
)

// UnknownCountry is the sentinel scope for users whose country could not be
// resolved. They appear on world boards but never on country boards.
const UnknownCountry = "UNKNOWN"

// NormalizeCountry upper-cases a two-letter country code; anything else
// collapses to UnknownCountry.
func NormalizeCountry(code string) string {
	if len(code) != 2 {
		return UnknownCountry
	}
	out := make([]byte, 2)
	for i := 0; i < 2; i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out[i] = c
		case c >= 'a' && c <= 'z':
			out[i] = c - ('a' - 'A')
		default:
			return UnknownCountry
		}
	}
	return string(out)
}

// ActivityEvent is the sole input to scoring. Immutable once accepted.
type ActivityEvent struct {
	EventID     string    `json:"eventId"`
	UserID      string    `json:"userId"`
	Type        EventType `json:"type"`
	Magnitude   float64   `json:"magnitude"`
	CountryCode string    `json:"countryCode"`
	OccurredAt  time.Time `json:"occurredAt"`
}
