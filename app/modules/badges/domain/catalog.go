package badgedomain

import (
	"fmt"
	"time"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// Lifecycle distinguishes the two award protocols.
type Lifecycle string

const (
	// LifecycleAchievement badges are threshold-triggered and permanent.
	LifecycleAchievement Lifecycle = "achievement"
	// LifecycleCompetitive badges are period-scoped, limited-slot and
	// re-ranked until their period seals.
	LifecycleCompetitive Lifecycle = "competitive"
)

// Category groups badges for the gallery UI.
type Category string

const (
	CategoryStarter    Category = "starter"
	CategoryMilestones Category = "milestones"
	CategoryStreaks    Category = "streaks"
	CategoryCommunity  Category = "community"
	CategorySpecial    Category = "special"
	CategoryMonthly    Category = "monthly"
	CategorySeasonal   Category = "seasonal"
)

// Period is the scoring window length for competitive badges.
type Period string

const (
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
)

// ThresholdRule triggers an achievement badge once a raw counter reaches Min.
// WithinCalendarMonth evaluates the counter's delta inside the event's
// calendar month instead of the lifetime value.
type ThresholdRule struct {
	Counter             scoringdomain.Counter
	Min                 float64
	WithinCalendarMonth bool
}

// RankingRule awards a competitive badge to the top SlotLimit users by a
// period-scoped metric delta.
type RankingRule struct {
	// Metric is a counter name, or MetricPoints for overall point deltas.
	Metric    string
	SlotLimit int
	Period    Period
}

// MetricPoints ranks competitive badges by overall points earned in the
// period rather than a single raw counter.
const MetricPoints = "points"

// Definition is a static catalog entry.
type Definition struct {
	ID        string
	Name      string
	Points    float64
	Category  Category
	Lifecycle Lifecycle
	Threshold *ThresholdRule
	Ranking   *RankingRule
}

var catalog = []Definition{
	{ID: "first_steps", Name: "First Steps", Points: 150, Category: CategoryStarter, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTransactionCount, Min: 1}},
	{ID: "money_tracker", Name: "Money Tracker", Points: 500, Category: CategoryMilestones, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTransactionCount, Min: 100}},
	{ID: "first_grand", Name: "First Grand", Points: 750, Category: CategoryMilestones, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTotalSavings, Min: 1000, WithinCalendarMonth: true}},
	{ID: "super_saver", Name: "Super Saver", Points: 1000, Category: CategoryMilestones, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTotalSavings, Min: 10000}},
	{ID: "vault_keeper", Name: "Vault Keeper", Points: 2500, Category: CategorySpecial, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTotalSavings, Min: 50000}},
	{ID: "goal_getter", Name: "Goal Getter", Points: 500, Category: CategoryMilestones, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterGoalsCompleted, Min: 1}},
	{ID: "goal_crusher", Name: "Goal Crusher", Points: 1500, Category: CategoryMilestones, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterGoalsCompleted, Min: 10}},
	{ID: "week_warrior", Name: "Week Warrior", Points: 400, Category: CategoryStreaks, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterStreakLength, Min: 7}},
	{ID: "month_master", Name: "Month Master", Points: 1000, Category: CategoryStreaks, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterStreakLength, Min: 30}},
	{ID: "helping_hand", Name: "Helping Hand", Points: 300, Category: CategoryCommunity, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterTipCount, Min: 5}},
	{ID: "conversation_starter", Name: "Conversation Starter", Points: 200, Category: CategoryCommunity, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterCommentCount, Min: 10}},
	{ID: "crowd_favourite", Name: "Crowd Favourite", Points: 600, Category: CategoryCommunity, Lifecycle: LifecycleAchievement,
		Threshold: &ThresholdRule{Counter: scoringdomain.CounterLikeCount, Min: 100}},

	{ID: "top_saver", Name: "Top Saver", Points: 1000, Category: CategoryMonthly, Lifecycle: LifecycleCompetitive,
		Ranking: &RankingRule{Metric: string(scoringdomain.CounterTotalSavings), SlotLimit: 3, Period: PeriodMonthly}},
	{ID: "tip_master", Name: "Tip Master", Points: 800, Category: CategoryMonthly, Lifecycle: LifecycleCompetitive,
		Ranking: &RankingRule{Metric: string(scoringdomain.CounterTipCount), SlotLimit: 3, Period: PeriodMonthly}},
	{ID: "most_liked", Name: "Most Liked", Points: 600, Category: CategoryMonthly, Lifecycle: LifecycleCompetitive,
		Ranking: &RankingRule{Metric: string(scoringdomain.CounterLikeCount), SlotLimit: 1, Period: PeriodMonthly}},
	{ID: "seasonal_champion", Name: "Seasonal Champion", Points: 2000, Category: CategorySeasonal, Lifecycle: LifecycleCompetitive,
		Ranking: &RankingRule{Metric: MetricPoints, SlotLimit: 5, Period: PeriodQuarterly}},
}

// Catalog returns the full static badge catalog.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// ByID looks up a catalog entry.
func ByID(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Achievements returns the threshold-based entries.
func Achievements() []Definition {
	var out []Definition
	for _, d := range catalog {
		if d.Lifecycle == LifecycleAchievement {
			out = append(out, d)
		}
	}
	return out
}

// Competitive returns the limited-slot entries.
func Competitive() []Definition {
	var out []Definition
	for _, d := range catalog {
		if d.Lifecycle == LifecycleCompetitive {
			out = append(out, d)
		}
	}
	return out
}

// EvaluateAchievements returns the achievement badges newly satisfied by the
// given state. counters are lifetime values; monthCounters are the deltas
// accumulated inside the current calendar month (for month-scoped rules).
// owned must contain every badge the user already holds or ever held.
func EvaluateAchievements(counters scoringdomain.Counters, monthCounters scoringdomain.Counters, owned map[string]bool) []Definition {
	var earned []Definition
	for _, d := range catalog {
		if d.Lifecycle != LifecycleAchievement || owned[d.ID] {
			continue
		}
		value := counters[d.Threshold.Counter]
		if d.Threshold.WithinCalendarMonth {
			value = monthCounters[d.Threshold.Counter]
		}
		if value >= d.Threshold.Min {
			earned = append(earned, d)
		}
	}
	return earned
}

// MonthKey returns the period key for t's calendar month, e.g. "2025-11".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// QuarterKey returns the period key for t's calendar quarter, e.g. "2025-Q4".
func QuarterKey(t time.Time) string {
	t = t.UTC()
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", t.Year(), q)
}

// PeriodKeyFor returns the open period key for a ranking rule at time t.
func PeriodKeyFor(p Period, t time.Time) string {
	if p == PeriodQuarterly {
		return QuarterKey(t)
	}
	return MonthKey(t)
}

// PeriodEnd returns the instant the named period closes (exclusive).
func PeriodEnd(key string) (time.Time, error) {
	var year, q int
	if _, err := fmt.Sscanf(key, "%d-Q%d", &year, &q); err == nil && q >= 1 && q <= 4 {
		return time.Date(year, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC), nil
	}
	start, err := time.Parse("2006-01", key)
	if err != nil {
		return time.Time{}, fmt.Errorf("badgedomain.PeriodEnd: bad period key %q: %w", key, err)
	}
	return start.AddDate(0, 1, 0), nil
}

// Sealed reports whether the named period has already closed at time now.
func Sealed(key string, now time.Time) bool {
	end, err := PeriodEnd(key)
	if err != nil {
		return false
	}
	return !now.Before(end)
}

// PreviousPeriodKey returns the period key immediately before the one open
// at time t.
func PreviousPeriodKey(p Period, t time.Time) string {
	t = t.UTC()
	if p == PeriodQuarterly {
		return QuarterKey(t.AddDate(0, -3, -t.Day()+1))
	}
	return MonthKey(t.AddDate(0, 0, -t.Day()))
}
