package badgedomain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

func TestCatalogIntegrity(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Catalog() {
		assert.False(t, seen[d.ID], "duplicate badge id %s", d.ID)
		seen[d.ID] = true
		assert.Greater(t, d.Points, 0.0, d.ID)
		switch d.Lifecycle {
		case LifecycleAchievement:
			require.NotNil(t, d.Threshold, d.ID)
			assert.Nil(t, d.Ranking, d.ID)
		case LifecycleCompetitive:
			require.NotNil(t, d.Ranking, d.ID)
			assert.Nil(t, d.Threshold, d.ID)
			assert.Greater(t, d.Ranking.SlotLimit, 0, d.ID)
		default:
			t.Fatalf("badge %s has unknown lifecycle %q", d.ID, d.Lifecycle)
		}
	}
}

func TestEvaluateAchievements(t *testing.T) {
	tests := []struct {
		name     string
		counters scoringdomain.Counters
		month    scoringdomain.Counters
		owned    map[string]bool
		want     []string
	}{
		{
			name:     "first transaction",
			counters: scoringdomain.Counters{scoringdomain.CounterTransactionCount: 1},
			want:     []string{"first_steps"},
		},
		{
			name:     "owned badges are skipped",
			counters: scoringdomain.Counters{scoringdomain.CounterTransactionCount: 1},
			owned:    map[string]bool{"first_steps": true},
			want:     nil,
		},
		{
			name:     "month scoped rule ignores lifetime value",
			counters: scoringdomain.Counters{scoringdomain.CounterTotalSavings: 5000},
			month:    scoringdomain.Counters{scoringdomain.CounterTotalSavings: 400},
			want:     nil,
		},
		{
			name:     "month scoped rule fires on month delta",
			counters: scoringdomain.Counters{scoringdomain.CounterTotalSavings: 1200},
			month:    scoringdomain.Counters{scoringdomain.CounterTotalSavings: 1200},
			want:     []string{"first_grand"},
		},
		{
			name: "several at once",
			counters: scoringdomain.Counters{
				scoringdomain.CounterGoalsCompleted: 10,
				scoringdomain.CounterStreakLength:   7,
			},
			want: []string{"goal_getter", "goal_crusher", "week_warrior"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owned := tt.owned
			if owned == nil {
				owned = map[string]bool{}
			}
			earned := EvaluateAchievements(tt.counters, tt.month, owned)
			var ids []string
			for _, d := range earned {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPeriodKeys(t *testing.T) {
	nov := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-11", MonthKey(nov))
	assert.Equal(t, "2025-Q4", QuarterKey(nov))

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01", MonthKey(jan))
	assert.Equal(t, "2026-Q1", QuarterKey(jan))

	assert.Equal(t, "2025-11", PeriodKeyFor(PeriodMonthly, nov))
	assert.Equal(t, "2025-Q4", PeriodKeyFor(PeriodQuarterly, nov))
}

func TestPeriodEnd(t *testing.T) {
	end, err := PeriodEnd("2025-11")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), end)

	end, err = PeriodEnd("2025-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	end, err = PeriodEnd("2025-Q4")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	end, err = PeriodEnd("2026-Q2")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), end)

	_, err = PeriodEnd("gibberish")
	assert.Error(t, err)
}

func TestSealed(t *testing.T) {
	assert.True(t, Sealed("2025-11", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Sealed("2025-11", time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC)))
	assert.True(t, Sealed("2025-Q4", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Sealed("2025-Q4", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestPreviousPeriodKey(t *testing.T) {
	midNov := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-10", PreviousPeriodKey(PeriodMonthly, midNov))
	assert.Equal(t, "2025-Q3", PreviousPeriodKey(PeriodQuarterly, midNov))

	newYear := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-12", PreviousPeriodKey(PeriodMonthly, newYear))
	assert.Equal(t, "2025-Q4", PreviousPeriodKey(PeriodQuarterly, newYear))
}
