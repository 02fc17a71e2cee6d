package scoringdomain

import "time"

// Aggregate is the mutable scoring state of one user, expressed over the
// raw maps the store persists. The Apply transaction and the replay audit
// both mutate state through this type so the two paths cannot drift.
type Aggregate struct {
	Totals          map[string]float64
	Counters        map[string]float64
	ReachedAt       map[string]time.Time
	LastStreakDayAt time.Time
}

// NewAggregate returns an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{
		Totals:    map[string]float64{},
		Counters:  map[string]float64{},
		ReachedAt: map[string]time.Time{},
	}
}

// CounterValues returns a typed view of the raw counters for Score.
func (a *Aggregate) CounterValues() Counters {
	out := make(Counters, len(a.Counters))
	for k, v := range a.Counters {
		out[Counter(k)] = v
	}
	return out
}

// Apply folds one scored delta into the aggregate and returns the points
// granted per category (including the overall points total). at is the
// event's occurredAt, which stamps the tie-break timestamps.
func (a *Aggregate) Apply(d Delta, at time.Time) map[Category]float64 {
	if d.Counter != "" {
		if d.SetCounter {
			// Streak length follows the newest event by occurredAt so
			// replaying in a different arrival order converges.
			if a.LastStreakDayAt.IsZero() || at.After(a.LastStreakDayAt) {
				a.Counters[string(d.Counter)] = d.RawDelta
				a.LastStreakDayAt = at
			}
		} else {
			a.Counters[string(d.Counter)] += d.RawDelta
		}
	}

	applied := map[Category]float64{}
	if d.Points != 0 {
		if d.Category != "" {
			a.Totals[string(d.Category)] += d.Points
			a.ReachedAt[string(d.Category)] = at
			applied[d.Category] = d.Points
		}
		a.Totals[string(CategoryPoints)] += d.Points
		a.ReachedAt[string(CategoryPoints)] = at
		applied[CategoryPoints] += d.Points
	}
	return applied
}

// Remove subtracts previously granted category points (competitive badge
// revocation). at restamps the tie-break timestamp for the changed totals.
func (a *Aggregate) Remove(c Category, points float64, at time.Time) {
	if points == 0 {
		return
	}
	a.Totals[string(c)] -= points
	a.ReachedAt[string(c)] = at
	a.Totals[string(CategoryPoints)] -= points
	a.ReachedAt[string(CategoryPoints)] = at
}
