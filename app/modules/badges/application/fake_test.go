package badgeservice

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/uptrace/bun"

	badgedb "github.com/SaveSquad-App/gamify-engine/app/modules/badges/infrastructure/repositories"
	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
)

// memRunner emulates transaction semantics over the in-memory stores.
type memRunner struct {
	store  *memStore
	badges *memBadges
}

func (r *memRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	storeSnap := r.store.clone()
	badgeSnap := r.badges.clone()
	if err := fn(ctx, nil); err != nil {
		r.store.restore(storeSnap)
		r.badges.restore(badgeSnap)
		return err
	}
	return nil
}

func newMemWorld() (*memRunner, *memStore, *memBadges) {
	store := newMemStore()
	badges := newMemBadges()
	return &memRunner{store: store, badges: badges}, store, badges
}

type memStore struct {
	scores  map[string]*leaderboarddb.UserScore
	events  map[string]*leaderboarddb.ProcessedEvent
	periods map[string]*leaderboarddb.PeriodCounter
}

func newMemStore() *memStore {
	return &memStore{
		scores:  map[string]*leaderboarddb.UserScore{},
		events:  map[string]*leaderboarddb.ProcessedEvent{},
		periods: map[string]*leaderboarddb.PeriodCounter{},
	}
}

func cloneScore(u *leaderboarddb.UserScore) *leaderboarddb.UserScore {
	cp := *u
	cp.Totals = maps.Clone(u.Totals)
	cp.Counters = maps.Clone(u.Counters)
	cp.ReachedAt = maps.Clone(u.ReachedAt)
	cp.Badges = append([]string(nil), u.Badges...)
	return &cp
}

func (m *memStore) clone() *memStore {
	cp := newMemStore()
	for k, v := range m.scores {
		cp.scores[k] = cloneScore(v)
	}
	for k, v := range m.events {
		ev := *v
		ev.AppliedPoints = maps.Clone(v.AppliedPoints)
		cp.events[k] = &ev
	}
	for k, v := range m.periods {
		pc := *v
		cp.periods[k] = &pc
	}
	return cp
}

func (m *memStore) restore(from *memStore) {
	m.scores = from.scores
	m.events = from.events
	m.periods = from.periods
}

func (m *memStore) GetUserScore(_ context.Context, _ bun.IDB, userID string) (*leaderboarddb.UserScore, error) {
	rec, ok := m.scores[userID]
	if !ok {
		return nil, leaderboarddb.ErrNotFound
	}
	return cloneScore(rec), nil
}

func (m *memStore) GetUserScoreForUpdate(_ context.Context, _ bun.IDB, userID, countryCode string) (*leaderboarddb.UserScore, error) {
	rec, ok := m.scores[userID]
	if !ok {
		rec = leaderboarddb.NewUserScore(userID, countryCode)
		m.scores[userID] = rec
	}
	return cloneScore(rec), nil
}

func (m *memStore) UpdateUserScore(_ context.Context, _ bun.IDB, rec *leaderboarddb.UserScore) error {
	if _, ok := m.scores[rec.UserID]; !ok {
		return leaderboarddb.ErrNoRowsAffected
	}
	m.scores[rec.UserID] = cloneScore(rec)
	return nil
}

func (m *memStore) ListUserScores(_ context.Context, _ bun.IDB) ([]leaderboarddb.UserScore, error) {
	ids := make([]string, 0, len(m.scores))
	for id := range m.scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]leaderboarddb.UserScore, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneScore(m.scores[id]))
	}
	return out, nil
}

func (m *memStore) FlagUserScore(_ context.Context, _ bun.IDB, userID string) error {
	rec, ok := m.scores[userID]
	if !ok {
		return leaderboarddb.ErrNoRowsAffected
	}
	rec.Flagged = true
	return nil
}

func (m *memStore) InsertProcessedEvent(_ context.Context, _ bun.IDB, ev *leaderboarddb.ProcessedEvent) (bool, error) {
	if _, ok := m.events[ev.EventID]; ok {
		return false, nil
	}
	cp := *ev
	m.events[ev.EventID] = &cp
	return true, nil
}

func (m *memStore) SetAppliedPoints(_ context.Context, _ bun.IDB, eventID string, applied map[string]float64) error {
	ev, ok := m.events[eventID]
	if !ok {
		return leaderboarddb.ErrNoRowsAffected
	}
	ev.AppliedPoints = maps.Clone(applied)
	return nil
}

func (m *memStore) HasProcessedEvent(_ context.Context, _ bun.IDB, eventID string) (bool, error) {
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *memStore) ListProcessedEventsForUser(_ context.Context, _ bun.IDB, userID string) ([]leaderboarddb.ProcessedEvent, error) {
	var out []leaderboarddb.ProcessedEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func periodCounterKey(userID, period, metric string) string {
	return userID + "\x00" + period + "\x00" + metric
}

func (m *memStore) AddPeriodCounter(_ context.Context, _ bun.IDB, userID, period, metric string, delta float64, at time.Time) error {
	key := periodCounterKey(userID, period, metric)
	pc, ok := m.periods[key]
	if !ok {
		pc = &leaderboarddb.PeriodCounter{UserID: userID, PeriodKey: period, Metric: metric}
		m.periods[key] = pc
	}
	pc.Value += delta
	if at.After(pc.UpdatedAt) {
		pc.UpdatedAt = at
	}
	return nil
}

func (m *memStore) ListPeriodCounters(_ context.Context, _ bun.IDB, period, metric string) ([]leaderboarddb.PeriodCounter, error) {
	var out []leaderboarddb.PeriodCounter
	for _, pc := range m.periods {
		if pc.PeriodKey == period && pc.Metric == metric {
			out = append(out, *pc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *memStore) GetPeriodCounters(_ context.Context, _ bun.IDB, userID, period string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, pc := range m.periods {
		if pc.UserID == userID && pc.PeriodKey == period {
			out[pc.Metric] = pc.Value
		}
	}
	return out, nil
}

type memBadges struct {
	awards []badgedb.BadgeAward
	seals  map[string]time.Time
	nextID int64
}

func newMemBadges() *memBadges {
	return &memBadges{seals: map[string]time.Time{}, nextID: 1}
}

func (m *memBadges) clone() *memBadges {
	cp := newMemBadges()
	cp.awards = append([]badgedb.BadgeAward(nil), m.awards...)
	cp.seals = maps.Clone(m.seals)
	cp.nextID = m.nextID
	return cp
}

func (m *memBadges) restore(from *memBadges) {
	m.awards = from.awards
	m.seals = from.seals
	m.nextID = from.nextID
}

func (m *memBadges) ListAwardsForUser(_ context.Context, _ bun.IDB, userID string) ([]badgedb.BadgeAward, error) {
	var out []badgedb.BadgeAward
	for _, a := range m.awards {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.Before(out[j].AwardedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memBadges) ListAwards(_ context.Context, _ bun.IDB, badgeID, periodKey string) ([]badgedb.BadgeAward, error) {
	var out []badgedb.BadgeAward
	for _, a := range m.awards {
		if a.BadgeID == badgeID && a.PeriodKey == periodKey {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memBadges) InsertAward(_ context.Context, _ bun.IDB, award *badgedb.BadgeAward) error {
	for _, a := range m.awards {
		if a.BadgeID == award.BadgeID && a.UserID == award.UserID && a.PeriodKey == award.PeriodKey {
			return nil
		}
	}
	award.ID = m.nextID
	m.nextID++
	m.awards = append(m.awards, *award)
	return nil
}

func (m *memBadges) DeleteAward(_ context.Context, _ bun.IDB, badgeID, userID, periodKey string) error {
	kept := m.awards[:0:0]
	for _, a := range m.awards {
		if a.BadgeID == badgeID && a.UserID == userID && a.PeriodKey == periodKey {
			continue
		}
		kept = append(kept, a)
	}
	m.awards = kept
	return nil
}

func (m *memBadges) IsSealed(_ context.Context, _ bun.IDB, badgeID, periodKey string) (bool, error) {
	_, ok := m.seals[badgeID+"\x00"+periodKey]
	return ok, nil
}

func (m *memBadges) Seal(_ context.Context, _ bun.IDB, badgeID, periodKey string, at time.Time) (bool, error) {
	key := badgeID + "\x00" + periodKey
	if _, ok := m.seals[key]; ok {
		return false, nil
	}
	m.seals[key] = at
	return true, nil
}
