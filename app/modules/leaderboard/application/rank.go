package leaderboardservice

import (
	"context"
	"errors"
	"sort"
	"time"

	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// Scope selects the population a board ranks over.
type Scope string

const (
	ScopeWorld   Scope = "world"
	ScopeCountry Scope = "country"
)

// ErrNotRanked is returned when a user has no standing on the requested
// board (no positive total, or outside the country scope).
var ErrNotRanked = errors.New("leaderboardservice: user not ranked")

// Entry is one leaderboard row.
type Entry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	Value       float64   `json:"value"`
	CountryCode string    `json:"countryCode"`
	ReachedAt   time.Time `json:"reachedAt"`
}

// Position is a single user's standing on a board.
type Position struct {
	Rank         int     `json:"rank"`
	Value        float64 `json:"value"`
	Participants int     `json:"participants"`
}

type rankingSnapshot struct {
	records []leaderboarddb.UserScore
	takenAt time.Time
}

// Leaderboard returns the top rows of one board. limit <= 0 returns the
// whole board. Reads come from a snapshot no older than the configured
// staleness bound, so they never contend with apply transactions.
func (s *Service) Leaderboard(ctx context.Context, category scoringdomain.Category, scope Scope, country string, limit int) ([]Entry, error) {
	entries, err := s.ranked(ctx, category, scope, country)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// UserRank returns one user's standing on a board, ranked against the full
// population of the same snapshot a Leaderboard call would serve.
func (s *Service) UserRank(ctx context.Context, userID string, category scoringdomain.Category, scope Scope, country string) (*Position, error) {
	entries, err := s.ranked(ctx, category, scope, country)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return &Position{Rank: e.Rank, Value: e.Value, Participants: len(entries)}, nil
		}
	}
	return nil, ErrNotRanked
}

func (s *Service) ranked(ctx context.Context, category scoringdomain.Category, scope Scope, country string) ([]Entry, error) {
	if !scoringdomain.KnownCategory(category) {
		return nil, shared.NewValidationError("unknown category %q", category)
	}
	switch scope {
	case ScopeWorld:
	case ScopeCountry:
		if country == "" || country == scoringdomain.UnknownCountry {
			return nil, shared.NewValidationError("country scope requires a country code")
		}
	default:
		return nil, shared.NewValidationError("unknown scope %q", scope)
	}

	snap, err := s.currentSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rankEntries(snap.records, category, scope, country), nil
}

func (s *Service) currentSnapshot(ctx context.Context) (*rankingSnapshot, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapshot != nil && s.now().Sub(s.snapshot.takenAt) < s.cfg.SnapshotStaleness {
		return s.snapshot, nil
	}
	records, err := s.repo.ListUserScores(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.snapshot = &rankingSnapshot{records: records, takenAt: s.now()}
	return s.snapshot, nil
}

// rankEntries orders one board: value descending, then the earlier
// reached-at timestamp, then user ID. Ranks are sequential, so tied values
// still occupy distinct positions. Zero totals never appear, and users with
// an unresolved country never appear on country boards.
func rankEntries(records []leaderboarddb.UserScore, category scoringdomain.Category, scope Scope, country string) []Entry {
	var entries []Entry
	for i := range records {
		rec := &records[i]
		if scope == ScopeCountry {
			if rec.CountryCode == scoringdomain.UnknownCountry || rec.CountryCode != country {
				continue
			}
		}
		value := rec.Total(category)
		if value <= 0 {
			continue
		}
		entries = append(entries, Entry{
			UserID:      rec.UserID,
			Value:       value,
			CountryCode: rec.CountryCode,
			ReachedAt:   rec.ReachedAt[string(category)],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		if !entries[i].ReachedAt.Equal(entries[j].ReachedAt) {
			return entries[i].ReachedAt.Before(entries[j].ReachedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
