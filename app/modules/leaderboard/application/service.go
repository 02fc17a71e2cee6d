package leaderboardservice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	badgedomain "github.com/SaveSquad-App/gamify-engine/app/modules/badges/domain"
	badgedb "github.com/SaveSquad-App/gamify-engine/app/modules/badges/infrastructure/repositories"
	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/observability"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// Config tunes the apply retry budget and the ranking snapshot staleness.
type Config struct {
	// MaxAttempts bounds retries of an apply transaction that lost a lock
	// race before ContentionError surfaces to the caller.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// SnapshotStaleness bounds how old a served ranking snapshot may be.
	SnapshotStaleness time.Duration
}

func (c *Config) withDefaults() Config {
	out := Config{MaxAttempts: 4, BackoffBase: 25 * time.Millisecond, SnapshotStaleness: 5 * time.Second}
	if c == nil {
		return out
	}
	if c.MaxAttempts > 0 {
		out.MaxAttempts = c.MaxAttempts
	}
	if c.BackoffBase > 0 {
		out.BackoffBase = c.BackoffBase
	}
	if c.SnapshotStaleness > 0 {
		out.SnapshotStaleness = c.SnapshotStaleness
	}
	return out
}

// Service owns the aggregation store: it applies accepted activity events
// atomically and serves ranking reads from a bounded-staleness snapshot.
type Service struct {
	runner  shared.TxRunner
	repo    leaderboarddb.Repository
	badges  badgedb.Repository
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	cfg     Config

	// now is swapped out by tests.
	now func() time.Time

	snapMu   sync.Mutex
	snapshot *rankingSnapshot
}

// NewService wires the aggregation service.
func NewService(
	runner shared.TxRunner,
	repo leaderboarddb.Repository,
	badges badgedb.Repository,
	logger *slog.Logger,
	metrics *observability.Metrics,
	tracer trace.Tracer,
	cfg *Config,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("leaderboard")
	}
	return &Service{
		runner:  runner,
		repo:    repo,
		badges:  badges,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// ApplyResult reports what one accepted event did to the store.
type ApplyResult struct {
	// Duplicate is true when the event ID was already processed and the
	// store was left untouched.
	Duplicate bool
	Record    *leaderboarddb.UserScore
	// Applied maps category to the points this event granted, badge
	// bonuses included.
	Applied map[string]float64
	// NewBadges lists achievement badges this event triggered.
	NewBadges []string
}

// errRetryable lets tests drive the contention path without a database.
var errRetryable = errors.New("leaderboardservice: retryable")

// retryable reports whether the transaction lost a lock race and should be
// re-run from scratch.
func retryable(err error) bool {
	if errors.Is(err, errRetryable) {
		return true
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		switch pgErr.Field('C') {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// Apply folds one accepted activity event into the aggregation store. The
// whole mutation runs in a single transaction keyed by the per-user row
// lock; a lost lock race is retried with backoff and surfaces as
// ContentionError once the budget is spent. Replaying the same event ID is
// a no-op reported via ApplyResult.Duplicate.
func (s *Service) Apply(ctx context.Context, ev scoringdomain.ActivityEvent) (*ApplyResult, error) {
	ctx, span := s.tracer.Start(ctx, "leaderboard.Apply", trace.WithAttributes(
		attribute.String("event.id", ev.EventID),
		attribute.String("user.id", ev.UserID),
		attribute.String("event.type", string(ev.Type)),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err := s.applyOnce(ctx, ev)
		if err == nil {
			if res.Duplicate {
				s.metrics.EventDuplicate()
			} else {
				s.metrics.EventApplied()
				for _, id := range res.NewBadges {
					s.metrics.BadgeAwarded(id)
				}
			}
			return res, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		s.metrics.ApplyRetry()
		s.logger.WarnContext(ctx, "apply lost lock race, retrying",
			slog.String("event_id", ev.EventID),
			slog.String("user_id", ev.UserID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.BackoffBase << (attempt - 1)):
		}
	}
	return nil, &shared.ContentionError{Attempts: s.cfg.MaxAttempts, Err: lastErr}
}

func (s *Service) applyOnce(ctx context.Context, ev scoringdomain.ActivityEvent) (*ApplyResult, error) {
	res := &ApplyResult{}
	err := s.runner.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		// The processed-event insert is the idempotency barrier: a
		// conflicting ID means a previous transaction already committed
		// this event's effects.
		pe := &leaderboarddb.ProcessedEvent{
			EventID:     ev.EventID,
			UserID:      ev.UserID,
			Type:        string(ev.Type),
			Magnitude:   ev.Magnitude,
			CountryCode: ev.CountryCode,
			OccurredAt:  ev.OccurredAt,
			ProcessedAt: s.now(),
		}
		inserted, err := s.repo.InsertProcessedEvent(ctx, tx, pe)
		if err != nil {
			return err
		}
		if !inserted {
			res.Duplicate = true
			return nil
		}

		rec, err := s.repo.GetUserScoreForUpdate(ctx, tx, ev.UserID, ev.CountryCode)
		if err != nil {
			return err
		}
		if ev.CountryCode != "" && ev.CountryCode != scoringdomain.UnknownCountry {
			rec.CountryCode = ev.CountryCode
		}

		agg := &scoringdomain.Aggregate{
			Totals:          rec.Totals,
			Counters:        rec.Counters,
			ReachedAt:       rec.ReachedAt,
			LastStreakDayAt: rec.LastStreakDayAt,
		}
		delta := scoringdomain.Score(ev, agg.CounterValues(), agg.LastStreakDayAt)
		applied := agg.Apply(delta, ev.OccurredAt)

		monthKey := badgedomain.MonthKey(ev.OccurredAt)
		quarterKey := badgedomain.QuarterKey(ev.OccurredAt)
		if delta.Counter != "" && !delta.SetCounter && delta.RawDelta != 0 {
			for _, key := range []string{monthKey, quarterKey} {
				if err := s.repo.AddPeriodCounter(ctx, tx, ev.UserID, key, string(delta.Counter), delta.RawDelta, ev.OccurredAt); err != nil {
					return err
				}
			}
		}

		newBadges, err := s.awardAchievements(ctx, tx, ev, rec, agg, monthKey, applied)
		if err != nil {
			return err
		}

		if pts := applied[scoringdomain.CategoryPoints]; pts != 0 {
			for _, key := range []string{monthKey, quarterKey} {
				if err := s.repo.AddPeriodCounter(ctx, tx, ev.UserID, key, badgedomain.MetricPoints, pts, ev.OccurredAt); err != nil {
					return err
				}
			}
		}

		rec.LastStreakDayAt = agg.LastStreakDayAt
		rec.LastUpdatedAt = s.now()
		if err := s.repo.UpdateUserScore(ctx, tx, rec); err != nil {
			return err
		}

		rawApplied := make(map[string]float64, len(applied))
		for c, p := range applied {
			rawApplied[string(c)] = p
		}
		if err := s.repo.SetAppliedPoints(ctx, tx, ev.EventID, rawApplied); err != nil {
			return err
		}

		res.Record = rec
		res.Applied = rawApplied
		res.NewBadges = newBadges
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// awardAchievements runs the threshold badges to a fixpoint inside the
// apply transaction: a badge bonus raises the points total, which can in
// turn satisfy nothing today, but the loop keeps the invariant local.
func (s *Service) awardAchievements(
	ctx context.Context,
	tx bun.IDB,
	ev scoringdomain.ActivityEvent,
	rec *leaderboarddb.UserScore,
	agg *scoringdomain.Aggregate,
	monthKey string,
	applied map[scoringdomain.Category]float64,
) ([]string, error) {
	awards, err := s.badges.ListAwardsForUser(ctx, tx, ev.UserID)
	if err != nil {
		return nil, err
	}
	owned := map[string]bool{}
	for _, a := range awards {
		if a.PeriodKey == "" {
			owned[a.BadgeID] = true
		}
	}

	monthRaw, err := s.repo.GetPeriodCounters(ctx, tx, ev.UserID, monthKey)
	if err != nil {
		return nil, err
	}
	monthCounters := make(scoringdomain.Counters, len(monthRaw))
	for k, v := range monthRaw {
		monthCounters[scoringdomain.Counter(k)] = v
	}

	var newBadges []string
	for {
		earned := badgedomain.EvaluateAchievements(agg.CounterValues(), monthCounters, owned)
		if len(earned) == 0 {
			return newBadges, nil
		}
		for _, d := range earned {
			owned[d.ID] = true
			award := &badgedb.BadgeAward{BadgeID: d.ID, UserID: ev.UserID, AwardedAt: ev.OccurredAt}
			if err := s.badges.InsertAward(ctx, tx, award); err != nil {
				return nil, err
			}
			bonus := agg.Apply(scoringdomain.BadgeBonus(d.Points), ev.OccurredAt)
			for c, p := range bonus {
				applied[c] += p
			}
			if !rec.HasBadge(d.ID) {
				rec.Badges = append(rec.Badges, d.ID)
			}
			newBadges = append(newBadges, d.ID)
		}
	}
}
