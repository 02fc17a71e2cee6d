package badgeservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
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

// Service owns the competitive badge lifecycle: it re-ranks open periods,
// diffs the winner set against current holders inside one transaction, and
// seals periods once they close.
type Service struct {
	runner  shared.TxRunner
	scores  leaderboarddb.Repository
	awards  badgedb.Repository
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	now func() time.Time
}

// NewService wires the badge service.
func NewService(
	runner shared.TxRunner,
	scores leaderboarddb.Repository,
	awards badgedb.Repository,
	logger *slog.Logger,
	metrics *observability.Metrics,
	tracer trace.Tracer,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("badges")
	}
	return &Service{
		runner:  runner,
		scores:  scores,
		awards:  awards,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		now:     time.Now,
	}
}

type recomputeOutcome struct {
	granted []string
	revoked []string
	sealed  bool
	skipped bool
}

// Recompute re-ranks one competitive badge's period and reconciles the
// holder set. Revoking and granting happen in a single transaction, so a
// displaced user loses the badge and its points in the same instant the
// newcomer gains them. Sealed periods are left untouched.
func (s *Service) Recompute(ctx context.Context, badgeID, periodKey string) error {
	return s.recompute(ctx, badgeID, periodKey, false)
}

// SealPeriod runs one final recomputation for a closed period and marks it
// immutable, all in one transaction. Idempotent: an already-sealed period
// is a no-op.
func (s *Service) SealPeriod(ctx context.Context, badgeID, periodKey string) error {
	return s.recompute(ctx, badgeID, periodKey, true)
}

func (s *Service) recompute(ctx context.Context, badgeID, periodKey string, seal bool) error {
	def, ok := badgedomain.ByID(badgeID)
	if !ok || def.Lifecycle != badgedomain.LifecycleCompetitive {
		return shared.NewValidationError("not a competitive badge: %q", badgeID)
	}

	ctx, span := s.tracer.Start(ctx, "badges.Recompute", trace.WithAttributes(
		attribute.String("badge.id", badgeID),
		attribute.String("period.key", periodKey),
		attribute.Bool("seal", seal),
	))
	defer span.End()

	var outcome recomputeOutcome
	err := s.runner.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		o, err := s.recomputeInTx(ctx, tx, def, periodKey, seal)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	if err != nil {
		s.metrics.RecomputeError()
		return err
	}

	s.metrics.RecomputeRun()
	for range outcome.granted {
		s.metrics.BadgeAwarded(badgeID)
	}
	for range outcome.revoked {
		s.metrics.BadgeRevoked(badgeID)
	}
	if len(outcome.granted) > 0 || len(outcome.revoked) > 0 || outcome.sealed {
		s.logger.InfoContext(ctx, "competitive badge reconciled",
			slog.String("badge_id", badgeID),
			slog.String("period_key", periodKey),
			slog.Any("granted", outcome.granted),
			slog.Any("revoked", outcome.revoked),
			slog.Bool("sealed", outcome.sealed),
		)
	}
	return nil
}

func (s *Service) recomputeInTx(ctx context.Context, tx bun.IDB, def badgedomain.Definition, periodKey string, seal bool) (recomputeOutcome, error) {
	var outcome recomputeOutcome

	sealed, err := s.awards.IsSealed(ctx, tx, def.ID, periodKey)
	if err != nil {
		return outcome, err
	}
	if sealed {
		outcome.skipped = true
		return outcome, nil
	}

	ranked, err := s.scores.ListPeriodCounters(ctx, tx, periodKey, def.Ranking.Metric)
	if err != nil {
		return outcome, err
	}
	winners := map[string]bool{}
	for _, pc := range ranked {
		if len(winners) == def.Ranking.SlotLimit {
			break
		}
		if pc.Value <= 0 {
			break
		}
		winners[pc.UserID] = true
	}

	current, err := s.awards.ListAwards(ctx, tx, def.ID, periodKey)
	if err != nil {
		return outcome, err
	}
	holders := map[string]bool{}
	for _, a := range current {
		holders[a.UserID] = true
	}

	at := s.now()
	for _, a := range current {
		if winners[a.UserID] {
			continue
		}
		if err := s.revoke(ctx, tx, def, a.UserID, periodKey, at); err != nil {
			return outcome, err
		}
		outcome.revoked = append(outcome.revoked, a.UserID)
	}
	for _, pc := range ranked {
		if !winners[pc.UserID] || holders[pc.UserID] {
			continue
		}
		if err := s.grant(ctx, tx, def, pc.UserID, periodKey, at); err != nil {
			return outcome, err
		}
		outcome.granted = append(outcome.granted, pc.UserID)
	}

	if seal {
		first, err := s.awards.Seal(ctx, tx, def.ID, periodKey, at)
		if err != nil {
			return outcome, err
		}
		outcome.sealed = first
	}
	return outcome, nil
}

func (s *Service) grant(ctx context.Context, tx bun.IDB, def badgedomain.Definition, userID, periodKey string, at time.Time) error {
	award := &badgedb.BadgeAward{BadgeID: def.ID, UserID: userID, PeriodKey: periodKey, AwardedAt: at}
	if err := s.awards.InsertAward(ctx, tx, award); err != nil {
		return err
	}

	rec, err := s.scores.GetUserScoreForUpdate(ctx, tx, userID, "")
	if err != nil {
		return err
	}
	agg := &scoringdomain.Aggregate{
		Totals:          rec.Totals,
		Counters:        rec.Counters,
		ReachedAt:       rec.ReachedAt,
		LastStreakDayAt: rec.LastStreakDayAt,
	}
	agg.Apply(scoringdomain.BadgeBonus(def.Points), at)
	if !rec.HasBadge(def.ID) {
		rec.Badges = append(rec.Badges, def.ID)
	}
	rec.LastUpdatedAt = at
	return s.scores.UpdateUserScore(ctx, tx, rec)
}

func (s *Service) revoke(ctx context.Context, tx bun.IDB, def badgedomain.Definition, userID, periodKey string, at time.Time) error {
	if err := s.awards.DeleteAward(ctx, tx, def.ID, userID, periodKey); err != nil {
		return err
	}

	rec, err := s.scores.GetUserScoreForUpdate(ctx, tx, userID, "")
	if err != nil {
		return err
	}
	agg := &scoringdomain.Aggregate{
		Totals:          rec.Totals,
		Counters:        rec.Counters,
		ReachedAt:       rec.ReachedAt,
		LastStreakDayAt: rec.LastStreakDayAt,
	}
	agg.Remove(scoringdomain.CategoryBadges, def.Points, at)
	agg.Counters[string(scoringdomain.CounterBadgesEarned)]--

	// Another period's award of the same badge keeps it on display.
	remaining, err := s.awards.ListAwardsForUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	stillHolds := false
	for _, a := range remaining {
		if a.BadgeID == def.ID {
			stillHolds = true
			break
		}
	}
	if !stillHolds {
		rec.RemoveBadge(def.ID)
	}
	rec.LastUpdatedAt = at
	return s.scores.UpdateUserScore(ctx, tx, rec)
}

// RecomputeOpenPeriods reconciles every competitive badge for the period
// open at time now.
func (s *Service) RecomputeOpenPeriods(ctx context.Context, now time.Time) error {
	for _, def := range badgedomain.Competitive() {
		key := badgedomain.PeriodKeyFor(def.Ranking.Period, now)
		if err := s.Recompute(ctx, def.ID, key); err != nil {
			return err
		}
	}
	return nil
}

// SealElapsedPeriods finalizes every competitive badge whose previous
// period has closed. Safe to run repeatedly.
func (s *Service) SealElapsedPeriods(ctx context.Context, now time.Time) error {
	for _, def := range badgedomain.Competitive() {
		key := badgedomain.PreviousPeriodKey(def.Ranking.Period, now)
		if !badgedomain.Sealed(key, now) {
			continue
		}
		if err := s.SealPeriod(ctx, def.ID, key); err != nil {
			return err
		}
	}
	return nil
}

// UserBadge is one badge a user holds, joined with its catalog entry.
type UserBadge struct {
	BadgeID   string    `json:"badgeId"`
	Name      string    `json:"name"`
	Points    float64   `json:"points"`
	Lifecycle string    `json:"lifecycle"`
	Category  string    `json:"category"`
	PeriodKey string    `json:"periodKey,omitempty"`
	AwardedAt time.Time `json:"awardedAt"`
}

// UserBadges returns the badges a user currently holds, oldest first.
func (s *Service) UserBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	awards, err := s.awards.ListAwardsForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	out := make([]UserBadge, 0, len(awards))
	for _, a := range awards {
		def, ok := badgedomain.ByID(a.BadgeID)
		if !ok {
			continue
		}
		out = append(out, UserBadge{
			BadgeID:   a.BadgeID,
			Name:      def.Name,
			Points:    def.Points,
			Lifecycle: string(def.Lifecycle),
			Category:  string(def.Category),
			PeriodKey: a.PeriodKey,
			AwardedAt: a.AwardedAt,
		})
	}
	return out, nil
}
