package badgequeue

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// Recomputer is the badge service surface the queue drives.
type Recomputer interface {
	Recompute(ctx context.Context, badgeID, periodKey string) error
	RecomputeOpenPeriods(ctx context.Context, now time.Time) error
	SealElapsedPeriods(ctx context.Context, now time.Time) error
}

// RecomputeWorker reconciles competitive badge holder sets.
type RecomputeWorker struct {
	river.WorkerDefaults[RecomputeArgs]
	logger *slog.Logger
	badges Recomputer
	now    func() time.Time
}

// NewRecomputeWorker creates the recompute worker.
func NewRecomputeWorker(logger *slog.Logger, badges Recomputer) *RecomputeWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeWorker{logger: logger, badges: badges, now: time.Now}
}

func (w *RecomputeWorker) Work(ctx context.Context, job *river.Job[RecomputeArgs]) error {
	if job.Args.BadgeID == "" {
		return w.badges.RecomputeOpenPeriods(ctx, w.now())
	}
	w.logger.DebugContext(ctx, "recomputing competitive badge",
		slog.String("badge_id", job.Args.BadgeID),
		slog.String("period_key", job.Args.PeriodKey),
	)
	return w.badges.Recompute(ctx, job.Args.BadgeID, job.Args.PeriodKey)
}

// SealWorker finalizes closed periods.
type SealWorker struct {
	river.WorkerDefaults[SealArgs]
	logger *slog.Logger
	badges Recomputer
	now    func() time.Time
}

// NewSealWorker creates the sealing worker.
func NewSealWorker(logger *slog.Logger, badges Recomputer) *SealWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SealWorker{logger: logger, badges: badges, now: time.Now}
}

func (w *SealWorker) Work(ctx context.Context, job *river.Job[SealArgs]) error {
	return w.badges.SealElapsedPeriods(ctx, w.now())
}
