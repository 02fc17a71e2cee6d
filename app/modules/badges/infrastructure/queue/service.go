package badgequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Service runs the badge maintenance jobs on River: periodic recomputation
// of open competitive periods and sealing of closed ones.
type Service struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService builds the River client with the badge workers and periodic
// jobs registered. River needs its own pgx pool; the bun connection cannot
// be shared.
func NewService(
	ctx context.Context,
	logger *slog.Logger,
	dsn string,
	badges Recomputer,
	recomputeEvery time.Duration,
) (*Service, error) {
	if recomputeEvery <= 0 {
		recomputeEvery = time.Minute
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("badgequeue: parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("badgequeue: create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("badgequeue: ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewRecomputeWorker(logger, badges))
	river.AddWorker(workers, NewSealWorker(logger, badges))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			QueueBadges:        {MaxWorkers: 5},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(recomputeEvery),
				func() (river.JobArgs, *river.InsertOpts) {
					return RecomputeArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return SealArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("badgequeue: create River client: %w", err)
	}

	return &Service{client: client, pool: pool, logger: logger}, nil
}

// Start begins job processing.
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("badgequeue: start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "badge queue started")
	return nil
}

// Stop drains and stops job processing.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("badgequeue: stop River client: %w", err)
	}
	s.pool.Close()
	return nil
}

// EnqueueRecompute schedules an immediate reconciliation of one badge's
// period, ahead of the periodic sweep.
func (s *Service) EnqueueRecompute(ctx context.Context, badgeID, periodKey string) error {
	_, err := s.client.Insert(ctx, RecomputeArgs{BadgeID: badgeID, PeriodKey: periodKey}, nil)
	if err != nil {
		return fmt.Errorf("badgequeue: enqueue recompute: %w", err)
	}
	return nil
}

// HealthCheck verifies the queue's database connectivity.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("badgequeue: %w", err)
	}
	return nil
}
