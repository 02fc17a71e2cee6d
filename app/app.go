package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/SaveSquad-App/gamify-engine/app/eventbus"
	badgeservice "github.com/SaveSquad-App/gamify-engine/app/modules/badges/application"
	badgequeue "github.com/SaveSquad-App/gamify-engine/app/modules/badges/infrastructure/queue"
	ingestservice "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/application"
	ingesthandlers "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/infrastructure/handlers"
	ingestrouter "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/infrastructure/router"
	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	"github.com/SaveSquad-App/gamify-engine/app/observability"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
	"github.com/SaveSquad-App/gamify-engine/config"
	"github.com/SaveSquad-App/gamify-engine/db/bundb"
)

// App wires the engine's modules: the database, the activity stream, the
// scoring and badge services, and the background queue.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	EventBus     shared.EventBus
	IngestSvc    *ingestservice.Service
	Leaderboard  *leaderboardservice.Service
	Badges       *badgeservice.Service
	StreamRouter *ingestrouter.Router
	Queue        *badgequeue.Service

	db *bundb.DBService
}

// NewApp initializes the application with the necessary services and
// configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	bus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	if err := bus.CreateStream(ctx, shared.ActivityStream, []string{shared.ActivityAcceptedSubject}); err != nil {
		bus.Close()
		dbService.Close()
		return nil, fmt.Errorf("failed to provision activity stream: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	tracer := otel.Tracer("gamify-engine")

	runner := &shared.BunTxRunner{DB: dbService.GetDB()}

	leaderboard := leaderboardservice.NewService(
		runner,
		dbService.LeaderboardDB,
		dbService.BadgeDB,
		logger,
		metrics,
		tracer,
		&leaderboardservice.Config{
			MaxAttempts:       cfg.Engine.ApplyMaxAttempts,
			BackoffBase:       cfg.Engine.ApplyBackoffBase,
			SnapshotStaleness: cfg.Engine.SnapshotStaleness,
		},
	)
	badges := badgeservice.NewService(
		runner,
		dbService.LeaderboardDB,
		dbService.BadgeDB,
		logger,
		metrics,
		tracer,
	)
	ingest := ingestservice.NewService(bus, dbService.LeaderboardDB, logger, metrics, tracer)

	streamRouter, err := ingestrouter.New(logger, bus, registry, ingesthandlers.New(leaderboard, logger))
	if err != nil {
		bus.Close()
		dbService.Close()
		return nil, fmt.Errorf("failed to build stream router: %w", err)
	}

	queue, err := badgequeue.NewService(ctx, logger, cfg.Postgres.DSN, badges, cfg.Engine.RecomputeInterval)
	if err != nil {
		streamRouter.Close()
		bus.Close()
		dbService.Close()
		return nil, fmt.Errorf("failed to initialize badge queue: %w", err)
	}

	return &App{
		Cfg:          cfg,
		Logger:       logger,
		Registry:     registry,
		EventBus:     bus,
		IngestSvc:    ingest,
		Leaderboard:  leaderboard,
		Badges:       badges,
		StreamRouter: streamRouter,
		Queue:        queue,
		db:           dbService,
	}, nil
}

// DB returns the database service.
func (a *App) DB() *bundb.DBService {
	return a.db
}

// HealthCheck verifies the database, the event bus, and the queue.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.db.HealthCheck(ctx); err != nil {
		return err
	}
	if err := a.EventBus.HealthCheck(ctx); err != nil {
		return err
	}
	return a.Queue.HealthCheck(ctx)
}

// Close releases every component, tolerating partial failures.
func (a *App) Close(ctx context.Context) {
	if err := a.Queue.Stop(ctx); err != nil {
		a.Logger.Error("failed to stop badge queue", slog.Any("error", err))
	}
	if err := a.StreamRouter.Close(); err != nil {
		a.Logger.Error("failed to close stream router", slog.Any("error", err))
	}
	if err := a.EventBus.Close(); err != nil {
		a.Logger.Error("failed to close event bus", slog.Any("error", err))
	}
	if err := a.db.Close(); err != nil {
		a.Logger.Error("failed to close database", slog.Any("error", err))
	}
}
