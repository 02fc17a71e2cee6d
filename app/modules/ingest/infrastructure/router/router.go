package ingestrouter

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"

	ingesthandlers "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/infrastructure/handlers"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// Router runs the watermill consumer for the accepted-activity stream.
type Router struct {
	router *message.Router
	logger *slog.Logger
}

// New builds the stream router with correlation, recovery, retry and
// Prometheus middleware, and binds the activity handler.
func New(
	logger *slog.Logger,
	bus shared.EventBus,
	registry *prometheus.Registry,
	handlers *ingesthandlers.Handlers,
) (*Router, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}

	if registry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(registry, "gamify", "ingest")
		builder.AddPrometheusRouterMetrics(router)
	}

	retry := middleware.Retry{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		Logger:          wmLogger,
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		retry.Middleware,
	)

	router.AddNoPublisherHandler(
		"ingest.activity_accepted",
		shared.ActivityAcceptedSubject,
		bus.Subscriber(),
		handlers.HandleActivityAccepted,
	)

	return &Router{router: router, logger: logger}, nil
}

// Run blocks until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once the router has started all handlers.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	return r.router.Close()
}
