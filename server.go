package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SaveSquad-App/gamify-engine/api"
	"github.com/SaveSquad-App/gamify-engine/app"
)

// newHTTPServer mounts the API routes plus the health endpoint.
func newHTTPServer(application *app.App) *http.Server {
	handlers := api.NewHandlers(
		application.IngestSvc,
		application.Leaderboard,
		application.Badges,
		application.Logger,
	)

	root := chi.NewRouter()
	root.Mount("/", api.NewRouter(handlers, application.Cfg.HTTP.RequestsPerSecond))
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := application.HealthCheck(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              application.Cfg.HTTP.Addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newMetricsServer serves the Prometheus registry on its own listener.
// Returns nil when no metrics address is configured.
func newMetricsServer(application *app.App) *http.Server {
	addr := application.Cfg.Observability.MetricsAddress
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
