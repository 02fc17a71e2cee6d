package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	badgeservice "github.com/SaveSquad-App/gamify-engine/app/modules/badges/application"
	ingestservice "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/application"
	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
)

// Ingestor accepts raw activity submissions.
type Ingestor interface {
	Submit(ctx context.Context, ev scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error)
}

// Boards serves ranking reads and admin operations.
type Boards interface {
	Leaderboard(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]leaderboardservice.Entry, error)
	UserRank(ctx context.Context, userID string, category scoringdomain.Category, scope leaderboardservice.Scope, country string) (*leaderboardservice.Position, error)
	RenderChart(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]byte, error)
	ExportXLSX(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string) ([]byte, error)
	VerifyUser(ctx context.Context, userID string) (*leaderboardservice.AuditReport, error)
}

// Badges serves badge reads.
type Badges interface {
	UserBadges(ctx context.Context, userID string) ([]badgeservice.UserBadge, error)
}

// Handlers is the HTTP surface of the engine.
type Handlers struct {
	ingest Ingestor
	boards Boards
	badges Badges
	logger *slog.Logger
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(ingest Ingestor, boards Boards, badges Badges, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{ingest: ingest, boards: boards, badges: badges, logger: logger}
}

// NewRouter mounts the API routes. requestsPerSecond <= 0 disables the
// throttle (tests).
func NewRouter(h *Handlers, requestsPerSecond float64) chi.Router {
	r := chi.NewRouter()
	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		chimiddleware.Timeout(30*time.Second),
	)
	if requestsPerSecond > 0 {
		r.Use(throttle(rate.Limit(requestsPerSecond), int(requestsPerSecond)*2))
	}

	r.Post("/events", h.SubmitEvent)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/leaderboard/chart", h.GetLeaderboardChart)
	r.Get("/users/{userID}/rank", h.GetUserRank)
	r.Get("/users/{userID}/badges", h.GetUserBadges)
	r.Get("/badges/catalog", h.GetBadgeCatalog)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/leaderboard/export", h.ExportLeaderboard)
		r.Post("/users/{userID}/verify", h.VerifyUser)
	})

	return r
}

// throttle applies a global token-bucket limit across all routes.
func throttle(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
