package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// respondError maps domain errors onto HTTP status codes: validation 400,
// missing records 404, exhausted contention budgets 503, the rest 500.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		h.respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, leaderboardservice.ErrNotRanked),
		errors.Is(err, leaderboarddb.ErrNotFound):
		h.respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case shared.IsContention(err):
		h.respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store is busy, retry shortly"})
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		h.respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
