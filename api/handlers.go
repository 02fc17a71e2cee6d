package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	badgedomain "github.com/SaveSquad-App/gamify-engine/app/modules/badges/domain"
	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

// SubmitEvent accepts one activity event. 202 on acceptance, 200 for an
// idempotent replay, 400 for malformed input.
func (h *Handlers) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var ev scoringdomain.ActivityEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.respondError(w, r, shared.NewValidationError("malformed JSON body: %v", err))
		return
	}

	res, err := h.ingest.Submit(r.Context(), ev)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if res.Duplicate {
		h.respondJSON(w, http.StatusOK, res)
		return
	}
	h.respondJSON(w, http.StatusAccepted, res)
}

// boardQuery pulls the common leaderboard parameters out of the URL.
func boardQuery(r *http.Request) (scoringdomain.Category, leaderboardservice.Scope, string, int) {
	q := r.URL.Query()

	category := scoringdomain.CategoryPoints
	if v := q.Get("category"); v != "" {
		category = scoringdomain.Category(v)
	}
	scope := leaderboardservice.ScopeWorld
	if v := q.Get("scope"); v != "" {
		scope = leaderboardservice.Scope(v)
	}
	country := scoringdomain.NormalizeCountry(q.Get("country"))
	if q.Get("country") == "" {
		country = ""
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return category, scope, country, limit
}

// GetLeaderboard serves the top of one board.
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, scope, country, limit := boardQuery(r)

	entries, err := h.boards.Leaderboard(r.Context(), category, scope, country, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"scope":    scope,
		"entries":  entries,
	})
}

// GetLeaderboardChart serves the board as a PNG bar chart.
func (h *Handlers) GetLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	category, scope, country, limit := boardQuery(r)

	png, err := h.boards.RenderChart(r.Context(), category, scope, country, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// GetUserRank serves one user's standing on a board.
func (h *Handlers) GetUserRank(w http.ResponseWriter, r *http.Request) {
	category, scope, country, _ := boardQuery(r)
	userID := chi.URLParam(r, "userID")

	pos, err := h.boards.UserRank(r.Context(), userID, category, scope, country)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, pos)
}

// GetUserBadges lists the badges a user currently holds.
func (h *Handlers) GetUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	badges, err := h.badges.UserBadges(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"userId": userID,
		"badges": badges,
	})
}

type catalogThreshold struct {
	Counter             string  `json:"counter"`
	Min                 float64 `json:"min"`
	WithinCalendarMonth bool    `json:"withinCalendarMonth,omitempty"`
}

type catalogRanking struct {
	Metric    string `json:"metric"`
	SlotLimit int    `json:"slotLimit"`
	Period    string `json:"period"`
}

type catalogEntry struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Points    float64           `json:"points"`
	Category  string            `json:"category"`
	Lifecycle string            `json:"lifecycle"`
	Threshold *catalogThreshold `json:"threshold,omitempty"`
	Ranking   *catalogRanking   `json:"ranking,omitempty"`
}

// GetBadgeCatalog serves the static badge catalog.
func (h *Handlers) GetBadgeCatalog(w http.ResponseWriter, r *http.Request) {
	defs := badgedomain.Catalog()
	out := make([]catalogEntry, 0, len(defs))
	for _, d := range defs {
		e := catalogEntry{
			ID:        d.ID,
			Name:      d.Name,
			Points:    d.Points,
			Category:  string(d.Category),
			Lifecycle: string(d.Lifecycle),
		}
		if d.Threshold != nil {
			e.Threshold = &catalogThreshold{
				Counter:             string(d.Threshold.Counter),
				Min:                 d.Threshold.Min,
				WithinCalendarMonth: d.Threshold.WithinCalendarMonth,
			}
		}
		if d.Ranking != nil {
			e.Ranking = &catalogRanking{
				Metric:    d.Ranking.Metric,
				SlotLimit: d.Ranking.SlotLimit,
				Period:    string(d.Ranking.Period),
			}
		}
		out = append(out, e)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"badges": out})
}

// ExportLeaderboard streams the full board as an xlsx workbook.
func (h *Handlers) ExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, scope, country, _ := boardQuery(r)

	raw, err := h.boards.ExportXLSX(r.Context(), category, scope, country)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// VerifyUser replays a user's event log against their stored record.
func (h *Handlers) VerifyUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	report, err := h.boards.VerifyUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}
