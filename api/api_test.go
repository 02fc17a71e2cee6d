package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgeservice "github.com/SaveSquad-App/gamify-engine/app/modules/badges/application"
	ingestservice "github.com/SaveSquad-App/gamify-engine/app/modules/ingest/application"
	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
)

type fakeIngest struct {
	submitFunc func(ctx context.Context, ev scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error)
}

func (f *fakeIngest) Submit(ctx context.Context, ev scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error) {
	return f.submitFunc(ctx, ev)
}

type fakeBoards struct {
	leaderboardFunc func(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]leaderboardservice.Entry, error)
	userRankFunc    func(ctx context.Context, userID string, category scoringdomain.Category, scope leaderboardservice.Scope, country string) (*leaderboardservice.Position, error)
	renderChartFunc func(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]byte, error)
	exportFunc      func(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string) ([]byte, error)
	verifyFunc      func(ctx context.Context, userID string) (*leaderboardservice.AuditReport, error)
}

func (f *fakeBoards) Leaderboard(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]leaderboardservice.Entry, error) {
	return f.leaderboardFunc(ctx, category, scope, country, limit)
}

func (f *fakeBoards) UserRank(ctx context.Context, userID string, category scoringdomain.Category, scope leaderboardservice.Scope, country string) (*leaderboardservice.Position, error) {
	return f.userRankFunc(ctx, userID, category, scope, country)
}

func (f *fakeBoards) RenderChart(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]byte, error) {
	return f.renderChartFunc(ctx, category, scope, country, limit)
}

func (f *fakeBoards) ExportXLSX(ctx context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string) ([]byte, error) {
	return f.exportFunc(ctx, category, scope, country)
}

func (f *fakeBoards) VerifyUser(ctx context.Context, userID string) (*leaderboardservice.AuditReport, error) {
	return f.verifyFunc(ctx, userID)
}

type fakeBadges struct {
	userBadgesFunc func(ctx context.Context, userID string) ([]badgeservice.UserBadge, error)
}

func (f *fakeBadges) UserBadges(ctx context.Context, userID string) ([]badgeservice.UserBadge, error) {
	return f.userBadgesFunc(ctx, userID)
}

func newTestRouter(ingest *fakeIngest, boards *fakeBoards, badges *fakeBadges) http.Handler {
	if ingest == nil {
		ingest = &fakeIngest{}
	}
	if boards == nil {
		boards = &fakeBoards{}
	}
	if badges == nil {
		badges = &fakeBadges{}
	}
	return NewRouter(NewHandlers(ingest, boards, badges, nil), 0)
}

func TestSubmitEvent(t *testing.T) {
	body := `{"userId":"user-a","type":"tip_shared"}`

	t.Run("accepted", func(t *testing.T) {
		ingest := &fakeIngest{submitFunc: func(_ context.Context, ev scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error) {
			assert.Equal(t, "user-a", ev.UserID)
			return &ingestservice.SubmitResult{EventID: "ev-1"}, nil
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		newTestRouter(ingest, nil, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var res ingestservice.SubmitResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "ev-1", res.EventID)
	})

	t.Run("duplicate replay returns 200", func(t *testing.T) {
		ingest := &fakeIngest{submitFunc: func(context.Context, scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error) {
			return &ingestservice.SubmitResult{EventID: "ev-1", Duplicate: true}, nil
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		newTestRouter(ingest, nil, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		ingest := &fakeIngest{submitFunc: func(context.Context, scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error) {
			return nil, shared.NewValidationError("unknown event type")
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		newTestRouter(ingest, nil, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString("{nope"))
		newTestRouter(nil, nil, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("contention returns 503", func(t *testing.T) {
		ingest := &fakeIngest{submitFunc: func(context.Context, scoringdomain.ActivityEvent) (*ingestservice.SubmitResult, error) {
			return nil, &shared.ContentionError{Attempts: 4}
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		newTestRouter(ingest, nil, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetLeaderboard(t *testing.T) {
	boards := &fakeBoards{leaderboardFunc: func(_ context.Context, category scoringdomain.Category, scope leaderboardservice.Scope, country string, limit int) ([]leaderboardservice.Entry, error) {
		assert.Equal(t, scoringdomain.CategorySavings, category)
		assert.Equal(t, leaderboardservice.ScopeCountry, scope)
		assert.Equal(t, "FR", country)
		assert.Equal(t, 5, limit)
		return []leaderboardservice.Entry{{Rank: 1, UserID: "user-a", Value: 42, CountryCode: "FR"}}, nil
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaderboard?category=savings&scope=country&country=fr&limit=5", nil)
	newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []leaderboardservice.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "user-a", body.Entries[0].UserID)
}

func TestGetLeaderboardValidation(t *testing.T) {
	boards := &fakeBoards{leaderboardFunc: func(context.Context, scoringdomain.Category, leaderboardservice.Scope, string, int) ([]leaderboardservice.Entry, error) {
		return nil, shared.NewValidationError("unknown category")
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaderboard?category=bogus", nil)
	newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLeaderboardChart(t *testing.T) {
	boards := &fakeBoards{renderChartFunc: func(context.Context, scoringdomain.Category, leaderboardservice.Scope, string, int) ([]byte, error) {
		return []byte("\x89PNGfake"), nil
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaderboard/chart", nil)
	newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestGetUserRank(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		boards := &fakeBoards{userRankFunc: func(_ context.Context, userID string, _ scoringdomain.Category, _ leaderboardservice.Scope, _ string) (*leaderboardservice.Position, error) {
			assert.Equal(t, "user-a", userID)
			return &leaderboardservice.Position{Rank: 3, Value: 77, Participants: 9}, nil
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/user-a/rank", nil)
		newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var pos leaderboardservice.Position
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
		assert.Equal(t, 3, pos.Rank)
		assert.Equal(t, 9, pos.Participants)
	})

	t.Run("not ranked returns 404", func(t *testing.T) {
		boards := &fakeBoards{userRankFunc: func(context.Context, string, scoringdomain.Category, leaderboardservice.Scope, string) (*leaderboardservice.Position, error) {
			return nil, leaderboardservice.ErrNotRanked
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/ghost/rank", nil)
		newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetUserBadges(t *testing.T) {
	badges := &fakeBadges{userBadgesFunc: func(_ context.Context, userID string) ([]badgeservice.UserBadge, error) {
		return []badgeservice.UserBadge{{BadgeID: "first_steps", Name: "First Steps", Points: 150, AwardedAt: time.Now()}}, nil
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/user-a/badges", nil)
	newTestRouter(nil, nil, badges).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Badges []badgeservice.UserBadge `json:"badges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Badges, 1)
	assert.Equal(t, "first_steps", body.Badges[0].BadgeID)
}

func TestGetBadgeCatalog(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/badges/catalog", nil)
	newTestRouter(nil, nil, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Badges []catalogEntry `json:"badges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Badges, 16)
	for _, b := range body.Badges {
		assert.NotEmpty(t, b.ID)
		if b.Lifecycle == "competitive" {
			assert.NotNil(t, b.Ranking, b.ID)
		} else {
			assert.NotNil(t, b.Threshold, b.ID)
		}
	}
}

func TestExportLeaderboard(t *testing.T) {
	boards := &fakeBoards{exportFunc: func(context.Context, scoringdomain.Category, leaderboardservice.Scope, string) ([]byte, error) {
		return []byte("PK"), nil
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/leaderboard/export", nil)
	newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheet")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leaderboard.xlsx")
}

func TestVerifyUser(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		boards := &fakeBoards{verifyFunc: func(_ context.Context, userID string) (*leaderboardservice.AuditReport, error) {
			return &leaderboardservice.AuditReport{UserID: userID, Consistent: true, Events: 7}, nil
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/users/user-a/verify", nil)
		newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var report leaderboardservice.AuditReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.True(t, report.Consistent)
	})

	t.Run("unknown user returns 404", func(t *testing.T) {
		boards := &fakeBoards{verifyFunc: func(context.Context, string) (*leaderboardservice.AuditReport, error) {
			return nil, leaderboarddb.ErrNotFound
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/users/ghost/verify", nil)
		newTestRouter(nil, boards, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestThrottle(t *testing.T) {
	router := NewRouter(NewHandlers(&fakeIngest{}, &fakeBoards{}, &fakeBadges{}, nil), 1)

	var denied bool
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/badges/catalog", nil)
		router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			denied = true
		}
	}
	assert.True(t, denied)
}
