package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutoskio/BDD-grandir2.0/internal/classify"
	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
	"github.com/plutoskio/BDD-grandir2.0/internal/score"
	"github.com/plutoskio/BDD-grandir2.0/internal/store"
)

func ptrFloat64(v float64) *float64 { return &v }

func newTestAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.UpsertRole(ctx, "role-cap", "Auxiliaire petite enfance",
		requirement.AnyOf(model.CategoryCAP, model.CategoryAP)))
	require.NoError(t, st.UpsertCandidate(ctx, model.Candidate{
		ID:           "cand-1",
		Coordinate:   &model.Coordinate{Lat: 48.8417, Lon: 2.2911},
		RawDiplomas:  []string{"CAP AEPE"},
		QualityScore: ptrFloat64(80),
	}))
	require.NoError(t, st.UpsertPosting(ctx, model.Posting{
		ID:         "post-1",
		RoleID:     "role-cap",
		Nursery:    "Crèche Vaugirard",
		Coordinate: &model.Coordinate{Lat: 48.8530, Lon: 2.2830},
		Urgency:    model.UrgencyRed,
		Status:     model.PostingOpen,
	}))

	ranker, err := match.NewRanker(score.DefaultScoringConfig(), 2)
	require.NoError(t, err)

	return &api{
		store:    st,
		rules:    classify.Default(),
		ranker:   ranker,
		redirect: config.RedirectConfig{MinCurrentKM: 10, RadiusKM: 5},
		workers:  2,
	}
}

func TestServeHealth(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeRank(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rank", "application/json", strings.NewReader(`{"top": 5}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res match.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "cand-1", m.CandidateID)
	assert.Equal(t, "post-1", m.PostingID)
	assert.True(t, m.Qualified)
	require.NotNil(t, m.Score.Composite)
	assert.InDelta(t, 96.0, *m.Score.Composite, 0.001)
}

func TestServeRankEmptyBody(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rank", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeRankBadBody(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rank", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeRankMinScoreFilter(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rank", "application/json", strings.NewReader(`{"min_score": 99}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res match.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Empty(t, res.Matches)
}

func TestServeRankInlinePayload(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	// Inline sets bypass the store entirely; raw labels get classified
	// server-side.
	body := `{
		"candidates": [{"id": "inline-1", "coordinate": {"lat": 48.8417, "lon": 2.2911}, "raw_diplomas": ["DEEJE"]}],
		"postings": [{"id": "inline-p", "role_id": "r", "coordinate": {"lat": 48.8530, "lon": 2.2830}, "urgency": "red", "status": "open"}],
		"requirements": {"r": [["EJE"]]}
	}`
	resp, err := http.Post(srv.URL+"/rank", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res match.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "inline-1", res.Matches[0].CandidateID)
	assert.True(t, res.Matches[0].Qualified)
}

func TestServeRankInvalidScoringOverride(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	// Weights not summing to 1.0 must be rejected before any scoring.
	body := `{"scoring": {"distance_weight": 0.9, "urgency_weight": 0.9}}`
	resp, err := http.Post(srv.URL+"/rank", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeRedirects(t *testing.T) {
	a := newTestAPI(t)

	// A far green posting the candidate currently matches, so the close
	// red posting becomes a redirect target.
	require.NoError(t, a.store.UpsertPosting(context.Background(), model.Posting{
		ID:         "post-green-far",
		RoleID:     "role-cap",
		Coordinate: &model.Coordinate{Lat: 48.60, Lon: 2.45},
		Urgency:    model.UrgencyGreen,
		Status:     model.PostingOpen,
	}))

	srv := httptest.NewServer(a.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/redirects")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var redirects []match.Redirect
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&redirects))
	require.Len(t, redirects, 1)
	assert.Equal(t, "cand-1", redirects[0].CandidateID)
	assert.Equal(t, "post-green-far", redirects[0].FromPostingID)
	assert.Equal(t, "post-1", redirects[0].ToPostingID)
}
