package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createLeague(t *testing.T, srv *testServer) createLeagueResponse {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/leagues", "", createLeagueRequest{Name: "Office", QuestionSetID: testSetID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[createLeagueResponse](t, resp)
}

func TestLeagueLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	created := createLeague(t, srv)
	require.NotEmpty(t, created.AdminToken)
	base := srv.URL + "/leagues/" + created.League.ID

	resp := do(t, http.MethodGet, base+"/questions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	qs := decodeBody[[]domain.Question](t, resp)
	require.Len(t, qs, 3)
	assert.Equal(t, "winner", qs[0].ID)

	resp = do(t, http.MethodPost, base+"/participants", "", joinRequest{TeamName: "Hawks"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hawks := decodeBody[domain.Participant](t, resp)

	resp = do(t, http.MethodPost, base+"/participants", "", joinRequest{TeamName: " hawks "})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/participants/"+hawks.ID+"/answers", "", map[string]any{
		"answers": map[string]any{"winner": "seahawks", "margin": 4, "total": 50},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decodeBody[domain.Participant](t, resp)
	assert.Equal(t, domain.TextAnswer("Seahawks"), saved.Answers["winner"])

	resp = do(t, http.MethodPut, base+"/results", created.AdminToken, map[string]any{
		"answers": map[string]any{"winner": "Seahawks", "margin": 4, "total": 45},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lb := decodeBody[domain.Leaderboard](t, resp)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 8, lb.Entries[0].Score)
	require.NotNil(t, lb.Entries[0].TiebreakDiff)
	assert.Equal(t, 5, *lb.Entries[0].TiebreakDiff)

	resp = do(t, http.MethodPost, base+"/recalculate", created.AdminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/submissions", created.AdminToken, submissionsRequest{Closed: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[domain.League](t, resp).SubmissionsClosed)

	resp = do(t, http.MethodPut, base+"/participants/"+hawks.ID+"/answers", "", map[string]any{
		"answers": map[string]any{"margin": 10},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 8, decodeBody[domain.Leaderboard](t, resp).Entries[0].Score)
}

func TestAdminRoutesRequireLeagueToken(t *testing.T) {
	srv := newTestServer(t, nil)
	first := createLeague(t, srv)
	second := createLeague(t, srv)
	url := srv.URL + "/leagues/" + first.League.ID + "/recalculate"

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, url, "", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, url, "garbage", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodPost, url, second.AdminToken, nil).StatusCode)

	other := NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.Issue(first.League.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, url, forged, nil).StatusCode)

	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, url, first.AdminToken, nil).StatusCode)
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	now := time.Date(2026, 2, 8, 18, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("league-1")
	require.NoError(t, err)
	leagueID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "league-1", leagueID)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUnknownLeagueIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := do(t, http.MethodGet, srv.URL+"/leagues/missing/leaderboard", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/leagues", "", createLeagueRequest{Name: "x", QuestionSetID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLeaderboardXLSX(t *testing.T) {
	srv := newTestServer(t, nil)
	created := createLeague(t, srv)
	do(t, http.MethodPost, srv.URL+"/leagues/"+created.League.ID+"/participants", "", joinRequest{TeamName: "Hawks"})

	resp := do(t, http.MethodGet, srv.URL+"/leagues/"+created.League.ID+"/leaderboard.xlsx", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Leaderboard")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hawks", rows[1][1])
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(rate.Every(time.Hour), 1))

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/leagues/missing", "", nil).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodGet, srv.URL+"/leagues/missing", "", nil).StatusCode)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "", nil).StatusCode)
}

func TestRateLimiterIgnoresForwardedForUnlessTrusted(t *testing.T) {
	srv := newTestServer(t, NewIPRateLimiter(rate.Every(time.Hour), 1))

	get := func(path, forwardedFor string) int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNotFound, get("/leagues/missing", "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("/leagues/missing", "203.0.113.2"))
	// the websocket endpoint shares the bucket
	assert.Equal(t, http.StatusTooManyRequests, get("/ws?leagueId=abc", "203.0.113.3"))
}
