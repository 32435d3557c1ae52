package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/infra/memory"
)

const testSetID = "sb"

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:    testSetID,
		Event: "Big Game",
		Questions: []domain.Question{
			{ID: "winner", Label: "Who wins?", Type: domain.QuestionRadio, Options: []string{"Seahawks", "Patriots"}, Points: 5, SortOrder: 1},
			{ID: "margin", Label: "Winning margin", Type: domain.QuestionNumber, Points: 3, SortOrder: 2},
			{ID: "total", Label: "Total points", Type: domain.QuestionNumber, SortOrder: 3, IsTiebreaker: true},
		},
	}
}

func newTestService() *app.LeagueService {
	return newTestServiceWithStore(memory.NewLeagueStore())
}

func newTestServiceWithStore(store app.LeagueStore) *app.LeagueService {
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleSet()), time.Minute)
	return app.NewLeagueService(store, repo, memory.NewHubStore())
}

type testServer struct {
	*httptest.Server
	service *app.LeagueService
	tokens  *TokenIssuer
}

func newTestServer(t *testing.T, limiter *IPRateLimiter, wsOpts ...WSOption) *testServer {
	t.Helper()
	return newTestServerWithService(t, newTestService(), limiter, wsOpts...)
}

func newTestServerWithService(t *testing.T, service *app.LeagueService, limiter *IPRateLimiter, wsOpts ...WSOption) *testServer {
	t.Helper()
	tokens := NewTokenIssuer("test-secret", time.Hour)
	if limiter == nil {
		limiter = NewIPRateLimiter(rate.Inf, 1)
	}
	handler := NewRouter(Routes{
		Leagues: NewLeagueHandlers(service, tokens, nil),
		WS:      NewWSHandler(service, wsOpts...),
		Tokens:  tokens,
		Limiter: limiter,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, service: service, tokens: tokens}
}
