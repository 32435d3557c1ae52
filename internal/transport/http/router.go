package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes bundles everything the router mounts.
type Routes struct {
	Leagues *LeagueHandlers
	WS      *WSHandler
	Tokens  *TokenIssuer
	Limiter *IPRateLimiter
	Metrics http.Handler
	// TrustProxy rewrites RemoteAddr from proxy headers before rate limiting.
	TrustProxy bool
}

// NewRouter builds the chi router for the REST, websocket and metrics surfaces.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	if rt.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	r.Group(func(r chi.Router) {
		if rt.Limiter != nil {
			r.Use(rt.Limiter.Middleware)
		}
		r.Get("/ws", rt.WS.ServeWS)
		r.Route("/leagues", rt.leagueRoutes)
	})
	return r
}

func (rt Routes) leagueRoutes(r chi.Router) {
	r.Post("/", rt.Leagues.CreateLeague)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", rt.Leagues.GetLeague)
		r.Get("/questions", rt.Leagues.Questions)
		r.Post("/participants", rt.Leagues.Join)
		r.Put("/participants/{pid}/answers", rt.Leagues.SaveAnswers)
		r.Post("/participants/{pid}/submit", rt.Leagues.Submit)
		r.Get("/leaderboard", rt.Leagues.Leaderboard)
		r.Get("/leaderboard.xlsx", rt.Leagues.LeaderboardXLSX)

		r.Group(func(r chi.Router) {
			r.Use(rt.Tokens.RequireLeagueAdmin)
			r.Put("/results", rt.Leagues.SaveResults)
			r.Post("/recalculate", rt.Leagues.Recalculate)
			r.Put("/submissions", rt.Leagues.SetSubmissions)
		})
	})
}
