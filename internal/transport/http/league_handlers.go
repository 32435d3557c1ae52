package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/app"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/export"
	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/questions"
)

// LeagueHandlers serves the REST surface of the league use cases.
type LeagueHandlers struct {
	service *app.LeagueService
	tokens  *TokenIssuer
	logger  *slog.Logger
}

func NewLeagueHandlers(service *app.LeagueService, tokens *TokenIssuer, logger *slog.Logger) *LeagueHandlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LeagueHandlers{service: service, tokens: tokens, logger: logger}
}

type createLeagueRequest struct {
	Name          string `json:"name"`
	QuestionSetID string `json:"questionSetId"`
}

type createLeagueResponse struct {
	League     domain.League `json:"league"`
	AdminToken string        `json:"adminToken"`
}

type joinRequest struct {
	TeamName string `json:"teamName"`
}

type answersRequest struct {
	Answers domain.Answers `json:"answers"`
}

type submissionsRequest struct {
	Closed bool `json:"closed"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return false
	}
	return true
}

// CreateLeague handles POST /leagues.
func (h *LeagueHandlers) CreateLeague(w http.ResponseWriter, r *http.Request) {
	var req createLeagueRequest
	if !decode(w, r, &req) {
		return
	}
	if req.QuestionSetID == "" {
		req.QuestionSetID = questions.DefaultSetID
	}
	league, err := h.service.CreateLeague(r.Context(), req.Name, req.QuestionSetID)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := h.tokens.Issue(league.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue admin token", slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createLeagueResponse{League: league, AdminToken: token})
}

// GetLeague handles GET /leagues/{id}.
func (h *LeagueHandlers) GetLeague(w http.ResponseWriter, r *http.Request) {
	league, err := h.service.GetLeague(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, league)
}

// Questions handles GET /leagues/{id}/questions.
func (h *LeagueHandlers) Questions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.service.Questions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// Join handles POST /leagues/{id}/participants.
func (h *LeagueHandlers) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.service.Join(r.Context(), chi.URLParam(r, "id"), req.TeamName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SaveAnswers handles PUT /leagues/{id}/participants/{pid}/answers for
// clients that do not hold a websocket session.
func (h *LeagueHandlers) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	leagueID := chi.URLParam(r, "id")
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	qs, err := h.service.Questions(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}
	edits, err := resolveAnswers(qs, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.service.SavePredictions(r.Context(), leagueID, chi.URLParam(r, "pid"), edits)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Submit handles POST /leagues/{id}/participants/{pid}/submit.
func (h *LeagueHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Leaderboard handles GET /leagues/{id}/leaderboard.
func (h *LeagueHandlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// LeaderboardXLSX handles GET /leagues/{id}/leaderboard.xlsx.
func (h *LeagueHandlers) LeaderboardXLSX(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	if err := export.WriteLeaderboardXLSX(w, lb); err != nil {
		h.logger.ErrorContext(r.Context(), "write leaderboard xlsx",
			slog.String("league_id", lb.LeagueID),
			slog.Any("error", err),
		)
	}
}

// SaveResults handles PUT /leagues/{id}/results (admin).
func (h *LeagueHandlers) SaveResults(w http.ResponseWriter, r *http.Request) {
	leagueID := chi.URLParam(r, "id")
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	qs, err := h.service.Questions(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}
	edits, err := resolveAnswers(qs, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	lb, err := h.service.SaveResults(r.Context(), leagueID, edits)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// Recalculate handles POST /leagues/{id}/recalculate (admin).
func (h *LeagueHandlers) Recalculate(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Recalculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// SetSubmissions handles PUT /leagues/{id}/submissions (admin).
func (h *LeagueHandlers) SetSubmissions(w http.ResponseWriter, r *http.Request) {
	var req submissionsRequest
	if !decode(w, r, &req) {
		return
	}
	league, err := h.service.SetSubmissionsClosed(r.Context(), chi.URLParam(r, "id"), req.Closed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, league)
}
