package domain

import "errors"

var (
	// ErrLeagueNotFound is returned when a league id is unknown.
	ErrLeagueNotFound = errors.New("league not found")
	// ErrParticipantNotFound is returned when a participant has not joined the league.
	ErrParticipantNotFound = errors.New("participant not found in league")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidQuestionSet indicates a question set failed validation at load time.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrTeamNameTaken is returned when another participant already uses the team name.
	ErrTeamNameTaken = errors.New("team name already taken")
	// ErrInvalidTeamName is returned for empty team names.
	ErrInvalidTeamName = errors.New("team name is required")
	// ErrSubmissionsClosed is returned when predictions change after the league was locked.
	ErrSubmissionsClosed = errors.New("submissions are closed")
	// ErrUnauthorized is returned when an admin-only action lacks a valid token.
	ErrUnauthorized = errors.New("unauthorized")
)
