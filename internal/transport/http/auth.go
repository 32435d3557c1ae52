package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gadzooks/quiz-superbowl-seahawks-patriots-sub001/internal/domain"
)

const roleAdmin = "admin"

type adminClaims struct {
	jwt.RegisteredClaims
	LeagueID string `json:"league_id"`
	Role     string `json:"role"`
}

// TokenIssuer signs and verifies league admin tokens (HS256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token granting admin rights on leagueID.
func (t *TokenIssuer) Issue(leagueID string) (string, error) {
	now := t.now()
	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   leagueID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		LeagueID: leagueID,
		Role:     roleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the league the token administers.
func (t *TokenIssuer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &adminClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*adminClaims)
	if !ok || !parsed.Valid || claims.Role != roleAdmin || claims.LeagueID == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.LeagueID, nil
}

// RequireLeagueAdmin rejects requests whose bearer token does not administer
// the league in the {id} path parameter.
func (t *TokenIssuer) RequireLeagueAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		leagueID, err := t.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, err)
			return
		}
		if leagueID != chi.URLParam(r, "id") {
			writeJSON(w, http.StatusForbidden, errorPayload{Message: "token does not administer this league"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
