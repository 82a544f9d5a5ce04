package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fraud_monitor/internal/domain"
	"log/slog"
	"net/http"
	"strings"
)

const CookieName = "fraudmon_session"

type contextKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	Role      domain.UserRole
	SessionID string
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}

type Authenticator struct {
	tokens   *TokenManager
	sessions SessionStore
	logger   *slog.Logger
}

func NewAuthenticator(tokens *TokenManager, sessions SessionStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{tokens: tokens, sessions: sessions, logger: logger}
}

// Authenticate resolves the session cookie or bearer token on r.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	raw := bearerToken(r)
	if raw == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return nil, ErrUnauthorized
	}

	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	live, err := a.sessions.Exists(r.Context(), claims.SessionID())
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrUnauthorized
	}

	return &Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID(),
	}, nil
}

// Middleware rejects requests without a live session with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				a.logger.ErrorContext(r.Context(), "Session lookup failed", slog.String("error", err.Error()))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
