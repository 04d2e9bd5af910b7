package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey int

const claimsKey contextKey = iota

// Authenticator resolves a session token into its claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

type AuthMiddleware struct {
	auth       Authenticator
	cookieName string
	logger     *logrus.Logger
}

func NewAuthMiddleware(auth Authenticator, cookieName string, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		auth:       auth,
		cookieName: cookieName,
		logger:     logger,
	}
}

// RequireAuth accepts the session token as a bearer token or as the session
// cookie, in that order.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.tokenFrom(r)
		if !ok {
			respondWithMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if models.KindOf(err) == models.KindInternal {
				m.logger.WithError(err).Error("Session check failed")
				respondWithMessage(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			m.logger.WithError(err).Debug("Token verification failed")
			respondWithMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		setLoggedUser(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) tokenFrom(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// RequireRole must run behind RequireAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				respondWithMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondWithMessage(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

func WithClaims(ctx context.Context, claims *service.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*service.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*service.Claims)
	return claims, ok && claims != nil
}

func respondWithMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
