package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"mealswipe/internal/model"
	"mealswipe/internal/service"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc    *service.AuthService
	cookieName string
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc, cookieName: cookieName}
}

// RequireUser resolves the access token from the Authorization header, the
// access cookie or the token query param, in that order
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			if c, err := r.Cookie(m.cookieName); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
			return
		}

		principal, err := m.authSvc.Authenticate(r.Context(), token)
		if errors.Is(err, service.ErrInvalidToken) {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.Printf("Authentication failed: %v", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin only lets platform admins through. It must run after
// RequireUser.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok || !p.IsAdmin {
			http.Error(w, `{"error":"admin only"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPrincipal extracts the authenticated principal from context
func GetPrincipal(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(model.Principal)
	return p, ok
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
