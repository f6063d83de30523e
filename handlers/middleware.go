package handlers

import (
	"net/http"
	"strings"

	"github.com/CrowderSoup/teamboard/services"
)

type contextKey string

const roleContextKey contextKey = "role"

// AuthMiddleware resolves the request credential to a role before any
// protected handler runs.
type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// credential pulls the presented secret or session token from the
// request: X-Auth-Key header, Authorization bearer, or ?key= query.
func credential(r *http.Request) string {
	if key := r.Header.Get("X-Auth-Key"); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if authParts := strings.Split(authHeader, " "); len(authParts) == 2 && authParts[0] == "Bearer" {
		return authParts[1]
	}
	return r.URL.Query().Get("key")
}

// Auth rejects requests with no resolvable role with 401.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := m.authService.ResolveRole(credential(r))
		if role == services.RoleNone {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withRole(r.Context(), role)))
	})
}

// RequireAdmin rejects non-admin roles with 403. Must run after Auth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if roleFrom(r.Context()) != services.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
