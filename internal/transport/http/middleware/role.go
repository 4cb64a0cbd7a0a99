package middleware

import (
	"net/http"

	"github.com/store-rating-api/internal/domain"
)

// RequirePermission returns middleware that lets the request through only when the
// authenticated user's role satisfies allowed, e.g. domain.Role.CanManageUsers.
// The role is the one stored on the account, not the one in the token.
func RequirePermission(allowed func(domain.Role) bool, denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			if !allowed(u.Role) {
				writeJSONError(w, http.StatusForbidden, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
