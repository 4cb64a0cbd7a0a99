package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/domain"
	jwtinfra "github.com/store-rating-api/internal/infrastructure/jwt"
)

type contextKey string

const userKey contextKey = "user"

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type userResolver interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// Auth returns middleware that validates the Bearer JWT, loads the account it names
// and injects that user into the context. Tokens of deleted accounts are rejected.
func Auth(verifier tokenVerifier, users userResolver, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}
			u, err := users.Get(r.Context(), claims.UserID)
			if errors.Is(err, domain.ErrNotFound) {
				writeJSONError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}
			if err != nil {
				log.WithError(err).WithField("user_id", claims.UserID).Error("resolve token user")
				writeJSONError(w, http.StatusInternalServerError, "Server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok && u != nil
}
