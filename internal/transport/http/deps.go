package http

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/application/auth"
	"github.com/store-rating-api/internal/application/registration"
	"github.com/store-rating-api/internal/application/store"
	"github.com/store-rating-api/internal/application/user"
	"github.com/store-rating-api/internal/domain"
	jwtinfra "github.com/store-rating-api/internal/infrastructure/jwt"
)

// TokenVerifier is the minimal interface the router requires to authenticate requests.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// UserLookup resolves the account named by a verified token.
type UserLookup interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// Deps holds the application services and collaborators the router wires into handlers.
type Deps struct {
	Registration registration.Service
	Auth         auth.Service
	Users        user.Service
	Stores       store.Service

	Tokens TokenVerifier
	Lookup UserLookup
	Log    logrus.FieldLogger
}
