package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const fieldPasswordHash = "password_hash"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (token string, u *domain.User, err error)
	UpdatePassword(ctx context.Context, userID int64, req UpdatePasswordRequest) error
	DeleteAccount(ctx context.Context, userID int64) error
	UserDetails(ctx context.Context, userID int64) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID int64, updates map[string]interface{}) error
}

type pendingChecker interface {
	HasPending(ctx context.Context, email string) (bool, error)
}

type accountRemover interface {
	RemoveAccount(ctx context.Context, userID int64) error
}

type jwtSigner interface {
	Sign(userID int64, role domain.Role) (string, error)
}

type ServiceDeps struct {
	UserRepo     userStore
	Registration pendingChecker
	Accounts     accountRemover
	JWTProvider  jwtSigner
	Log          logrus.FieldLogger
	HashCost     int
}

type service struct {
	repo         userStore
	registration pendingChecker
	accounts     accountRemover
	jwtProvider  jwtSigner
	log          logrus.FieldLogger
	hashCost     int
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:         deps.UserRepo,
		registration: deps.Registration,
		accounts:     deps.Accounts,
		jwtProvider:  deps.JWTProvider,
		log:          deps.Log,
		hashCost:     deps.HashCost,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func (s *service) Login(ctx context.Context, req LoginRequest) (string, *domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		pending, perr := s.registration.HasPending(ctx, email)
		if perr != nil {
			return "", nil, perr
		}
		if pending {
			return "", nil, domain.Errorf(domain.ErrBadRequest, "Please verify your email first. Check your inbox for OTP.")
		}
		return "", nil, domain.Errorf(domain.ErrBadRequest, "Invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, domain.Errorf(domain.ErrBadRequest, "Invalid credentials")
	}
	token, err := s.jwtProvider.Sign(u.ID, u.Role)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	s.log.WithField("user_id", u.ID).Info("login")
	return token, u, nil
}

func (s *service) UpdatePassword(ctx context.Context, userID int64, req UpdatePasswordRequest) error {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return domain.Errorf(domain.ErrBadRequest, "Current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Errorf(domain.ErrNotFound, "User not found")
		}
		return err
	}
	return nil
}

func (s *service) DeleteAccount(ctx context.Context, userID int64) error {
	return s.accounts.RemoveAccount(ctx, userID)
}

func (s *service) UserDetails(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "User not found")
	}
	return u, err
}
