package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/config"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/infrastructure/dynamo"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldUsername = "username"
	fieldAddress  = "address"
)

// Guest account used to attribute anonymous ratings.
const (
	GuestEmail    = "guest@anonymous.com"
	GuestUsername = "Guest"
)

type Service interface {
	List(ctx context.Context) ([]domain.User, error)
	// Create adds a verified account with the requested role, if actor may assign it.
	Create(ctx context.Context, actor domain.Role, req domain.CreateUserRequest) (*domain.User, error)
	Profile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, req domain.UpdateProfileRequest) (*domain.User, error)
	// Delete removes target on behalf of actor. Actors cannot remove themselves.
	Delete(ctx context.Context, actorID, targetID int64) error
	// RemoveAccount deletes a user together with their stores and ratings.
	RemoveAccount(ctx context.Context, userID int64) error
	// Guest returns the account anonymous ratings are attributed to.
	Guest(ctx context.Context) (*domain.User, error)
	Seed(ctx context.Context, superAdmin config.SeedAccount) error
}

type userStore interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID int64, updates map[string]interface{}) error
	Delete(ctx context.Context, userID int64) error
}

type idAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// contentPurger removes what a user owns or wrote before the account goes away.
type contentPurger interface {
	PurgeUser(ctx context.Context, userID int64) error
}

// pendingCanceler drops a registration still awaiting verification for an email
// that now belongs to a confirmed account.
type pendingCanceler interface {
	CancelPending(ctx context.Context, email string) error
}

type ServiceDeps struct {
	UserRepo userStore
	IDs      idAllocator
	Content  contentPurger
	Pending  pendingCanceler
	Log      logrus.FieldLogger
	HashCost int
}

type service struct {
	repo     userStore
	ids      idAllocator
	content  contentPurger
	pending  pendingCanceler
	log      logrus.FieldLogger
	hashCost int
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.UserRepo,
		ids:      deps.IDs,
		content:  deps.Content,
		pending:  deps.Pending,
		log:      deps.Log,
		hashCost: deps.HashCost,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func (s *service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

func (s *service) Create(ctx context.Context, actor domain.Role, req domain.CreateUserRequest) (*domain.User, error) {
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid role")
	}
	if !actor.CanAssignRole(role) {
		return nil, domain.Errorf(domain.ErrForbidden, "Access denied. Admin or Super Admin only.")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if taken, err := s.taken(ctx, email, username); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.Errorf(domain.ErrConflict, "Email or username already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	u, err := s.insert(ctx, username, email, string(hash), "", role)
	if errors.Is(err, domain.ErrConflict) {
		return nil, domain.Errorf(domain.ErrConflict, "Email or username already exists")
	}
	if err != nil {
		return nil, err
	}
	s.cancelPending(ctx, email)
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("user created")
	return u, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "User not found")
	}
	return u, err
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		other, err := s.repo.GetByUsername(ctx, username)
		switch {
		case err == nil && other.ID != userID:
			return nil, domain.Errorf(domain.ErrConflict, "Username already taken")
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		updates[fieldUsername] = username
	}
	if req.Address != nil {
		updates[fieldAddress] = *req.Address
	}
	if len(updates) == 0 {
		return s.Profile(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.Errorf(domain.ErrNotFound, "User not found")
		case errors.Is(err, domain.ErrUsernameTaken):
			return nil, domain.Errorf(domain.ErrConflict, "Username already taken")
		}
		return nil, err
	}
	return s.Profile(ctx, userID)
}

func (s *service) Delete(ctx context.Context, actorID, targetID int64) error {
	if actorID == targetID {
		return domain.Errorf(domain.ErrBadRequest, "Cannot delete your own account")
	}
	target, err := s.repo.Get(ctx, targetID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if !target.Role.Deletable() {
		return domain.Errorf(domain.ErrBadRequest, "Cannot delete super admin")
	}
	return s.RemoveAccount(ctx, targetID)
}

func (s *service) RemoveAccount(ctx context.Context, userID int64) error {
	if err := s.content.PurgeUser(ctx, userID); err != nil {
		return fmt.Errorf("purge content of user %d: %w", userID, err)
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Errorf(domain.ErrNotFound, "User not found")
		}
		return err
	}
	s.log.WithField("user_id", userID).Info("user deleted")
	return nil
}

func (s *service) Guest(ctx context.Context) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, GuestEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// No password hash: bcrypt never matches an empty hash, so nobody can log in as guest.
	return s.insert(ctx, GuestUsername, GuestEmail, "", "", domain.RoleGuest)
}

// Seed creates the configured super admin and the guest account when absent.
func (s *service) Seed(ctx context.Context, superAdmin config.SeedAccount) error {
	if superAdmin.Email == "" || superAdmin.Password == "" {
		s.log.Warn("SUPER_ADMIN_EMAIL or SUPER_ADMIN_PASSWORD not set; skipping super admin seed")
	} else {
		email := strings.ToLower(strings.TrimSpace(superAdmin.Email))
		_, err := s.repo.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			hash, herr := bcrypt.GenerateFromPassword([]byte(superAdmin.Password), s.hashCost)
			if herr != nil {
				return herr
			}
			u, cerr := s.insert(ctx, superAdmin.Username, email, string(hash), superAdmin.Address, domain.RoleSuperAdmin)
			if cerr != nil {
				return fmt.Errorf("seed super admin: %w", cerr)
			}
			s.cancelPending(ctx, email)
			s.log.WithField("user_id", u.ID).Info("super admin created")
		case err != nil:
			return err
		}
	}
	if _, err := s.Guest(ctx); err != nil {
		return fmt.Errorf("seed guest: %w", err)
	}
	return nil
}

func (s *service) insert(ctx context.Context, username, email, hash, address string, role domain.Role) (*domain.User, error) {
	userID, err := s.ids.Next(ctx, dynamo.SeqUsers)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		ID:           userID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Address:      address,
		Role:         role,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) cancelPending(ctx context.Context, email string) {
	if s.pending == nil {
		return
	}
	if err := s.pending.CancelPending(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("cancel pending registration")
	}
}

func (s *service) taken(ctx context.Context, email, username string) (bool, error) {
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	return false, nil
}
