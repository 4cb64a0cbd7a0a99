package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/infrastructure/dynamo"
	"github.com/store-rating-api/internal/pkg/id"
	"github.com/store-rating-api/internal/pkg/keylock"
)

// Shown for anonymous ratings left without a name or email.
const (
	DefaultAnonymousName  = "Anonymous"
	DefaultAnonymousEmail = "anonymous@example.com"
)

type Service interface {
	Create(ctx context.Context, req domain.CreateStoreRequest) (*domain.Store, error)
	// List returns all stores with their owner's name, newest first.
	List(ctx context.Context) ([]domain.Store, error)
	ListWithRatings(ctx context.Context) ([]domain.StoreWithRatings, error)
	Rate(ctx context.Context, storeID, userID int64, req domain.RateStoreRequest) error
	RateAnonymous(ctx context.Context, storeID int64, req domain.AnonymousRatingRequest) error
	Delete(ctx context.Context, storeID int64) error
	// PurgeUser deletes the stores owned by userID and every rating they left.
	PurgeUser(ctx context.Context, userID int64) error
}

type storeStore interface {
	Put(ctx context.Context, s *domain.Store) error
	Get(ctx context.Context, storeID int64) (*domain.Store, error)
	List(ctx context.Context) ([]domain.Store, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Store, error)
	UpdateRating(ctx context.Context, storeID int64, average float64) error
	Delete(ctx context.Context, storeID int64) error
}

type ratingStore interface {
	Put(ctx context.Context, r *domain.Rating) error
	ListByStore(ctx context.Context, storeID int64) ([]domain.Rating, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error)
	Delete(ctx context.Context, storeID int64, ratingKey string) error
	DeleteByStore(ctx context.Context, storeID int64) error
}

type userReader interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

type guestResolver interface {
	Guest(ctx context.Context) (*domain.User, error)
}

type idAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type ServiceDeps struct {
	StoreRepo  storeStore
	RatingRepo ratingStore
	UserRepo   userReader
	Guests     guestResolver
	IDs        idAllocator
	Log        logrus.FieldLogger
	Now        func() time.Time
}

type service struct {
	stores  storeStore
	ratings ratingStore
	users   userReader
	guests  guestResolver
	ids     idAllocator
	log     logrus.FieldLogger
	now     func() time.Time
	locks   *keylock.Locker
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		stores:  deps.StoreRepo,
		ratings: deps.RatingRepo,
		users:   deps.UserRepo,
		guests:  deps.Guests,
		ids:     deps.IDs,
		log:     deps.Log,
		now:     deps.Now,
		locks:   keylock.New(),
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Create(ctx context.Context, req domain.CreateStoreRequest) (*domain.Store, error) {
	owner, err := s.users.Get(ctx, req.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if owner == nil || !owner.Role.CanOwnStores() {
		return nil, domain.Errorf(domain.ErrBadRequest, "Invalid store owner")
	}
	storeID, err := s.ids.Next(ctx, dynamo.SeqStores)
	if err != nil {
		return nil, err
	}
	st := &domain.Store{
		StoreID:   storeID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Address:   req.Address,
		OwnerID:   owner.ID,
		OwnerName: owner.Username,
		CreatedAt: s.now().UTC(),
	}
	if err := s.stores.Put(ctx, st); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"store_id": st.StoreID, "owner_id": owner.ID}).Info("store created")
	return st, nil
}

func (s *service) List(ctx context.Context) ([]domain.Store, error) {
	stores, err := s.stores.List(ctx)
	if err != nil {
		return nil, err
	}
	names := newUserCache(s.users)
	out := make([]domain.Store, 0, len(stores))
	for _, st := range stores {
		owner, err := names.get(ctx, st.OwnerID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			continue
		}
		st.OwnerName = owner.Username
		out = append(out, st)
	}
	return out, nil
}

func (s *service) ListWithRatings(ctx context.Context) ([]domain.StoreWithRatings, error) {
	stores, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	users := newUserCache(s.users)
	out := make([]domain.StoreWithRatings, 0, len(stores))
	for _, st := range stores {
		ratings, err := s.ratings.ListByStore(ctx, st.StoreID)
		if err != nil {
			return nil, err
		}
		views := make([]domain.RatingView, 0, len(ratings))
		for _, r := range ratings {
			v := domain.RatingView{
				ID:          r.RatingKey,
				Value:       r.Value,
				Comment:     r.Comment,
				CreatedAt:   r.CreatedAt,
				IsAnonymous: r.IsAnonymous(),
				UserName:    r.AnonymousName,
				UserEmail:   r.AnonymousEmail,
			}
			if !v.IsAnonymous {
				u, err := users.get(ctx, r.UserID)
				if err != nil {
					return nil, err
				}
				if u != nil {
					v.UserName, v.UserEmail = u.Username, u.Email
				}
			}
			views = append(views, v)
		}
		out = append(out, domain.StoreWithRatings{Store: st, Ratings: views})
	}
	return out, nil
}

func (s *service) Rate(ctx context.Context, storeID, userID int64, req domain.RateStoreRequest) error {
	unlock := s.locks.Lock(storeKey(storeID))
	defer unlock()

	if err := s.ensureStore(ctx, storeID); err != nil {
		return err
	}
	r := &domain.Rating{
		StoreID:   storeID,
		RatingKey: "user#" + strconv.FormatInt(userID, 10),
		UserID:    userID,
		Value:     req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ratings.Put(ctx, r); err != nil {
		return err
	}
	return s.recompute(ctx, storeID)
}

func (s *service) RateAnonymous(ctx context.Context, storeID int64, req domain.AnonymousRatingRequest) error {
	unlock := s.locks.Lock(storeKey(storeID))
	defer unlock()

	if err := s.ensureStore(ctx, storeID); err != nil {
		return err
	}
	guest, err := s.guests.Guest(ctx)
	if err != nil {
		return fmt.Errorf("resolve guest account: %w", err)
	}
	r := &domain.Rating{
		StoreID:        storeID,
		RatingKey:      id.Prefixed("anon#"),
		UserID:         guest.ID,
		Value:          req.Rating,
		Comment:        req.Comment,
		AnonymousName:  orDefault(req.UserName, DefaultAnonymousName),
		AnonymousEmail: orDefault(req.UserEmail, DefaultAnonymousEmail),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.ratings.Put(ctx, r); err != nil {
		return err
	}
	return s.recompute(ctx, storeID)
}

func (s *service) Delete(ctx context.Context, storeID int64) error {
	unlock := s.locks.Lock(storeKey(storeID))
	defer unlock()

	if err := s.ensureStore(ctx, storeID); err != nil {
		return err
	}
	return s.deleteStore(ctx, storeID)
}

func (s *service) PurgeUser(ctx context.Context, userID int64) error {
	owned, err := s.stores.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}
	for _, st := range owned {
		unlock := s.locks.Lock(storeKey(st.StoreID))
		err := s.deleteStore(ctx, st.StoreID)
		unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}

	ratings, err := s.ratings.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	touched := map[int64]struct{}{}
	for _, r := range ratings {
		if err := s.ratings.Delete(ctx, r.StoreID, r.RatingKey); err != nil {
			return err
		}
		touched[r.StoreID] = struct{}{}
	}
	for storeID := range touched {
		unlock := s.locks.Lock(storeKey(storeID))
		err := s.recompute(ctx, storeID)
		unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *service) deleteStore(ctx context.Context, storeID int64) error {
	if err := s.ratings.DeleteByStore(ctx, storeID); err != nil {
		return err
	}
	if err := s.stores.Delete(ctx, storeID); err != nil {
		return err
	}
	s.log.WithField("store_id", storeID).Info("store deleted")
	return nil
}

// recompute stores the mean of all ratings of storeID, rounded to one decimal.
// Callers hold the store lock.
func (s *service) recompute(ctx context.Context, storeID int64) error {
	ratings, err := s.ratings.ListByStore(ctx, storeID)
	if err != nil {
		return err
	}
	return s.stores.UpdateRating(ctx, storeID, Average(ratings))
}

func (s *service) ensureStore(ctx context.Context, storeID int64) error {
	_, err := s.stores.Get(ctx, storeID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "Store not found")
	}
	return err
}

// Average is the mean rating value rounded half away from zero to one decimal place.
// No ratings average to zero.
func Average(ratings []domain.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Value)))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(1).Float64()
	return avg
}

func storeKey(storeID int64) string { return "store:" + strconv.FormatInt(storeID, 10) }

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// userCache memoizes user lookups within one listing. A missing user is cached as nil.
type userCache struct {
	repo  userReader
	users map[int64]*domain.User
}

func newUserCache(repo userReader) *userCache {
	return &userCache{repo: repo, users: map[int64]*domain.User{}}
}

func (c *userCache) get(ctx context.Context, userID int64) (*domain.User, error) {
	if u, ok := c.users[userID]; ok {
		return u, nil
	}
	u, err := c.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		u, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.users[userID] = u
	return u, nil
}
