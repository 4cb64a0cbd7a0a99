package store

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/store-rating-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStoreRepo struct{ mock.Mock }

func (m *mockStoreRepo) Put(ctx context.Context, s *domain.Store) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockStoreRepo) Get(ctx context.Context, storeID int64) (*domain.Store, error) {
	args := m.Called(ctx, storeID)
	if s, _ := args.Get(0).(*domain.Store); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStoreRepo) List(ctx context.Context) ([]domain.Store, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Store), args.Error(1)
}
func (m *mockStoreRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Store, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.Store), args.Error(1)
}
func (m *mockStoreRepo) UpdateRating(ctx context.Context, storeID int64, average float64) error {
	return m.Called(ctx, storeID, average).Error(0)
}
func (m *mockStoreRepo) Delete(ctx context.Context, storeID int64) error {
	return m.Called(ctx, storeID).Error(0)
}

type mockRatingRepo struct{ mock.Mock }

func (m *mockRatingRepo) Put(ctx context.Context, r *domain.Rating) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRatingRepo) ListByStore(ctx context.Context, storeID int64) ([]domain.Rating, error) {
	args := m.Called(ctx, storeID)
	return args.Get(0).([]domain.Rating), args.Error(1)
}
func (m *mockRatingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Rating, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Rating), args.Error(1)
}
func (m *mockRatingRepo) Delete(ctx context.Context, storeID int64, ratingKey string) error {
	return m.Called(ctx, storeID, ratingKey).Error(0)
}
func (m *mockRatingRepo) DeleteByStore(ctx context.Context, storeID int64) error {
	return m.Called(ctx, storeID).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Get(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGuests struct{ mock.Mock }

func (m *mockGuests) Guest(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type counter struct{ n atomic.Int64 }

func (c *counter) Next(_ context.Context, _ string) (int64, error) { return c.n.Add(1), nil }

// --- builder ---

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	stores  *mockStoreRepo
	ratings *mockRatingRepo
	users   *mockUsers
	guests  *mockGuests
	svc     Service
}

func newFixture() *fixture {
	f := &fixture{
		stores:  &mockStoreRepo{},
		ratings: &mockRatingRepo{},
		users:   &mockUsers{},
		guests:  &mockGuests{},
	}
	log, _ := test.NewNullLogger()
	f.svc = NewService(ServiceDeps{
		StoreRepo:  f.stores,
		RatingRepo: f.ratings,
		UserRepo:   f.users,
		Guests:     f.guests,
		IDs:        &counter{},
		Log:        log,
		Now:        func() time.Time { return now },
	})
	return f
}

func ratings(values ...int) []domain.Rating {
	out := make([]domain.Rating, len(values))
	for i, v := range values {
		out[i] = domain.Rating{Value: v}
	}
	return out
}

// --- Average ---

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, Average(nil))
	assert.Equal(t, 4.0, Average(ratings(4)))
	assert.Equal(t, 4.5, Average(ratings(4, 5)))
	assert.Equal(t, 3.7, Average(ratings(5, 4, 2)))
	assert.Equal(t, 1.3, Average(ratings(1, 1, 2)))
	assert.Equal(t, 2.5, Average(ratings(1, 2, 3, 4)))
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	f := newFixture()
	f.users.On("Get", mock.Anything, int64(5)).Return(&domain.User{ID: 5, Username: "olly", Role: domain.RoleStoreOwner}, nil)
	f.stores.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Store) bool {
		return s.StoreID == 1 && s.OwnerID == 5 && s.Rating == 0
	})).Return(nil)

	st, err := f.svc.Create(context.Background(), domain.CreateStoreRequest{
		Name: "Corner Shop", Email: "Shop@x.com", Address: "1 Main St", OwnerID: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, "shop@x.com", st.Email)
	assert.Equal(t, "olly", st.OwnerName)
	assert.Equal(t, now, st.CreatedAt)
}

func TestCreate_OwnerMustBeStoreOwner(t *testing.T) {
	f := newFixture()
	f.users.On("Get", mock.Anything, int64(5)).Return(&domain.User{ID: 5, Role: domain.RoleUser}, nil)
	f.users.On("Get", mock.Anything, int64(6)).Return(nil, domain.ErrNotFound)

	for _, owner := range []int64{5, 6} {
		_, err := f.svc.Create(context.Background(), domain.CreateStoreRequest{OwnerID: owner})
		assert.True(t, errors.Is(err, domain.ErrBadRequest))
		assert.Equal(t, "Invalid store owner", err.Error())
	}
	f.stores.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- List ---

func TestList_FillsOwnerNameAndSkipsOrphans(t *testing.T) {
	f := newFixture()
	f.stores.On("List", mock.Anything).Return([]domain.Store{
		{StoreID: 2, OwnerID: 5}, {StoreID: 1, OwnerID: 9}, {StoreID: 3, OwnerID: 5},
	}, nil)
	f.users.On("Get", mock.Anything, int64(5)).Return(&domain.User{ID: 5, Username: "olly"}, nil).Once()
	f.users.On("Get", mock.Anything, int64(9)).Return(nil, domain.ErrNotFound).Once()

	stores, err := f.svc.List(context.Background())

	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "olly", stores[0].OwnerName)
	assert.Equal(t, int64(3), stores[1].StoreID)
	f.users.AssertExpectations(t)
}

func TestListWithRatings_SubstitutesAnonymousIdentity(t *testing.T) {
	f := newFixture()
	f.stores.On("List", mock.Anything).Return([]domain.Store{{StoreID: 1, OwnerID: 5}}, nil)
	f.users.On("Get", mock.Anything, int64(5)).Return(&domain.User{ID: 5, Username: "olly"}, nil)
	f.users.On("Get", mock.Anything, int64(7)).Return(&domain.User{ID: 7, Username: "alice", Email: "a@x.com"}, nil)
	f.ratings.On("ListByStore", mock.Anything, int64(1)).Return([]domain.Rating{
		{StoreID: 1, RatingKey: "anon#01", UserID: 2, Value: 3, AnonymousName: "Zed", AnonymousEmail: "z@x.com"},
		{StoreID: 1, RatingKey: "user#7", UserID: 7, Value: 5},
	}, nil)

	out, err := f.svc.ListWithRatings(context.Background())

	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Ratings, 2)
	assert.Equal(t, domain.RatingView{ID: "anon#01", Value: 3, UserName: "Zed", UserEmail: "z@x.com", IsAnonymous: true}, out[0].Ratings[0])
	assert.Equal(t, "alice", out[0].Ratings[1].UserName)
	assert.Equal(t, "a@x.com", out[0].Ratings[1].UserEmail)
	assert.False(t, out[0].Ratings[1].IsAnonymous)
	f.users.AssertNotCalled(t, "Get", mock.Anything, int64(2))
}

// --- Rate ---

func TestRate_UpsertsAndRecomputesAverage(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(&domain.Store{StoreID: 1}, nil)
	f.ratings.On("Put", mock.Anything, mock.MatchedBy(func(r *domain.Rating) bool {
		return r.RatingKey == "user#7" && r.UserID == 7 && r.Value == 4 && !r.IsAnonymous()
	})).Return(nil)
	f.ratings.On("ListByStore", mock.Anything, int64(1)).Return(ratings(4, 5, 5), nil)
	f.stores.On("UpdateRating", mock.Anything, int64(1), 4.7).Return(nil)

	err := f.svc.Rate(context.Background(), 1, 7, domain.RateStoreRequest{Rating: 4, Comment: "good"})

	require.NoError(t, err)
	f.stores.AssertExpectations(t)
}

func TestRate_StoreMissing(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(nil, domain.ErrNotFound)

	err := f.svc.Rate(context.Background(), 1, 7, domain.RateStoreRequest{Rating: 4})

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, "Store not found", err.Error())
	f.ratings.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRateAnonymous_DefaultsIdentityAndUsesGuest(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(&domain.Store{StoreID: 1}, nil)
	f.guests.On("Guest", mock.Anything).Return(&domain.User{ID: 2, Role: domain.RoleGuest}, nil)
	f.ratings.On("Put", mock.Anything, mock.MatchedBy(func(r *domain.Rating) bool {
		return r.UserID == 2 &&
			strings.HasPrefix(r.RatingKey, "anon#") &&
			r.AnonymousName == "Anonymous" &&
			r.AnonymousEmail == "anonymous@example.com"
	})).Return(nil)
	f.ratings.On("ListByStore", mock.Anything, int64(1)).Return(ratings(2), nil)
	f.stores.On("UpdateRating", mock.Anything, int64(1), 2.0).Return(nil)

	err := f.svc.RateAnonymous(context.Background(), 1, domain.AnonymousRatingRequest{Rating: 2, UserName: "  "})

	require.NoError(t, err)
	f.ratings.AssertExpectations(t)
}

func TestRateAnonymous_StoreMissing(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(nil, domain.ErrNotFound)

	err := f.svc.RateAnonymous(context.Background(), 1, domain.AnonymousRatingRequest{Rating: 2})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	f.guests.AssertNotCalled(t, "Guest", mock.Anything)
}

// --- Delete / PurgeUser ---

func TestDelete_RemovesRatingsThenStore(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(&domain.Store{StoreID: 1}, nil)
	f.ratings.On("DeleteByStore", mock.Anything, int64(1)).Return(nil)
	f.stores.On("Delete", mock.Anything, int64(1)).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), 1))
	f.ratings.AssertExpectations(t)
	f.stores.AssertExpectations(t)
}

func TestDelete_Missing(t *testing.T) {
	f := newFixture()
	f.stores.On("Get", mock.Anything, int64(1)).Return(nil, domain.ErrNotFound)

	err := f.svc.Delete(context.Background(), 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPurgeUser_DeletesOwnedStoresAndRecomputesRatedOnes(t *testing.T) {
	f := newFixture()
	f.stores.On("ListByOwner", mock.Anything, int64(7)).Return([]domain.Store{{StoreID: 3, OwnerID: 7}}, nil)
	f.ratings.On("DeleteByStore", mock.Anything, int64(3)).Return(nil)
	f.stores.On("Delete", mock.Anything, int64(3)).Return(nil)
	f.ratings.On("ListByUser", mock.Anything, int64(7)).Return([]domain.Rating{
		{StoreID: 1, RatingKey: "user#7", UserID: 7, Value: 1},
	}, nil)
	f.ratings.On("Delete", mock.Anything, int64(1), "user#7").Return(nil)
	f.ratings.On("ListByStore", mock.Anything, int64(1)).Return(ratings(5, 4), nil)
	f.stores.On("UpdateRating", mock.Anything, int64(1), 4.5).Return(nil)

	require.NoError(t, f.svc.PurgeUser(context.Background(), 7))
	f.stores.AssertExpectations(t)
	f.ratings.AssertExpectations(t)
}
