package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable returns a client pointed at a closed port so every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// fakeRedis is a map-backed Cmdable with Redis string semantics for the commands a
// Store issues. Expiry is not modelled; ttls are recorded per key.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type pending struct {
	Username string `json:"username"`
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	s := New[pending](r, "pending")

	require.NoError(t, s.Put(ctx, "a@x.com", pending{Username: "alice"}, time.Hour))
	assert.Equal(t, `{"username":"alice"}`, r.data["pending:a@x.com"])
	assert.Equal(t, time.Hour, r.ttls["pending:a@x.com"])

	v, ok, err := s.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v.Username)

	require.NoError(t, s.Delete(ctx, "a@x.com"))
	_, ok, err = s.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutIfAbsent_KeepsFirstValue(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	s := New[pending](r, "pending")

	ok, err := s.PutIfAbsent(ctx, "a@x.com", pending{Username: "alice"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, r.ttls["pending:a@x.com"])

	ok, err = s.PutIfAbsent(ctx, "a@x.com", pending{Username: "mallory"}, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	v, _, _ := s.Get(ctx, "a@x.com")
	assert.Equal(t, "alice", v.Username)
}

// Two Store values over one database stand in for two API instances.
func TestStore_PutIfAbsent_OneWinnerAcrossInstances(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	instances := []*Store[pending]{New[pending](r, "pending"), New[pending](r, "pending")}

	const writers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(s *Store[pending]) {
			defer wg.Done()
			ok, err := s.PutIfAbsent(ctx, "a@x.com", pending{Username: "alice"}, time.Hour)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(instances[i%2])
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStore_KeyPrefix(t *testing.T) {
	s := New[int](nil, "otp")
	assert.Equal(t, "otp:a@x.com", s.key("a@x.com"))
}

func TestStore_ErrorsAreWrappedWithPrefix(t *testing.T) {
	ctx := context.Background()
	s := New[map[string]string](unreachable(t), "pending")

	err := s.Put(ctx, "a@x.com", map[string]string{"u": "alice"}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store pending")

	_, ok, err := s.Get(ctx, "a@x.com")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "get pending")

	err = s.Delete(ctx, "a@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete pending")

	ok, err = s.PutIfAbsent(ctx, "a@x.com", map[string]string{"u": "alice"}, time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "store pending")
}

func TestStore_PutRejectsUnmarshalableValue(t *testing.T) {
	s := New[chan int](unreachable(t), "bad")
	err := s.Put(context.Background(), "k", make(chan int), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal bad")
}
