package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New[string](0)
	defer s.Close()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "a", "one", 0))
	require.NoError(t, s.Put(ctx, "a", "two", 0))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestStore_TTL_LazyPurgeOnRead(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := New[int](0, WithClock[int](c.Now))
	defer s.Close()

	require.NoError(t, s.Put(ctx, "k", 1, time.Minute))
	c.Advance(time.Minute)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok, "entry is readable up to its deadline")

	c.Advance(time.Millisecond)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := New[string](0, WithClock[string](c.Now))
	defer s.Close()

	ok, err := s.PutIfAbsent(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.PutIfAbsent(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "first", v)

	c.Advance(time.Minute + time.Millisecond)
	ok, err = s.PutIfAbsent(ctx, "k", "third", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired entry does not block a new one")
	v, _, _ = s.Get(ctx, "k")
	assert.Equal(t, "third", v)
}

func TestStore_PutIfAbsent_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	s := New[int](0)
	defer s.Close()

	const writers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.PutIfAbsent(ctx, "k", i, 0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := New[int](0, WithClock[int](c.Now))
	defer s.Close()

	require.NoError(t, s.Put(ctx, "short", 1, time.Second))
	require.NoError(t, s.Put(ctx, "long", 2, time.Hour))
	require.NoError(t, s.Put(ctx, "forever", 3, 0))
	c.Advance(time.Minute)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}

func TestStore_JanitorRunsUntilClosed(t *testing.T) {
	ctx := context.Background()
	s := New[int](5 * time.Millisecond)
	require.NoError(t, s.Put(ctx, "k", 1, time.Millisecond))

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	s.Close()
	s.Close()
}
