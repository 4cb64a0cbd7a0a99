package memstore

import (
	"context"
	"sync"
	"time"
)

type item[T any] struct {
	value    T
	deadline time.Time // zero means no deadline
}

// Store is a process-local key-value map. Entries put with a ttl read as absent once
// their deadline has passed and are removed on that read; a janitor goroutine also
// sweeps them periodically. Contents do not survive a restart.
type Store[T any] struct {
	mu    sync.Mutex
	items map[string]item[T]
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithClock overrides the time source, for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

// New creates a Store. When sweepEvery is positive a janitor removes stale entries at
// that interval until Close is called.
func New[T any](sweepEvery time.Duration, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		items: make(map[string]item[T]),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if sweepEvery > 0 {
		go s.janitor(sweepEvery)
	}
	return s
}

func (s *Store[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	it := item[T]{value: value}
	if ttl > 0 {
		it.deadline = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

// PutIfAbsent stores value unless key holds an entry that has not expired.
func (s *Store[T]) PutIfAbsent(_ context.Context, key string, value T, ttl time.Duration) (bool, error) {
	now := s.now()
	it := item[T]{value: value}
	if ttl > 0 {
		it.deadline = now.Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[key]; ok && !s.stale(cur, now) {
		return false, nil
	}
	s.items[key] = it
	return true, nil
}

func (s *Store[T]) Get(_ context.Context, key string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false, nil
	}
	if s.stale(it, s.now()) {
		delete(s.items, key)
		var zero T
		return zero, false, nil
	}
	return it.value, true, nil
}

func (s *Store[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes every entry whose deadline has passed and returns how many were removed.
func (s *Store[T]) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, it := range s.items {
		if s.stale(it, now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Close stops the janitor. It is safe to call more than once.
func (s *Store[T]) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Store[T]) stale(it item[T], now time.Time) bool {
	return !it.deadline.IsZero() && now.After(it.deadline)
}

func (s *Store[T]) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
