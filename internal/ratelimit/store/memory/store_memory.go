package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryCounterStore implements ports.CounterStore with a mutex-guarded
// map. Windows reset lazily: an expired record is replaced on the next
// increment, so no sweeper goroutine is needed for correctness. Expired
// records linger until touched; Prune exists for long-lived processes with
// high identifier churn.
type InMemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewInMemoryCounterStore creates an empty counter store.
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// WithClock injects a time source for tests.
func (s *InMemoryCounterStore) WithClock(now func() time.Time) *InMemoryCounterStore {
	s.now = now
	return s
}

// Incr atomically counts one request for key. A call at or after the reset
// instant starts a fresh window (the boundary belongs to the new window).
func (s *InMemoryCounterStore) Incr(_ context.Context, key string, windowDur time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowDur)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Prune drops expired windows.
func (s *InMemoryCounterStore) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Len returns the number of tracked identifiers.
func (s *InMemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
