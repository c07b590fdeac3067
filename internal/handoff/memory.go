package handoff

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	r       Results
	expires time.Time
}

type memoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore keeps results in process for ttl. ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) Store {
	return newMemoryStore(ttl, time.Now)
}

func newMemoryStore(ttl time.Duration, now func() time.Time) *memoryStore {
	return &memoryStore{m: map[string]entry{}, ttl: ttl, now: now}
}

func (s *memoryStore) Put(_ context.Context, r Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{r: r}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.m[key(r.SessionID)] = e
	s.sweep()
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID string) (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key(sessionID)]
	if !ok || s.expired(e) {
		return Results{}, ErrNotFound
	}
	return e.r, nil
}

func (s *memoryStore) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

// sweep drops expired entries; callers hold mu.
func (s *memoryStore) sweep() {
	for k, e := range s.m {
		if s.expired(e) {
			delete(s.m, k)
		}
	}
}
