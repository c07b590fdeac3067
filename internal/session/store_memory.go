package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/iqscore/internal/questions"
)

type memoryStore struct {
	mu  sync.RWMutex
	m   map[string]Record
	now func() time.Time
}

// NewInMemoryStore is a Store for tests and runs without a database.
func NewInMemoryStore() Store {
	return &memoryStore{m: map[string]Record{}, now: time.Now}
}

func (s *memoryStore) Create(_ context.Context, m Meta) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Truncate(time.Second)
	r := Record{
		ID:        uuid.NewString(),
		CreatedAt: ts,
		UpdatedAt: ts,
		Answers:   []questions.Answer{},
		Meta:      m,
	}
	s.m[r.ID] = r
	return clone(r), nil
}

func clone(r Record) Record {
	r.Answers = append([]questions.Answer{}, r.Answers...)
	return r
}

func (s *memoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(r), nil
}

func (s *memoryStore) SaveProgress(_ context.Context, id string, currentQuestion int, answers []questions.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return ErrNotFound
	}
	if r.Completed() {
		return nil
	}
	r.CurrentQuestion = currentQuestion
	r.Answers = append([]questions.Answer{}, answers...)
	r.UpdatedAt = s.now().UTC().Truncate(time.Second)
	s.m[id] = r
	return nil
}

func (s *memoryStore) SaveCompletion(_ context.Context, id string, correct, iq, percentile int, answers []questions.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return ErrNotFound
	}
	ts := s.now().UTC().Truncate(time.Second)
	r.CurrentQuestion = len(answers)
	r.Answers = append([]questions.Answer{}, answers...)
	r.Score, r.IQScore, r.Percentile = &correct, &iq, &percentile
	r.CompletedAt = &ts
	r.UpdatedAt = ts
	s.m[id] = r
	return nil
}

func (s *memoryStore) SetEmail(_ context.Context, id, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return ErrNotFound
	}
	r.Email = email
	r.UpdatedAt = s.now().UTC().Truncate(time.Second)
	s.m[id] = r
	return nil
}

func (s *memoryStore) List(_ context.Context, o ListOpts) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Record, 0, len(s.m))
	for _, r := range s.m {
		if o.Completed != nil && r.Completed() != *o.Completed {
			continue
		}
		all = append(all, clone(r))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Offset >= len(all) {
		return []Record{}, nil
	}
	all = all[o.Offset:]
	if n := o.limit(); len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *memoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	var iqSum int
	for _, r := range s.m {
		st.Total++
		if r.Email != "" {
			st.Emails++
		}
		if r.Completed() {
			st.Completed++
			if r.IQScore != nil {
				iqSum += *r.IQScore
			}
		}
	}
	if st.Completed > 0 {
		st.AverageIQ = float64(iqSum) / float64(st.Completed)
	}
	return st, nil
}
