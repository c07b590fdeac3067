package session

import (
	"context"
	"log"

	"github.com/mind-engage/iqscore/internal/eventlog"
	"github.com/mind-engage/iqscore/internal/questions"
)

// EventAppender records domain events. *eventlog.Repo satisfies it.
type EventAppender interface {
	Append(ctx context.Context, typ, key string, data any) error
}

type loggedStore struct {
	Store
	events EventAppender
}

// WithEvents appends session.created, quiz.completed and email.captured
// after the corresponding writes succeed. Append failures are only logged.
func WithEvents(s Store, events EventAppender) Store {
	if events == nil {
		return s
	}
	return &loggedStore{Store: s, events: events}
}

func (s *loggedStore) emit(ctx context.Context, typ, id string, data any) {
	if err := s.events.Append(ctx, typ, id, data); err != nil {
		log.Printf("event %s for %s: %v", typ, id, err)
	}
}

func (s *loggedStore) Create(ctx context.Context, m Meta) (Record, error) {
	r, err := s.Store.Create(ctx, m)
	if err == nil {
		s.emit(ctx, eventlog.SessionCreated, r.ID, m)
	}
	return r, err
}

func (s *loggedStore) SaveCompletion(ctx context.Context, id string, correct, iq, percentile int, answers []questions.Answer) error {
	err := s.Store.SaveCompletion(ctx, id, correct, iq, percentile, answers)
	if err == nil {
		s.emit(ctx, eventlog.QuizCompleted, id, map[string]int{
			"score":      correct,
			"iqScore":    iq,
			"percentile": percentile,
			"answered":   len(answers),
		})
	}
	return err
}

func (s *loggedStore) SetEmail(ctx context.Context, id, email string) error {
	err := s.Store.SetEmail(ctx, id, email)
	if err == nil {
		s.emit(ctx, eventlog.EmailCaptured, id, map[string]string{"email": email})
	}
	return err
}
