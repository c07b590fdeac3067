// Package handoff carries a finished attempt's results to the views that
// follow the quiz (email capture, results, report).
package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/iqscore/internal/questions"
)

var ErrNotFound = errors.New("results not found")

// Results is the handoff payload for one completed attempt.
type Results struct {
	SessionID   string             `json:"sessionId"`
	Score       int                `json:"score"` // correct count
	Total       int                `json:"total"`
	IQScore     int                `json:"iqScore"`
	Percentile  int                `json:"percentile"`
	Answers     []questions.Answer `json:"answers"`
	CompletedAt time.Time          `json:"completedAt"`
}

type Store interface {
	Put(ctx context.Context, r Results) error
	Get(ctx context.Context, sessionID string) (Results, error)
}

const keyPrefix = "results:"

func key(sessionID string) string { return keyPrefix + sessionID }
