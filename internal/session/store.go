// Package session persists one record per quiz attempt: progress, the
// final score, the captured email and acquisition metadata.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/iqscore/internal/questions"
)

var ErrNotFound = errors.New("session not found")

// Meta is the request metadata captured when a session is created.
type Meta struct {
	IPAddress   string `json:"ipAddress,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
}

type Record struct {
	ID              string             `json:"id"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	CurrentQuestion int                `json:"currentQuestion"`
	Answers         []questions.Answer `json:"answers"`
	Score           *int               `json:"score,omitempty"` // correct count
	IQScore         *int               `json:"iqScore,omitempty"`
	Percentile      *int               `json:"percentile,omitempty"`
	Email           string             `json:"email,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	Meta            Meta               `json:"meta"`
}

func (r Record) Completed() bool { return r.CompletedAt != nil }

type ListOpts struct {
	Completed *bool // nil lists all
	Limit     int   // <= 0 means 50
	Offset    int
}

func (o ListOpts) limit() int {
	if o.Limit <= 0 {
		return 50
	}
	if o.Limit > 500 {
		return 500
	}
	return o.Limit
}

type Stats struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Emails    int     `json:"emails"`
	AverageIQ float64 `json:"averageIq"`
}

type Store interface {
	Create(ctx context.Context, m Meta) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// SaveProgress leaves completed records untouched.
	SaveProgress(ctx context.Context, id string, currentQuestion int, answers []questions.Answer) error
	SaveCompletion(ctx context.Context, id string, correct, iq, percentile int, answers []questions.Answer) error
	SetEmail(ctx context.Context, id, email string) error
	List(ctx context.Context, o ListOpts) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
}
