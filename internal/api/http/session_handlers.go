package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/iqscore/internal/grading"
	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/metrics"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/rbac"
	"github.com/mind-engage/iqscore/internal/scoring"
	"github.com/mind-engage/iqscore/internal/session"
)

type createSessionReq struct {
	UTMSource   string `json:"utm_source" validate:"max=255"`
	UTMMedium   string `json:"utm_medium" validate:"max=255"`
	UTMCampaign string `json:"utm_campaign" validate:"max=255"`
	UTMContent  string `json:"utm_content" validate:"max=255"`
}

// POST /api/session
// An empty or unparsable body still creates a session without UTM data.
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			req = createSessionReq{}
		}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, "utm values too long", http.StatusBadRequest)
			return
		}
		ua := r.UserAgent()
		if ua == "" {
			ua = "unknown"
		}
		rec, err := s.Sessions.Create(r.Context(), session.Meta{
			IPAddress:   clientIP(r),
			UserAgent:   ua,
			UTMSource:   req.UTMSource,
			UTMMedium:   req.UTMMedium,
			UTMCampaign: req.UTMCampaign,
			UTMContent:  req.UTMContent,
		})
		if err != nil {
			log.Printf("create session: %v", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
		tok, err := s.Auth.IssueJWT(rec.ID, rbac.RoleTaker)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		metrics.SessionCreated()
		writeJSON(w, http.StatusCreated, map[string]string{"sessionId": rec.ID, "token": tok})
	}
}

// GET /api/session/{id}
func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.loadSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (session.Record, bool) {
	rec, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
		return rec, false
	case err != nil:
		log.Printf("get session: %v", err)
		http.Error(w, "failed to fetch session", http.StatusInternalServerError)
		return rec, false
	}
	return rec, true
}

type updateSessionReq struct {
	CurrentQuestion *int                `json:"currentQuestion" validate:"omitempty,min=0"`
	Answers         *[]questions.Answer `json:"answers"`
	Email           *string             `json:"email" validate:"omitempty,email,max=320"`
	Completed       bool                `json:"completed"`
}

// PUT /api/session/{id}
// Client-reported correctness, score, IQ and percentile are never trusted:
// answers are regraded against the bank and the result recomputed.
func (s *Server) UpdateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req updateSessionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, "invalid update: "+err.Error(), http.StatusBadRequest)
			return
		}
		if _, live := s.Quizzes.Get(id); live {
			http.Error(w, "quiz in progress", http.StatusConflict)
			return
		}
		rec, ok := s.loadSession(w, r)
		if !ok {
			return
		}
		if rec.Completed() && (req.Completed || req.Answers != nil || req.CurrentQuestion != nil) {
			http.Error(w, "session already completed", http.StatusConflict)
			return
		}

		ctx := r.Context()
		answers := rec.Answers
		if req.Answers != nil {
			answers = *req.Answers
		}
		if len(answers) > s.Bank.Len() {
			http.Error(w, "too many answers", http.StatusBadRequest)
			return
		}
		// the progress index always equals the number of answers
		if req.CurrentQuestion != nil && *req.CurrentQuestion != len(answers) {
			http.Error(w, "currentQuestion must equal the number of answers", http.StatusBadRequest)
			return
		}
		answers, correct := grading.Regrade(s.Bank, answers)

		var err error
		switch {
		case req.Completed:
			_, err = s.finish(r, id, answers, correct)
		case req.Answers != nil || req.CurrentQuestion != nil:
			err = s.Sessions.SaveProgress(ctx, id, len(answers), answers)
		}
		if err == nil && req.Email != nil {
			err = s.setEmail(r, id, *req.Email)
		}
		if err != nil {
			log.Printf("update session %s: %v", id, err)
			http.Error(w, "failed to update session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// finish scores regraded answers over the whole bank, persists the
// completion and hands the results off.
func (s *Server) finish(r *http.Request, id string, answers []questions.Answer, correct int) (handoff.Results, error) {
	res := scoring.Score(correct, s.Bank.Len())
	if err := s.Sessions.SaveCompletion(r.Context(), id, correct, res.IQ, res.Percentile, answers); err != nil {
		return handoff.Results{}, err
	}
	metrics.Score(res.IQ)
	out := handoff.Results{
		SessionID:  id,
		Score:      correct,
		Total:      s.Bank.Len(),
		IQScore:    res.IQ,
		Percentile: res.Percentile,
		Answers:    answers,
	}
	s.putResults(r, out)
	return out, nil
}

func (s *Server) putResults(r *http.Request, res handoff.Results) {
	if s.Results == nil {
		return
	}
	if res.CompletedAt.IsZero() {
		if rec, err := s.Sessions.Get(r.Context(), res.SessionID); err == nil && rec.CompletedAt != nil {
			res.CompletedAt = *rec.CompletedAt
		}
	}
	if err := s.Results.Put(r.Context(), res); err != nil {
		metrics.SyncFailed("handoff")
		log.Printf("handoff %s: %v", res.SessionID, err)
	}
}

func (s *Server) setEmail(r *http.Request, id, email string) error {
	if err := s.Sessions.SetEmail(r.Context(), id, strings.TrimSpace(email)); err != nil {
		return err
	}
	metrics.EmailCaptured()
	return nil
}

type emailReq struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

// POST /api/session/{id}/email  { "email": "..." }
func (s *Server) CaptureEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, "invalid email", http.StatusBadRequest)
			return
		}
		if _, ok := s.loadSession(w, r); !ok {
			return
		}
		if err := s.setEmail(r, chi.URLParam(r, "id"), req.Email); err != nil {
			log.Printf("capture email: %v", err)
			http.Error(w, "failed to save email", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// GET /api/questions
func (s *Server) QuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"total":     s.Bank.Len(),
			"questions": s.Bank.PublicAll(),
		})
	}
}
