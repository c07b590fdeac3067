package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/iqscore/internal/grading"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/quiz"
	"github.com/mind-engage/iqscore/internal/scoring"
	"github.com/mind-engage/iqscore/internal/session"
)

type quizResp struct {
	Accepted bool              `json:"accepted"`
	Answer   *questions.Answer `json:"answer,omitempty"`
	View     quiz.View         `json:"view"`
}

// POST /api/quiz/{id}/start
// Starts a driver for the session, resuming from its stored answers, or
// returns the one already running.
func (s *Server) StartQuizHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := s.loadSession(w, r)
		if !ok {
			return
		}
		// completion is persisted before the driver exits
		if rec.Completed() {
			writeJSON(w, http.StatusConflict, quizResp{View: completedView(s.Bank, rec)})
			return
		}
		if d, ok := s.Quizzes.Get(id); ok {
			s.writeView(w, r, d, http.StatusOK)
			return
		}
		prior, _ := grading.Regrade(s.Bank, rec.Answers)
		prior = catalogPrefix(s.Bank, prior)
		if len(prior) >= s.Bank.Len() {
			// every answer was saved but the completion was not
			s.finishStored(w, r, id, prior)
			return
		}
		d, started := s.Quizzes.Start(id, prior)
		code := http.StatusOK
		if started {
			code = http.StatusCreated
		}
		s.writeView(w, r, d, code)
	}
}

func (s *Server) finishStored(w http.ResponseWriter, r *http.Request, id string, answers []questions.Answer) {
	res, err := s.finish(r, id, answers, questions.CountCorrect(answers))
	if err != nil {
		log.Printf("finish %s: %v", id, err)
		http.Error(w, "failed to complete session", http.StatusInternalServerError)
		return
	}
	c := res.Score
	writeJSON(w, http.StatusOK, quizResp{View: quiz.View{
		Phase:    quiz.Complete,
		Index:    len(answers),
		Total:    res.Total,
		Answered: len(answers),
		Result:   &scoring.Result{IQ: res.IQScore, Percentile: res.Percentile},
		Correct:  &c,
	}})
}

// catalogPrefix keeps the leading answers that follow catalog order; a
// driver can only resume from a prefix.
func catalogPrefix(bank *questions.Bank, answers []questions.Answer) []questions.Answer {
	for i, a := range answers {
		if i >= bank.Len() || a.QuestionID != bank.Question(i).ID {
			return answers[:i]
		}
	}
	return answers
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, d *quiz.Driver, code int) {
	v, err := d.View(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, code, quizResp{Accepted: true, View: v})
}

// GET /api/quiz/{id}
func (s *Server) QuizViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d, ok := s.Quizzes.Get(chi.URLParam(r, "id")); ok {
			s.writeView(w, r, d, http.StatusOK)
			return
		}
		s.notRunning(w, r)
	}
}

// notRunning answers for a session with no live driver: the final view when
// the attempt completed, 404 otherwise.
func (s *Server) notRunning(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if rec.Completed() {
		writeJSON(w, http.StatusOK, quizResp{View: completedView(s.Bank, rec)})
		return
	}
	http.Error(w, quiz.ErrNotRunning.Error(), http.StatusNotFound)
}

func completedView(bank *questions.Bank, rec session.Record) quiz.View {
	v := quiz.View{
		Phase:    quiz.Complete,
		Index:    len(rec.Answers),
		Total:    bank.Len(),
		Answered: len(rec.Answers),
	}
	if rec.IQScore != nil && rec.Percentile != nil {
		v.Result = &scoring.Result{IQ: *rec.IQScore, Percentile: *rec.Percentile}
	}
	v.Correct = rec.Score
	return v
}

// POST /api/quiz/{id}/answer  { "answer": <json> }
func (s *Server) AnswerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answer json.RawMessage `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s.command(w, r, func(d *quiz.Driver) (quiz.Reply, error) {
			return d.Submit(r.Context(), req.Answer)
		})
	}
}

// POST /api/quiz/{id}/extend
func (s *Server) ExtendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.command(w, r, func(d *quiz.Driver) (quiz.Reply, error) {
			return d.Extend(r.Context())
		})
	}
}

// POST /api/quiz/{id}/continue
func (s *Server) ContinueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.command(w, r, func(d *quiz.Driver) (quiz.Reply, error) {
			return d.Acknowledge(r.Context())
		})
	}
}

// command runs fn against the live driver. A rejected command is not an
// error: the unchanged view comes back with accepted=false.
func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(*quiz.Driver) (quiz.Reply, error)) {
	d, ok := s.Quizzes.Get(chi.URLParam(r, "id"))
	if !ok {
		s.notRunning(w, r)
		return
	}
	rep, err := fn(d)
	switch {
	case errors.Is(err, questions.ErrBadResponse):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, quiz.ErrFinished):
		writeJSON(w, http.StatusConflict, quizResp{View: rep.View})
		return
	case err != nil:
		log.Printf("quiz %s: %v", d.ID(), err)
		http.Error(w, "quiz unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, quizResp{Accepted: rep.Accepted, Answer: rep.Answer, View: rep.View})
}
