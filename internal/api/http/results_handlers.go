package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/scoring"
)

// results prefers the handoff store and falls back to the persisted record.
// ok is false once a response has been written.
func (s *Server) results(w http.ResponseWriter, r *http.Request) (handoff.Results, bool) {
	id := chi.URLParam(r, "id")
	if s.Results != nil {
		res, err := s.Results.Get(r.Context(), id)
		if err == nil {
			return res, true
		}
		if !errors.Is(err, handoff.ErrNotFound) {
			log.Printf("handoff get %s: %v", id, err)
		}
	}
	rec, ok := s.loadSession(w, r)
	if !ok {
		return handoff.Results{}, false
	}
	if !rec.Completed() || rec.Score == nil || rec.IQScore == nil || rec.Percentile == nil {
		http.Error(w, "results not ready", http.StatusNotFound)
		return handoff.Results{}, false
	}
	return handoff.Results{
		SessionID:   rec.ID,
		Score:       *rec.Score,
		Total:       s.Bank.Len(),
		IQScore:     *rec.IQScore,
		Percentile:  *rec.Percentile,
		Answers:     rec.Answers,
		CompletedAt: *rec.CompletedAt,
	}, true
}

// GET /api/results/{id}
func (s *Server) ResultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.results(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /api/results/{id}/report
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.results(w, r)
		if !ok {
			return
		}
		// stored Correct flags and the issued score are final
		rep := scoring.BuildReport(s.Bank, res.Answers).
			WithResult(scoring.Result{IQ: res.IQScore, Percentile: res.Percentile}, res.Score, res.Total)
		writeJSON(w, http.StatusOK, rep)
	}
}
