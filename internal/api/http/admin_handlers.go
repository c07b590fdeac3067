package http

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/iqscore/internal/session"
)

// GET /api/admin/sessions?completed=true&limit=50&offset=0
func (s *Server) ListSessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := session.ListOpts{
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if c := q.Get("completed"); c != "" {
			b, err := strconv.ParseBool(c)
			if err != nil {
				http.Error(w, "bad completed filter", http.StatusBadRequest)
				return
			}
			opts.Completed = &b
		}
		recs, err := s.Sessions.List(r.Context(), opts)
		if err != nil {
			log.Printf("list sessions: %v", err)
			http.Error(w, "failed to list sessions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":  recs,
			"limit":  opts.Limit,
			"offset": opts.Offset,
		})
	}
}

// GET /api/admin/stats
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Sessions.Stats(r.Context())
		if err != nil {
			log.Printf("stats: %v", err)
			http.Error(w, "failed to compute stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sessions":   st,
			"activeQuiz":  s.Quizzes.Len(),
			"questions":  s.Bank.Len(),
		})
	}
}

// GET /api/admin/sessions/{id}/events
func (s *Server) SessionEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Events == nil {
			http.Error(w, "event log disabled", http.StatusNotFound)
			return
		}
		evs, err := s.Events.ByKey(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			log.Printf("events: %v", err)
			http.Error(w, "failed to read events", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
