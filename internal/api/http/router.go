package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	auth "github.com/mind-engage/iqscore/internal/auth/middleware"
	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/metrics"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/quiz"
	"github.com/mind-engage/iqscore/internal/rbac"
	"github.com/mind-engage/iqscore/internal/session"
)

// Server holds the dependencies of the HTTP API.
type Server struct {
	Bank     *questions.Bank
	Sessions session.Store
	Quizzes  *quiz.Registry
	Results  handoff.Store
	Auth     *auth.AuthService
	Events   EventLister // optional; enables the admin event listing

	AdminUser     string
	AdminPassHash string
	CORSOrigins   []string
	EnableMetrics bool

	// Ready reports whether backing services are reachable; nil is always ready.
	Ready func(ctx context.Context) error

	validate *validator.Validate
}

func (s *Server) Router() http.Handler {
	s.validate = validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(s.Auth, s.AdminUser, s.AdminPassHash))

	r.Route("/api", func(ar chi.Router) {
		// public
		ar.Post("/session", s.CreateSessionHandler())
		ar.Get("/questions", s.QuestionsHandler())

		// session token (owner) or admin
		ar.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(s.Auth))

			pr.With(rbac.RequireOwnerOr(rbac.PermSessionViewAll, ownsSession)).
				Get("/session/{id}", s.GetSessionHandler())
			pr.With(ownerOnly).
				Put("/session/{id}", s.UpdateSessionHandler())
			pr.With(ownerOnly).
				Post("/session/{id}/email", s.CaptureEmailHandler())

			pr.Route("/quiz/{id}", func(qr chi.Router) {
				qr.Use(rbac.Require(rbac.PermQuizTake), ownerOnly)
				qr.Post("/start", s.StartQuizHandler())
				qr.Get("/", s.QuizViewHandler())
				qr.Post("/answer", s.AnswerHandler())
				qr.Post("/extend", s.ExtendHandler())
				qr.Post("/continue", s.ContinueHandler())
			})

			pr.With(rbac.RequireOwnerOr(rbac.PermResultsViewAll, ownsSession)).
				Get("/results/{id}", s.ResultsHandler())
			pr.With(rbac.RequireOwnerOr(rbac.PermResultsViewAll, ownsSession)).
				Get("/results/{id}/report", s.ReportHandler())

			pr.Route("/admin", func(adm chi.Router) {
				adm.With(rbac.Require(rbac.PermSessionsList)).Get("/sessions", s.ListSessionsHandler())
				adm.With(rbac.Require(rbac.PermSessionsList)).Get("/sessions/{id}/events", s.SessionEventsHandler())
				adm.With(rbac.Require(rbac.PermStatsView)).Get("/stats", s.StatsHandler())
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", s.readyHandler)
	if s.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

// ownsSession matches the token subject against the {id} route param.
func ownsSession(r *http.Request) bool {
	id, ok := auth.SessionFromContext(r.Context())
	return ok && id == chi.URLParam(r, "id")
}

// ownerOnly admits only the session token whose subject is {id}.
func ownerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ownsSession(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
}

// countRequests records the matched route pattern and status per request.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.Request(route, status)
	})
}
