package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/iqscore/internal/api/http"
	auth "github.com/mind-engage/iqscore/internal/auth/middleware"
	"github.com/mind-engage/iqscore/internal/config"
	"github.com/mind-engage/iqscore/internal/db"
	"github.com/mind-engage/iqscore/internal/eventlog"
	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/quiz"
	"github.com/mind-engage/iqscore/internal/session"
)

func main() {
	cfg := config.Load()

	bank, err := questions.LoadFile(cfg.QuestionBankPath)
	if err != nil {
		log.Fatalf("question bank: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		dbh    *sql.DB
		store  session.Store
		events *eventlog.Repo
	)
	if cfg.DBDriver == "memory" {
		store = session.NewInMemoryStore()
	} else {
		dbh, err = db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		defer dbh.Close()
		events = eventlog.NewRepo(dbh, cfg.PublicURL)
		store = session.WithEvents(session.NewSQLStore(dbh), events)
	}

	// --- Result handoff ---
	var results handoff.Store
	var ping func(ctx context.Context) error
	if cfg.RedisURL != "" {
		rdb, err := handoff.Dial(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		results = handoff.NewRedisStore(rdb, cfg.ResultsTTL)
		ping = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		results = handoff.NewMemoryStore(cfg.ResultsTTL)
	}

	reg := quiz.NewRegistry(bank, questions.DefaultEngagement(), store, results, quiz.Options{
		TickInterval:      cfg.TickInterval,
		TransitionDelay:   cfg.TransitionDelay,
		SyncTimeout:       cfg.SyncTimeout,
		CompletionTimeout: cfg.CompletionTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	})

	srv := &api.Server{
		Bank:          bank,
		Sessions:      store,
		Quizzes:       reg,
		Results:       results,
		Auth:          auth.NewAuthService(cfg.AuthHMACSecret, cfg.SessionTokenTTL),
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		CORSOrigins:   cfg.CORSOrigins,
		EnableMetrics: cfg.EnableMetrics,
		Ready: func(ctx context.Context) error {
			if dbh != nil {
				if err := dbh.PingContext(ctx); err != nil {
					return err
				}
			}
			if ping != nil {
				return ping(ctx)
			}
			return nil
		},
	}
	if events != nil {
		srv.Events = events
	}

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("iqscored listening on %s (mode=%s, db=%s, questions=%d)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, bank.Len())
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	if err := hs.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := reg.Shutdown(sctx); err != nil {
		log.Printf("quiz shutdown: %v", err)
	}
}
