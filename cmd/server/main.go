package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attendify/pos-event-sync/internal/api"
	"github.com/attendify/pos-event-sync/internal/app"
	"github.com/attendify/pos-event-sync/internal/config"
	"github.com/attendify/pos-event-sync/internal/logger"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
)

func main() {
	// Config
	cfg, err := config.Load(os.Getenv("POS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logger
	log := logger.NewJSON(os.Stdout, cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start services")
	}

	// Sessions. Prompts are answered over HTTP.
	mgr := session.NewManager(log)
	prompts := prompt.NewDeferred()
	begin := func(ctx context.Context, id string) (*session.Session, error) {
		sess, err := mgr.Begin(ctx, svc.SessionOptions(id, prompts))
		if err != nil {
			return nil, err
		}
		go func() {
			if err := sess.Start(ctx); err != nil {
				log.Error().Err(err).Str("session_id", sess.ID()).Msg("session start failed")
			}
		}()
		return sess, nil
	}

	// Router
	events := svc.Events
	if cfg.CandidateSource != config.SourceSQLite {
		events = nil
	}
	router := api.NewRouter(svc.DB, mgr, prompts, begin, events, svc.Messages, cfg.APIKey, log)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", addr).Msg("pos server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-done
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if _, err := mgr.Current(); err == nil {
		if err := mgr.End(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to end session")
		}
	}
	if err := svc.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to close services")
	}
	stop()

	log.Info().Msg("server stopped")
}
