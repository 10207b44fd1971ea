package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/attendify/pos-event-sync/internal/app"
	"github.com/attendify/pos-event-sync/internal/config"
	"github.com/attendify/pos-event-sync/internal/logger"
	"github.com/attendify/pos-event-sync/internal/prompt"
	"github.com/attendify/pos-event-sync/internal/session"
	"github.com/attendify/pos-event-sync/internal/tui"
)

func main() {
	cfg, err := config.Load(os.Getenv("POS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file next to the database.
	logPath := filepath.Join(filepath.Dir(cfg.DBPath), "register.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := logger.NewJSON(logFile, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting services: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close(context.Background())

	// One session per register config, so open orders and the chosen event
	// survive a restart.
	sessionID := os.Getenv("POS_SESSION_ID")
	if sessionID == "" {
		sessionID = "register-" + cfg.ConfigName
	}
	prompts := prompt.NewDeferred()
	sess, err := session.New(svc.SessionOptions(sessionID, prompts))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		tui.NewRootModel(ctx, sess, prompts),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	cancel()
}
