package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-triage/internal/app"
	"github.com/nhle/mail-triage/internal/logger"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	storePath := cfg.StorePath
	if storePath == "" {
		storePath = filepath.Join(model.ConfigDir(), "mailtriage.db")
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data directory: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = s.Close() }()

	program := tea.NewProgram(app.New(cfg, s, log), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "running application: %v\n", err)
		os.Exit(1)
	}
}
