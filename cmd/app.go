package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"history-forwarder/core/checkpoint"
	"history-forwarder/core/config"
	"history-forwarder/core/database"
	"history-forwarder/core/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds what every command needs.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

// bootstrap loads configuration, builds the logger and opens the checkpoint database.
func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(".", settingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Log.Level = logger.VerbosityLevel(cfg.Log.Level, verbose)
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := checkpoint.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate checkpoint tables: %w", err)
	}

	return &app{cfg: cfg, log: l, db: db}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
// Prompts go to stderr because stdout may carry records.
func confirmDestructiveAction(prompt string, yes bool) bool {
	if yes {
		fmt.Fprintln(os.Stderr, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprintf(os.Stderr, "\n⚠️  %s Type 'yes' to confirm: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
