package cmd

import (
	"fmt"
	"os"

	"history-forwarder/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose      int
	settingsFile string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "history-forwarder",
	Short: "Forward versioned record changes to the analytics backend",
	Long: `History Forwarder reads the version history of tracked entity types, works out
what was created, modified or removed since the last run, and forwards one JSON record
per changed entity while deleting stale records from the analytics backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	RootCmd.PersistentFlags().StringVar(&settingsFile, "settings", os.Getenv("HISTORY_FORWARDER_SETTINGS"), "Settings file (yaml, toml or json)")
}
