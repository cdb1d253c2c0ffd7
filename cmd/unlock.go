package cmd

import (
	"context"

	"history-forwarder/core/checkpoint"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var yesConfirmUnlock bool

// unlockCmd clears the lock left behind by a crashed run.
var unlockCmd = &cobra.Command{
	Use:   "unlock <entity>",
	Short: "Clear a stale lock",
	Long: `Clear the lock of an entity type after a run crashed without releasing it.

Only use this when no other sync is running for the entity type; the watermark is
left untouched so the next run retries the same window.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

func init() {
	unlockCmd.Flags().BoolVar(&yesConfirmUnlock, "yes", false, "Auto-confirm (non-interactive)")
	RootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	entityType := checkpoint.EntityType(args[0])
	if !confirmDestructiveAction("Unlocking while another sync runs can emit duplicates.", yesConfirmUnlock) {
		a.log.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	if err := checkpoint.NewTracker(a.db).Unlock(context.Background(), entityType); err != nil {
		return err
	}
	a.log.Info("Lock cleared", zap.String("entity_type", string(entityType)))
	return nil
}
