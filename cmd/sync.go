package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"history-forwarder/core/backend"
	"history-forwarder/core/checkpoint"
	"history-forwarder/core/collector"
	"history-forwarder/core/emit"
	"history-forwarder/core/history"
	"history-forwarder/core/storage"
	"history-forwarder/core/telemetry"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for sync command
	resetSync      bool
	overrideSync   bool
	maxCountSync   int
	dryRunSync     bool
	outputSync     string
	yesConfirmSync bool
)

// syncCmd runs one reconciliation pass per entity type.
var syncCmd = &cobra.Command{
	Use:   "sync [entity...]",
	Short: "Forward changes since the last run",
	Long: `Detect created, modified and deleted entities since the last successful run,
delete stale records from the backend and write fresh ones to the output.

Without arguments every configured entity type is processed in order.

Examples:
  # Forward every entity type to stdout
  sync

  # Forward one entity type to a file, 500 records at most
  sync community --output records.ndjson --max-count 500

  # Show what would be sent without touching the backend or the ledger
  sync --dry-run

  # Start over from the beginning of history
  sync community --reset --yes`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&resetSync, "reset", false, "Clear the ledger and re-emit everything; with --dry-run only previews it")
	syncCmd.Flags().BoolVar(&overrideSync, "override", false, "Take the lock even if another run holds it")
	syncCmd.Flags().IntVar(&maxCountSync, "max-count", -1, "Cap each batch (default from sync.max_count, 0 for unlimited)")
	syncCmd.Flags().BoolVar(&dryRunSync, "dry-run", false, "Write records but leave the backend, ledger and watermark untouched")
	syncCmd.Flags().StringVar(&outputSync, "output", "", "Output: '-' for stdout, 's3' for object storage, or a file path")
	syncCmd.Flags().BoolVar(&yesConfirmSync, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	l := a.log

	profiles, err := selectProfiles(a.cfg.Entities, args)
	if err != nil {
		return err
	}

	if resetSync && !dryRunSync {
		if !confirmDestructiveAction(fmt.Sprintf("--reset re-emits every record of %d entity type(s).", len(profiles)), yesConfirmSync) {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
	}

	output := outputConfig(a.cfg.Output, outputSync)
	runID := uuid.NewString()

	var objects storage.Client
	if output.Mode == emit.ModeObject {
		objects, err = storage.NewClient(a.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx, objects, a.cfg.Storage.Bucket, a.cfg.Storage.Region); err != nil {
			return err
		}
	}

	sink, err := emit.Open(output, objects, a.cfg.Storage.Bucket, runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			l.Error("Failed to close output", zap.Error(cerr))
		}
	}()

	instruments, err := telemetry.Init(ctx, a.cfg.Telemetry, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if rm, cerr := instruments.Collect(context.Background()); cerr == nil {
			for name, value := range telemetry.Counters(rm) {
				l.Debug("Counter", zap.String("name", name), zap.Int64("value", value))
			}
		}
		_ = instruments.Shutdown(context.Background())
	}()

	maxCount := a.cfg.Sync.MaxCount
	if maxCountSync >= 0 {
		maxCount = maxCountSync
	}
	opts := collector.Options{
		Reset:         resetSync,
		AllowOverride: overrideSync,
		MaxCount:      maxCount,
		DryRun:        dryRunSync,
		PruneDeleted:  a.cfg.Sync.PruneDeleted,
	}
	settings := collector.Settings{
		Quantifier:   a.cfg.Backend.DeleteQuantifier,
		PollInterval: a.cfg.Backend.PollInterval(),
		PollTimeout:  a.cfg.Backend.PollTimeout(),
	}
	client := backend.NewSplunkClient(a.cfg.Backend, l)
	tracker := checkpoint.NewTracker(a.db)

	l.Info("Starting sync",
		zap.String("run_id", runID),
		zap.Int("entity_types", len(profiles)),
		zap.String("output", output.Mode),
		zap.Bool("dry_run", dryRunSync),
	)

	for _, profile := range profiles {
		store, err := history.NewGormStore(a.db, profile)
		if err != nil {
			return err
		}
		if err := store.Verify(ctx); err != nil {
			return fmt.Errorf("entity %s: %w", profile.Name, err)
		}

		c, err := collector.New(profile, settings, collector.Dependencies{
			Tracker:     tracker,
			Store:       store,
			Backend:     client,
			Sink:        sink,
			Instruments: instruments,
			Logger:      l,
		})
		if err != nil {
			return err
		}

		report, err := c.Run(ctx, opts)
		if errors.Is(err, checkpoint.ErrAlreadyLocked) {
			l.Warn("Skipping locked entity type, use --override or unlock if the previous run crashed",
				zap.String("entity_type", profile.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("sync of %s failed: %w", profile.Name, err)
		}
		printRunReport(l, report)
	}

	return nil
}

func selectProfiles(all []history.Profile, names []string) ([]history.Profile, error) {
	if len(all) == 0 {
		return nil, errors.New("no entities configured, add an entities section to the settings file")
	}
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]history.Profile, len(all))
	for _, p := range all {
		byName[p.Name] = p
	}
	out := make([]history.Profile, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown entity type %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func outputConfig(cfg emit.Config, flag string) emit.Config {
	switch flag {
	case "":
	case "-":
		cfg.Mode = emit.ModeStdout
	case emit.ModeObject:
		cfg.Mode = emit.ModeObject
	default:
		cfg.Mode = emit.ModeFile
		cfg.Path = flag
	}
	return cfg
}

// printRunReport prints a formatted run report using logger.
func printRunReport(l *zap.Logger, report *collector.Report) {
	s := report.Summary

	l.Info("Sync report",
		zap.String("entity_type", string(report.EntityType)),
		zap.Int("changed", s.Changed),
		zap.Int("deleted", s.Deleted),
		zap.Int("adds", s.Adds),
		zap.Int("updates", s.Updates),
		zap.Int("deletes", s.Deletes),
		zap.Int("written", report.Added),
		zap.Int("removed", report.Deleted),
		zap.Time("watermark", report.Watermark),
		zap.Duration("duration", report.Duration),
	)

	if s.DeferredAdds > 0 || s.DeferredDeletes > 0 {
		l.Info("Batches truncated, run again to continue",
			zap.Int("deferred_adds", s.DeferredAdds),
			zap.Int("deferred_deletes", s.DeferredDeletes),
		)
	}

	// Show sample of actions (max 5 for logger)
	maxShow := 5
	if len(report.Actions) < maxShow {
		maxShow = len(report.Actions)
	}
	for i := 0; i < maxShow; i++ {
		action := report.Actions[i]
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.Int64("id", action.EntityID),
			zap.String("reason", action.Reason),
		)
	}
	if len(report.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(report.Actions)-maxShow))
	}
}
