package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"history-forwarder/core/aggregate"
	"history-forwarder/core/backend"
	"history-forwarder/core/checkpoint"
	"history-forwarder/core/emit"
	"history-forwarder/core/history"
	"history-forwarder/core/logger"
	"history-forwarder/core/normalize"
	"history-forwarder/core/reconcile"
	"history-forwarder/core/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "history-forwarder/core/collector"

// Options controls one run.
type Options struct {
	// Reset clears the ledger and rewinds the watermark before detecting. In a dry run it
	// only reads from the beginning as if the ledger were empty.
	Reset bool
	// AllowOverride takes the lock even when another run holds it.
	AllowOverride bool
	// MaxCount caps each batch. Zero means unlimited.
	MaxCount int
	// DryRun writes records to the sink but changes nothing else.
	DryRun bool
	// PruneDeleted removes deleted ids from the ledger once their delete succeeded.
	PruneDeleted bool
}

// Settings holds the static configuration of a collector.
type Settings struct {
	// Quantifier is prepended to the entity search in delete queries, e.g. "index=main".
	Quantifier string
	// PollInterval is the delay between two delete result polls.
	PollInterval time.Duration
	// PollTimeout bounds the wait for a delete search.
	PollTimeout time.Duration
}

// Dependencies are the collaborators of a collector.
type Dependencies struct {
	Tracker     *checkpoint.Tracker
	Store       history.Store
	Backend     backend.Client
	Sink        emit.Sink
	Instruments *telemetry.Instruments
	Logger      *zap.Logger
}

// Report describes the outcome of one run.
type Report struct {
	RunID      string
	EntityType checkpoint.EntityType
	// Skipped is true when the lock was held by another run.
	Skipped bool
	DryRun  bool
	// LowerBound is the watermark the run started from.
	LowerBound time.Time
	// Watermark is the watermark after the run.
	Watermark time.Time
	Summary   reconcile.PlanSummary
	Actions   []reconcile.Action
	// Added and Deleted count the records actually written and removed.
	Added    int
	Deleted  int
	Missing  []int64
	Duration time.Duration
}

// Collector runs reconciliation passes for one entity type.
type Collector struct {
	profile    history.Profile
	entityType checkpoint.EntityType
	settings   Settings
	deps       Dependencies
	aggregator *aggregate.Aggregator
	normalizer *normalize.Normalizer
	tracer     trace.Tracer
	adds       metric.Int64Counter
	deletes    metric.Int64Counter
}

// New returns a collector for profile. Extra providers run after the historical
// attributes and may overwrite their fields.
func New(profile history.Profile, settings Settings, deps Dependencies, providers ...aggregate.Provider) (*Collector, error) {
	profile = profile.WithDefaults()
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if deps.Tracker == nil || deps.Store == nil || deps.Sink == nil {
		return nil, errors.New("collector requires a tracker, a store and a sink")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Instruments == nil {
		deps.Instruments = telemetry.Noop()
	}

	meter := deps.Instruments.Meter(instrumentationName)
	adds, err := meter.Int64Counter("collector.adds", metric.WithDescription("Records written to the sink"))
	if err != nil {
		return nil, fmt.Errorf("failed to create adds counter: %w", err)
	}
	deletes, err := meter.Int64Counter("collector.deletes", metric.WithDescription("Records deleted from the backend"))
	if err != nil {
		return nil, fmt.Errorf("failed to create deletes counter: %w", err)
	}

	all := append([]aggregate.Provider{aggregate.HistoricalAttributes(deps.Store)}, providers...)
	return &Collector{
		profile:    profile,
		entityType: checkpoint.EntityType(profile.Name),
		settings:   settings,
		deps:       deps,
		aggregator: aggregate.New(all...),
		normalizer: &normalize.Normalizer{TimestampField: profile.TimestampField, FieldMap: profile.FieldMap},
		tracer:     deps.Instruments.Tracer(instrumentationName),
		adds:       adds,
		deletes:    deletes,
	}, nil
}

// EntityType returns the entity type this collector processes.
func (c *Collector) EntityType() checkpoint.EntityType {
	return c.entityType
}

func (c *Collector) quantifier() string {
	return strings.TrimSpace(c.settings.Quantifier + " " + c.profile.Search)
}

// Run executes one reconciliation pass. A held lock returns checkpoint.ErrAlreadyLocked
// with a skipped report and touches nothing.
func (c *Collector) Run(ctx context.Context, opts Options) (report *Report, err error) {
	start := time.Now()
	report = &Report{RunID: uuid.NewString(), EntityType: c.entityType, DryRun: opts.DryRun}
	log := logger.ForRun(c.deps.Logger, report.RunID, string(c.entityType))

	ctx, span := c.tracer.Start(ctx, "collector.run", trace.WithAttributes(
		attribute.String("entity_type", string(c.entityType)),
		attribute.String("run_id", report.RunID),
		attribute.Bool("dry_run", opts.DryRun),
	))
	defer func() {
		report.Duration = time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var cp *checkpoint.Checkpoint
	err = c.phase(ctx, "acquire", func(ctx context.Context) error {
		var aerr error
		cp, aerr = c.deps.Tracker.Acquire(ctx, c.entityType, opts.Reset && !opts.DryRun, opts.AllowOverride)
		return aerr
	})
	if err != nil {
		if errors.Is(err, checkpoint.ErrAlreadyLocked) {
			report.Skipped = true
			log.Warn("Entity type is locked by another run, skipping")
		}
		return report, err
	}
	report.Watermark = cp.LowerBound
	switch {
	case cp.Reset:
		log.Warn("Ledger cleared, re-emitting from the beginning")
	case opts.Reset && opts.DryRun:
		cp.LowerBound = checkpoint.Epoch
		log.Info("Dry run reset, reading from the beginning with the ledger left intact")
	}
	report.LowerBound = cp.LowerBound

	// frees the lock without moving the watermark on any failure below
	defer func() {
		if err == nil {
			return
		}
		if aerr := c.deps.Tracker.Abort(context.WithoutCancel(ctx), c.entityType); aerr != nil {
			log.Error("Failed to free lock", zap.Error(aerr))
			err = errors.Join(err, aerr)
		}
	}()

	var ceiling time.Time
	if ceiling, err = c.process(ctx, cp, opts, report, log); err != nil {
		log.Error("Run failed", zap.Error(err), zap.Int("added", report.Added), zap.Int("deleted", report.Deleted))
		return report, err
	}

	if opts.DryRun {
		err = c.deps.Tracker.Abort(ctx, c.entityType)
		log.Info("Dry run complete", zap.Int("would_add", report.Summary.AddBatch), zap.Int("would_delete", report.Summary.DeleteBatch))
		return report, err
	}

	err = c.phase(ctx, "release", func(ctx context.Context) error {
		watermark, rerr := c.deps.Tracker.Release(ctx, c.entityType, ceiling)
		report.Watermark = watermark
		return rerr
	})
	if err != nil {
		return report, err
	}

	log.Info("Run complete",
		zap.Int("added", report.Added),
		zap.Int("deleted", report.Deleted),
		zap.Time("watermark", report.Watermark),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// process runs the pass between acquire and release. It returns the ceiling the released
// watermark must stay below.
func (c *Collector) process(ctx context.Context, cp *checkpoint.Checkpoint, opts Options, report *Report, log *zap.Logger) (time.Time, error) {
	var changes *reconcile.ChangeSet
	err := c.phase(ctx, "detect", func(ctx context.Context) error {
		var derr error
		changes, derr = reconcile.NewDetector(c.deps.Store).Detect(ctx, cp.LowerBound)
		return derr
	})
	if err != nil {
		return time.Time{}, err
	}

	emitted, err := c.deps.Tracker.Emitted(ctx, c.entityType)
	if err != nil {
		return time.Time{}, err
	}
	if opts.Reset && opts.DryRun {
		emitted = map[int64]time.Time{}
	}

	plan := reconcile.BuildPlan(changes, emitted, reconcile.Options{MaxCount: opts.MaxCount})
	report.Summary = plan.Summary
	report.Actions = plan.Actions
	log.Info("Identified actions",
		zap.Int("adds", plan.Summary.Adds),
		zap.Int("updates", plan.Summary.Updates),
		zap.Int("deletes", plan.Summary.Deletes),
		zap.Int("deferred_adds", plan.Summary.DeferredAdds),
		zap.Int("deferred_deletes", plan.Summary.DeferredDeletes),
	)
	if !plan.Ceiling.IsZero() {
		log.Info("Batches truncated, watermark held below the oldest deferred change", zap.Time("ceiling", plan.Ceiling))
	}
	for _, action := range plan.Actions {
		log.Debug("Action", zap.String("type", string(action.Type)), zap.Int64("id", action.EntityID), zap.String("reason", action.Reason))
	}

	emitter := emit.New(c.deps.Backend, c.deps.Tracker, c.deps.Sink, emit.Options{
		EntityType:   c.entityType,
		Quantifier:   c.quantifier(),
		PollInterval: c.settings.PollInterval,
		PollTimeout:  c.settings.PollTimeout,
		DryRun:       opts.DryRun,
	}, log)

	err = c.phase(ctx, "emit_deletes", func(ctx context.Context) error {
		return emitter.EmitDeletes(ctx, plan.DeleteBatch)
	})
	if err != nil {
		return time.Time{}, err
	}
	if !opts.DryRun {
		report.Deleted = len(plan.DeleteBatch)
		c.deletes.Add(ctx, int64(len(plan.DeleteBatch)), metric.WithAttributes(attribute.String("entity_type", string(c.entityType))))
	}

	if !opts.DryRun {
		if err := c.recordDeletes(ctx, changes, deletedInBatch(plan), opts.PruneDeleted); err != nil {
			return time.Time{}, err
		}
	}

	var records []*normalize.Record
	err = c.phase(ctx, "aggregate", func(ctx context.Context) error {
		var berr error
		records, report.Missing, berr = c.buildRecords(ctx, plan.AddBatch)
		return berr
	})
	if err != nil {
		return time.Time{}, err
	}
	for _, id := range report.Missing {
		log.Warn("Changed entity has no live row, skipping", zap.Int64("id", id))
	}

	err = c.phase(ctx, "emit_adds", func(ctx context.Context) error {
		n, eerr := emitter.EmitAdds(ctx, records)
		report.Added = n
		c.adds.Add(ctx, int64(n), metric.WithAttributes(attribute.String("entity_type", string(c.entityType))))
		if eerr != nil {
			return eerr
		}
		return emitter.Flush(ctx)
	})
	return plan.Ceiling, err
}

// buildRecords aggregates and normalizes ids. Ids without a live row are returned as missing.
func (c *Collector) buildRecords(ctx context.Context, ids []int64) ([]*normalize.Record, []int64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	aggregates, err := c.aggregator.Compute(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	bases, err := c.deps.Store.BaseValues(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[int64]struct{}, len(bases))
	records := make([]*normalize.Record, 0, len(bases))
	for _, base := range bases {
		rawPK, _ := base.Get(normalize.KeyPK)
		id, _ := rawPK.(int64)
		seen[id] = struct{}{}

		rec, err := c.normalizer.BuildRecord(base, aggregates[id])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build %s record: %w", c.entityType, err)
		}
		records = append(records, rec)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return records, missing, nil
}

func (c *Collector) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "collector."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// recordDeletes marks confirmed deletes in the ledger at their delete timestamp, or drops
// them from it when prune is set.
func (c *Collector) recordDeletes(ctx context.Context, changes *reconcile.ChangeSet, ids []int64, prune bool) error {
	if prune {
		return c.deps.Tracker.Forget(ctx, c.entityType, ids)
	}
	for _, id := range ids {
		if err := c.deps.Tracker.Upsert(ctx, c.entityType, id, changes.Deleted[id]); err != nil {
			return err
		}
	}
	return nil
}

func deletedInBatch(plan *reconcile.Plan) []int64 {
	deletes := make(map[int64]struct{}, len(plan.Deletes))
	for _, id := range plan.Deletes {
		deletes[id] = struct{}{}
	}
	var out []int64
	for _, id := range plan.DeleteBatch {
		if _, ok := deletes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
