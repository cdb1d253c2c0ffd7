package emit

import (
	"context"
	"fmt"
	"time"

	"history-forwarder/core/backend"
	"history-forwarder/core/checkpoint"
	"history-forwarder/core/normalize"

	"go.uber.org/zap"
)

// Ledger is the part of the checkpoint ledger the emitter writes to.
type Ledger interface {
	Upsert(ctx context.Context, entityType checkpoint.EntityType, id int64, lastUpdated time.Time) error
}

// Options configures an Emitter.
type Options struct {
	// EntityType is the type the emitted ids belong to.
	EntityType checkpoint.EntityType
	// Quantifier scopes delete searches to the entity type.
	Quantifier string
	// PollInterval is the delay between two result polls.
	PollInterval time.Duration
	// PollTimeout bounds the wait for a delete search.
	PollTimeout time.Duration
	// DryRun logs deletes instead of submitting them and leaves the ledger untouched.
	DryRun bool
}

// Emitter sends deletes to the backend and records to the sink.
type Emitter struct {
	client backend.Client
	ledger Ledger
	sink   Sink
	opts   Options
	logger *zap.Logger
}

// New returns an emitter. client may be nil in dry-run mode.
func New(client backend.Client, ledger Ledger, sink Sink, opts Options, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{client: client, ledger: ledger, sink: sink, opts: opts, logger: logger}
}

// EmitDeletes removes every event of ids from the backend and waits for the job to finish.
func (e *Emitter) EmitDeletes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := BuildDeleteQuery(e.opts.Quantifier, ids)
	if e.opts.DryRun {
		e.logger.Info("Dry run, skipping delete", zap.String("query", query), zap.Int("count", len(ids)))
		return nil
	}
	if e.client == nil {
		return fmt.Errorf("no backend configured to delete %d %s records", len(ids), e.opts.EntityType)
	}

	jobID, err := e.client.CreateSearch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to submit delete for %s: %w", e.opts.EntityType, err)
	}
	e.logger.Debug("Submitted delete", zap.String("sid", jobID), zap.Int("count", len(ids)))

	start := time.Now()
	if _, err := backend.WaitForResults(ctx, e.client, jobID, e.opts.PollInterval, e.opts.PollTimeout); err != nil {
		return fmt.Errorf("failed waiting on delete %s: %w", jobID, err)
	}
	e.logger.Info("Deleted records",
		zap.String("entity_type", string(e.opts.EntityType)),
		zap.Int("count", len(ids)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// EmitAdds records each record in the ledger and writes it to the sink. It returns the
// number of records written before the first failure.
func (e *Emitter) EmitAdds(ctx context.Context, records []*normalize.Record) (int, error) {
	written := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		line, err := rec.MarshalJSON()
		if err != nil {
			return written, fmt.Errorf("failed to serialize %s %d: %w", e.opts.EntityType, rec.EntityID, err)
		}

		if !e.opts.DryRun {
			if err := e.ledger.Upsert(ctx, e.opts.EntityType, rec.EntityID, rec.Timestamp); err != nil {
				return written, err
			}
		}
		if err := e.sink.Write(ctx, string(e.opts.EntityType), line); err != nil {
			return written, fmt.Errorf("failed to write %s %d: %w", e.opts.EntityType, rec.EntityID, err)
		}
		written++
	}
	return written, nil
}

// Flush flushes the sink.
func (e *Emitter) Flush(ctx context.Context) error {
	if err := e.sink.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
