// Package collector runs one reconciliation pass for one entity type.
//
// A pass locks the entity type, detects the versions newer than its watermark, classifies
// them against the ledger, deletes stale downstream records, writes fresh ones and finally
// advances the watermark to what the ledger confirms. When MaxCount cuts a batch the
// watermark stays below the oldest deferred change. Any failure after the lock is taken
// frees the lock and leaves the watermark where it was, so the next run retries the same
// window.
//
// # Usage
//
//	c, err := collector.New(profile, collector.Settings{}, collector.Dependencies{
//	    Tracker: checkpoint.NewTracker(db),
//	    Store:   store,
//	    Backend: client,
//	    Sink:    sink,
//	})
//	report, err := c.Run(ctx, collector.Options{MaxCount: 500})
package collector
