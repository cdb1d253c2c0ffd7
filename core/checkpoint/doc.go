// Package checkpoint persists the progress of the forwarder.
//
// Two tables are owned here:
//
//   - analytics_model_tracker: one row per entity type with the watermark
//     (last_updated) and an advisory lock (state).
//   - analytics_changes: the ledger, one row per emitted (entity type, entity id) with
//     the timestamp of the last version sent downstream.
//
// # Locking
//
// Acquire flips the lock with a single conditional UPDATE (`... WHERE state = Free`), so
// two concurrent runs can never both believe they own an entity type. Release moves the
// watermark to the newest ledger timestamp, i.e. to what was actually confirmed emitted,
// and frees the lock. When a run left changes behind, Release is given a ceiling and stays
// strictly below it. Abort frees the lock without moving the watermark and is what a
// failed or dry run calls.
//
// # Usage
//
//	tracker := checkpoint.NewTracker(db)
//	cp, err := tracker.Acquire(ctx, "community", false, false)
//	if errors.Is(err, checkpoint.ErrAlreadyLocked) {
//	    return nil
//	}
//	defer tracker.Release(ctx, "community", time.Time{})
package checkpoint
