// Package reconcile decides what has to happen downstream for one entity type.
//
// A run is reconciled in three steps:
//
// 1. Detect: version records newer than the watermark are partitioned into changed ids
//    and deleted ids. A delete anywhere in the window wins over any other change of the
//    same id.
//
// 2. Reconcile: the changed and deleted ids are crossed with the ledger of ids already
//    emitted. Deleted ids that were emitted become deletes, changed ids that were emitted
//    become updates, every other changed id is an add. Deleted ids that were never emitted
//    need no action. Neither do ids the ledger already records at their window timestamp
//    or later: an earlier run handled that version.
//
// 3. Plan: the backend cannot update a record in place, so an update is a delete of the
//    old record followed by an insert of the new one. The delete batch is therefore
//    updates ∪ deletes and the add batch adds ∪ updates. Each batch is ordered by the
//    newest version timestamp seen in the window and truncated on its own to MaxCount.
//    Plan.Ceiling is the oldest timestamp cut off, which the watermark must stay below.
//
// # Usage Example
//
//	changes, err := reconcile.NewDetector(store).Detect(ctx, checkpoint.LowerBound)
//	emitted, err := ledger.Emitted(ctx, entityType)
//	plan := reconcile.BuildPlan(changes, emitted, reconcile.Options{MaxCount: 100})
//
//	emitter.EmitDeletes(ctx, plan.DeleteBatch)
//	emitter.EmitAdds(ctx, records(plan.AddBatch))
package reconcile
