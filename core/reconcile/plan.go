package reconcile

import (
	"time"
)

// BuildPlan reconciles changes against the ledger and derives the delete and add
// batches for this run.
//
// The delete batch is updates ∪ deletes and the add batch adds ∪ updates. Each batch is
// truncated to opts.MaxCount independently, so an update can be deleted without being
// re-added in the same run. It stays in the ledger and is picked up again next run. An
// update cut from the delete batch is cut from the add batch too, since writing the new
// record before the old one is removed would leave both downstream.
//
// When anything is cut, Ceiling is the earliest window timestamp among the cut ids. The
// watermark must stay strictly below it or the cut ids would fall out of the next window.
func BuildPlan(changes *ChangeSet, emitted map[int64]time.Time, opts Options) *Plan {
	if changes == nil {
		changes = NewChangeSet()
	}
	result := Reconcile(changes, emitted)

	deleteBatch := union(changes, result.Updates, result.Deletes)
	addBatch := union(changes, result.Adds, result.Updates)

	deleteBatch, cutDeletes := truncate(deleteBatch, opts.MaxCount)
	addBatch, cutAdds := truncate(addBatch, opts.MaxCount)
	addBatch, cutAdds = holdBack(addBatch, cutAdds, cutDeletes)

	return &Plan{
		Result:      result,
		DeleteBatch: deleteBatch,
		AddBatch:    addBatch,
		Actions:     buildActions(result),
		Ceiling:     earliest(changes, cutDeletes, cutAdds),
		Summary: PlanSummary{
			Changed:         len(changes.Changed),
			Deleted:         len(changes.Deleted),
			Adds:            len(result.Adds),
			Updates:         len(result.Updates),
			Deletes:         len(result.Deletes),
			DeleteBatch:     len(deleteBatch),
			AddBatch:        len(addBatch),
			DeferredDeletes: len(cutDeletes),
			DeferredAdds:    len(cutAdds),
		},
	}
}

// union merges two disjoint id lists and orders the result by window timestamp.
func union(changes *ChangeSet, a, b []int64) []int64 {
	m := make(map[int64]time.Time, len(a)+len(b))
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			m[id] = windowTimestamp(changes, id)
		}
	}
	return orderByTimestamp(m)
}

func windowTimestamp(changes *ChangeSet, id int64) time.Time {
	if ts, ok := changes.Changed[id]; ok {
		return ts
	}
	return changes.Deleted[id]
}

// truncate splits ids into the first max kept ids and the cut remainder.
func truncate(ids []int64, max int) ([]int64, []int64) {
	if max <= 0 || len(ids) <= max {
		return ids, nil
	}
	return ids[:max], ids[max:]
}

// holdBack moves the ids of kept that are also in held into cut.
func holdBack(kept, cut, held []int64) ([]int64, []int64) {
	if len(held) == 0 {
		return kept, cut
	}
	skip := make(map[int64]struct{}, len(held))
	for _, id := range held {
		skip[id] = struct{}{}
	}
	out := make([]int64, 0, len(kept))
	for _, id := range kept {
		if _, ok := skip[id]; ok {
			cut = append(cut, id)
			continue
		}
		out = append(out, id)
	}
	return out, cut
}

// earliest returns the smallest window timestamp of the given ids, or zero when there are none.
func earliest(changes *ChangeSet, lists ...[]int64) time.Time {
	var first time.Time
	for _, list := range lists {
		for _, id := range list {
			if ts := windowTimestamp(changes, id); first.IsZero() || ts.Before(first) {
				first = ts
			}
		}
	}
	return first
}

func buildActions(result Result) []Action {
	actions := make([]Action, 0, len(result.Adds)+len(result.Updates)+len(result.Deletes))
	for _, id := range result.Adds {
		actions = append(actions, Action{Type: ActionAdd, EntityID: id, Reason: "changed, never emitted"})
	}
	for _, id := range result.Updates {
		actions = append(actions, Action{Type: ActionUpdate, EntityID: id, Reason: "changed since last emitted"})
	}
	for _, id := range result.Deletes {
		actions = append(actions, Action{Type: ActionDelete, EntityID: id, Reason: "deleted after being emitted"})
	}
	return actions
}
