package reconcile

import (
	"sort"
	"time"
)

// Reconcile classifies detected ids against the ledger of ids already emitted, keyed by
// the timestamp of the version last handled downstream.
//
//	deletes = emitted ∩ deleted
//	updates = emitted ∩ changed
//	adds    = changed \ emitted
//
// An id whose ledger timestamp is not older than its window timestamp was already handled
// at that version by an earlier run and needs no action.
func Reconcile(changes *ChangeSet, emitted map[int64]time.Time) Result {
	if changes == nil {
		changes = NewChangeSet()
	}

	deletes := make(map[int64]time.Time)
	for id, ts := range changes.Deleted {
		if last, ok := emitted[id]; ok && last.Before(ts) {
			deletes[id] = ts
		}
	}

	updates := make(map[int64]time.Time)
	adds := make(map[int64]time.Time)
	for id, ts := range changes.Changed {
		last, ok := emitted[id]
		switch {
		case !ok:
			adds[id] = ts
		case last.Before(ts):
			updates[id] = ts
		}
	}

	return Result{
		Adds:    orderByTimestamp(adds),
		Updates: orderByTimestamp(updates),
		Deletes: orderByTimestamp(deletes),
	}
}

// orderByTimestamp returns the ids of m sorted by timestamp, then id, for deterministic output.
func orderByTimestamp(m map[int64]time.Time) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := m[ids[i]], m[ids[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ids[i] < ids[j]
	})
	return ids
}
