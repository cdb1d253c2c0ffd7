package reconcile

import (
	"context"
	"fmt"
	"time"

	"history-forwarder/core/history"
)

// Detector finds the ids touched since a watermark.
type Detector struct {
	source history.Source
}

// NewDetector returns a detector reading from source.
func NewDetector(source history.Source) *Detector {
	return &Detector{source: source}
}

// Detect loads every version record newer than lower and partitions it.
func (d *Detector) Detect(ctx context.Context, lower time.Time) (*ChangeSet, error) {
	records, err := d.source.ChangedSince(ctx, lower)
	if err != nil {
		return nil, fmt.Errorf("failed to detect changes: %w", err)
	}
	return Partition(records), nil
}

// Partition splits version records into changed and deleted ids. An id with a delete
// anywhere in records is deleted, whatever else happened to it.
func Partition(records []history.VersionRecord) *ChangeSet {
	set := NewChangeSet()
	for _, r := range records {
		if r.ChangeKind == history.ChangeDelete {
			keepNewest(set.Deleted, r.EntityID, r.VersionTimestamp)
		}
	}
	for _, r := range records {
		if _, deleted := set.Deleted[r.EntityID]; deleted {
			// the newest timestamp of a deleted id covers all its records
			keepNewest(set.Deleted, r.EntityID, r.VersionTimestamp)
			continue
		}
		keepNewest(set.Changed, r.EntityID, r.VersionTimestamp)
	}
	return set
}

func keepNewest(m map[int64]time.Time, id int64, ts time.Time) {
	if cur, ok := m[id]; !ok || ts.After(cur) {
		m[id] = ts.UTC()
	}
}
