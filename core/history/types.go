package history

import (
	"context"
	"time"

	"history-forwarder/core/normalize"
)

// ChangeKind is the change marker stored on each version row.
type ChangeKind string

const (
	// ChangeCreate marks the first version of an entity.
	ChangeCreate ChangeKind = "+"
	// ChangeUpdate marks a modification.
	ChangeUpdate ChangeKind = "~"
	// ChangeDelete marks the removal of an entity.
	ChangeDelete ChangeKind = "-"
)

// String returns a readable name for logs.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreate:
		return "create"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown(" + string(k) + ")"
	}
}

// VersionRecord is one immutable snapshot of an entity. Only the columns the
// forwarder needs are loaded.
type VersionRecord struct {
	EntityID         int64
	VersionTimestamp time.Time
	ChangeKind       ChangeKind
}

// Source returns version records from the history store.
type Source interface {
	// ChangedSince returns every version record strictly newer than lower.
	ChangedSince(ctx context.Context, lower time.Time) ([]VersionRecord, error)
	// History returns every version record of the given ids, regardless of age.
	History(ctx context.Context, ids []int64) ([]VersionRecord, error)
}

// Store is a Source that can also project the live rows of entities.
type Store interface {
	Source
	// BaseValues returns `pk` followed by the configured fields for each live entity,
	// ordered by id. Ids without a live row are absent from the result.
	BaseValues(ctx context.Context, ids []int64) ([]normalize.Fields, error)
}
