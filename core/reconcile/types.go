package reconcile

import "time"

// ChangeSet is the output of change detection. Each id maps to the newest version
// timestamp seen for it inside the detection window. An id is never in both maps.
type ChangeSet struct {
	// Changed holds ids created or modified in the window.
	Changed map[int64]time.Time `json:"changed"`
	// Deleted holds ids with at least one delete in the window.
	Deleted map[int64]time.Time `json:"deleted"`
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Changed: make(map[int64]time.Time),
		Deleted: make(map[int64]time.Time),
	}
}

// Empty reports whether nothing was detected.
func (c *ChangeSet) Empty() bool {
	return c == nil || (len(c.Changed) == 0 && len(c.Deleted) == 0)
}

// ActionType represents the kind of downstream action for an entity.
type ActionType string

const (
	// ActionAdd emits an entity for the first time.
	ActionAdd ActionType = "add"
	// ActionUpdate replaces a previously emitted entity (delete, then add).
	ActionUpdate ActionType = "update"
	// ActionDelete removes a previously emitted entity.
	ActionDelete ActionType = "delete"
)

// Action represents a planned action for one entity.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// EntityID is the entity identifier.
	EntityID int64 `json:"entity_id"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`
}

// Result is the classification of one reconciliation pass. An id appears in at most one
// of the three lists. Each list is ordered by window timestamp, then id.
type Result struct {
	Adds    []int64 `json:"adds"`
	Updates []int64 `json:"updates"`
	Deletes []int64 `json:"deletes"`
}

// Plan contains the classification, the two batches derived from it, and the actions.
type Plan struct {
	Result

	// DeleteBatch is the list of ids whose downstream records are removed this run.
	DeleteBatch []int64 `json:"delete_batch"`

	// AddBatch is the list of ids whose records are (re)written this run.
	AddBatch []int64 `json:"add_batch"`

	// Actions contains one entry per classified id.
	Actions []Action `json:"actions"`

	// Ceiling is the earliest window timestamp of an id cut by MaxCount. Zero when
	// nothing was cut.
	Ceiling time.Time `json:"ceiling,omitempty"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a plan.
type PlanSummary struct {
	// Changed counts ids created or modified in the window.
	Changed int `json:"changed"`

	// Deleted counts ids deleted in the window.
	Deleted int `json:"deleted"`

	// Adds, Updates and Deletes count the classified ids.
	Adds    int `json:"adds"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`

	// DeleteBatch and AddBatch count the ids processed this run after truncation.
	DeleteBatch int `json:"delete_batch"`
	AddBatch    int `json:"add_batch"`

	// DeferredDeletes and DeferredAdds count the ids cut by MaxCount.
	DeferredDeletes int `json:"deferred_deletes"`
	DeferredAdds    int `json:"deferred_adds"`
}

// Options controls plan construction.
type Options struct {
	// MaxCount caps each batch. Zero or negative means unlimited.
	MaxCount int
}
