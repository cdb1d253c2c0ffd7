package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyLocked is returned by Acquire when another run holds the lock.
var ErrAlreadyLocked = errors.New("entity type is already being processed")

// ErrUnknownEntityType is returned when no tracker row exists for the entity type.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Checkpoint is the state handed to a run by Acquire.
type Checkpoint struct {
	// EntityType is the locked entity type.
	EntityType EntityType
	// LowerBound is the watermark; changes strictly newer than it are detected.
	LowerBound time.Time
	// Reset is true when the ledger was cleared by this acquire.
	Reset bool
}

// Status describes one tracker row for reporting.
type Status struct {
	EntityType  EntityType
	LastUpdated time.Time
	State       LockState
	LedgerRows  int64
}

// Tracker manages the tracker rows and owns the ledger stored next to them.
type Tracker struct {
	db *gorm.DB
	*Ledger
}

// NewTracker returns a tracker over db.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, Ledger: NewLedger(db)}
}

// Acquire locks entityType and returns its watermark.
// The tracker row is created on first use with the Epoch watermark. When reset is set,
// the ledger of the type is cleared and the watermark rewound to Epoch. Unless
// allowOverride is set, a held lock fails with ErrAlreadyLocked and nothing is changed.
func (t *Tracker) Acquire(ctx context.Context, entityType EntityType, reset, allowOverride bool) (*Checkpoint, error) {
	db := t.db.WithContext(ctx)

	seed := TrackedEntityType{EntityType: entityType, LastUpdated: Epoch, State: StateFree}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("failed to create tracker for %s: %w", entityType, err)
	}

	// Free -> Locked in one statement; no read-then-write window
	lock := db.Model(&TrackedEntityType{}).Where("entity_type = ?", entityType)
	if !allowOverride {
		lock = lock.Where("state = ?", StateFree)
	}
	res := lock.Update("state", StateLocked)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", entityType, res.Error)
	}
	if !allowOverride && res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, entityType)
	}

	if reset {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("entity_type = ?", entityType).Delete(&ProcessedEntity{}).Error; err != nil {
				return err
			}
			return tx.Model(&TrackedEntityType{}).
				Where("entity_type = ?", entityType).
				Update("last_updated", Epoch).Error
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reset %s: %w", entityType, err)
		}
	}

	var row TrackedEntityType
	if err := db.Where("entity_type = ?", entityType).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to read tracker for %s: %w", entityType, err)
	}

	return &Checkpoint{
		EntityType: entityType,
		LowerBound: row.LastUpdated.UTC(),
		Reset:      reset,
	}, nil
}

// Release advances the watermark to the newest ledger timestamp and frees the lock.
// An empty ledger, or one older than the current watermark, leaves the watermark as is.
// A non-zero ceiling only considers ledger rows strictly older than it, so changes at or
// after the ceiling are detected again by the next run.
// It returns the watermark in effect after the release.
func (t *Tracker) Release(ctx context.Context, entityType EntityType, ceiling time.Time) (time.Time, error) {
	var watermark time.Time
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row TrackedEntityType
		if err := tx.Where("entity_type = ?", entityType).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
			}
			return err
		}
		watermark = row.LastUpdated.UTC()

		var newest ProcessedEntity
		query := tx.Where("entity_type = ?", entityType)
		if !ceiling.IsZero() {
			query = query.Where("last_updated < ?", ceiling.UTC())
		}
		err := query.
			Order("last_updated DESC").
			Limit(1).
			Find(&newest).Error
		if err != nil {
			return err
		}
		if newest.ID != 0 && newest.LastUpdated.After(watermark) {
			watermark = newest.LastUpdated.UTC()
		}

		return tx.Model(&TrackedEntityType{}).
			Where("entity_type = ?", entityType).
			Updates(map[string]any{"last_updated": watermark, "state": StateFree}).Error
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to release %s: %w", entityType, err)
	}
	return watermark, nil
}

// Abort frees the lock and leaves the watermark untouched.
func (t *Tracker) Abort(ctx context.Context, entityType EntityType) error {
	err := t.db.WithContext(ctx).Model(&TrackedEntityType{}).
		Where("entity_type = ?", entityType).
		Update("state", StateFree).Error
	if err != nil {
		return fmt.Errorf("failed to abort %s: %w", entityType, err)
	}
	return nil
}

// Unlock clears a stale lock left by a crashed run.
func (t *Tracker) Unlock(ctx context.Context, entityType EntityType) error {
	var count int64
	if err := t.db.WithContext(ctx).Model(&TrackedEntityType{}).Where("entity_type = ?", entityType).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to read tracker for %s: %w", entityType, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return t.Abort(ctx, entityType)
}

// Status returns every tracker row with its ledger size, ordered by entity type.
func (t *Tracker) Status(ctx context.Context) ([]Status, error) {
	db := t.db.WithContext(ctx)

	var rows []TrackedEntityType
	if err := db.Order("entity_type").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}

	type ledgerCount struct {
		EntityType EntityType
		Total      int64
	}
	var counts []ledgerCount
	err := db.Model(&ProcessedEntity{}).
		Select("entity_type, COUNT(*) AS total").
		Group("entity_type").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	byType := make(map[EntityType]int64, len(counts))
	for _, c := range counts {
		byType[c.EntityType] = c.Total
	}

	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			EntityType:  row.EntityType,
			LastUpdated: row.LastUpdated.UTC(),
			State:       row.State,
			LedgerRows:  byType[row.EntityType],
		})
	}
	return out, nil
}
