package checkpoint

import (
	"time"

	"gorm.io/gorm"
)

// EntityType tags one tracked domain object class, e.g. "community".
type EntityType string

// LockState is the advisory lock of a tracker row.
type LockState int16

const (
	// StateFree means no run is processing the entity type.
	StateFree LockState = 1
	// StateLocked means a run is processing the entity type.
	StateLocked LockState = 2
)

// String returns the readable state name.
func (s LockState) String() string {
	switch s {
	case StateFree:
		return "ready"
	case StateLocked:
		return "in-process"
	default:
		return "unknown"
	}
}

// Epoch is the watermark of an entity type that has never been processed.
var Epoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// TrackedEntityType is the tracker row of one entity type.
type TrackedEntityType struct {
	ID          uint       `gorm:"primaryKey"`
	EntityType  EntityType `gorm:"size:100;not null;uniqueIndex"`
	LastUpdated time.Time  `gorm:"not null"`
	State       LockState  `gorm:"not null"`
}

// TableName overrides the default table name.
func (TrackedEntityType) TableName() string {
	return "analytics_model_tracker"
}

// ProcessedEntity is one ledger row.
type ProcessedEntity struct {
	ID          uint       `gorm:"primaryKey"`
	EntityType  EntityType `gorm:"size:100;not null;uniqueIndex:idx_processed_entity"`
	EntityID    int64      `gorm:"not null;uniqueIndex:idx_processed_entity"`
	LastUpdated time.Time  `gorm:"not null;index"`
}

// TableName overrides the default table name.
func (ProcessedEntity) TableName() string {
	return "analytics_changes"
}

// Migrate creates or updates the tracker and ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&TrackedEntityType{}, &ProcessedEntity{})
}
