package checkpoint

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger records which entities were emitted downstream and when.
type Ledger struct {
	db *gorm.DB
}

// NewLedger returns a ledger over db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Emitted returns the ids recorded for entityType with the timestamp of the version
// last handled downstream.
func (l *Ledger) Emitted(ctx context.Context, entityType EntityType) (map[int64]time.Time, error) {
	var rows []ProcessedEntity
	err := l.db.WithContext(ctx).
		Select("entity_id", "last_updated").
		Where("entity_type = ?", entityType).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger of %s: %w", entityType, err)
	}
	out := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		out[row.EntityID] = row.LastUpdated.UTC()
	}
	return out, nil
}

// Upsert records that the version of id at lastUpdated was handled downstream, either
// emitted or deleted.
// Writing the same id and timestamp twice leaves the ledger unchanged.
func (l *Ledger) Upsert(ctx context.Context, entityType EntityType, id int64, lastUpdated time.Time) error {
	row := ProcessedEntity{EntityType: entityType, EntityID: id, LastUpdated: lastUpdated.UTC()}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_updated"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record %s %d: %w", entityType, id, err)
	}
	return nil
}

// Forget removes ids from the ledger so a re-created id is classified as an add.
func (l *Ledger) Forget(ctx context.Context, entityType EntityType, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := l.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id IN ?", entityType, ids).
		Delete(&ProcessedEntity{}).Error
	if err != nil {
		return fmt.Errorf("failed to forget %s ids: %w", entityType, err)
	}
	return nil
}
