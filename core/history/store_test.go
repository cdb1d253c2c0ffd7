package history

import (
	"context"
	"testing"
	"time"

	"history-forwarder/core/database"
	"history-forwarder/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2017, 1, 12, 11, 38, 0, 0, time.UTC)

func setupStore(t *testing.T) (*GormStore, *gorm.DB) {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE community (id INTEGER PRIMARY KEY, name TEXT, zipcode TEXT, lots TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE community_history (history_id INTEGER PRIMARY KEY AUTOINCREMENT,
		id INTEGER, name TEXT, history_date DATETIME, history_type VARCHAR(1))`).Error)

	store, err := NewGormStore(db, Profile{
		Name:         "community",
		Table:        "community",
		HistoryTable: "community_history",
		Fields:       []string{"name", "zipcode", "lots"},
	})
	require.NoError(t, err)
	return store, db
}

func addVersion(t *testing.T, db *gorm.DB, id int64, at time.Time, kind ChangeKind) {
	require.NoError(t, db.Exec(`INSERT INTO community_history (id, name, history_date, history_type) VALUES (?, ?, ?, ?)`,
		id, "n", at, string(kind)).Error)
}

func TestGormStore_ChangedSince(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	addVersion(t, db, 1, base, ChangeCreate)
	addVersion(t, db, 1, base.Add(time.Hour), ChangeUpdate)
	addVersion(t, db, 2, base.Add(2*time.Hour), ChangeCreate)
	addVersion(t, db, 2, base.Add(3*time.Hour), ChangeDelete)

	records, err := store.ChangedSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, records, 3, "strictly newer than the watermark")

	assert.Equal(t, int64(1), records[0].EntityID)
	assert.Equal(t, ChangeUpdate, records[0].ChangeKind)
	assert.True(t, base.Add(time.Hour).Equal(records[0].VersionTimestamp))
	assert.Equal(t, ChangeDelete, records[2].ChangeKind)

	records, err = store.ChangedSince(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGormStore_History(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	addVersion(t, db, 1, base, ChangeCreate)
	addVersion(t, db, 1, base.Add(time.Hour), ChangeUpdate)
	addVersion(t, db, 2, base.Add(2*time.Hour), ChangeCreate)
	addVersion(t, db, 3, base.Add(2*time.Hour), ChangeCreate)

	records, err := store.History(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, r := range records {
		assert.NotEqual(t, int64(3), r.EntityID)
	}

	records, err = store.History(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGormStore_BaseValues(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(`INSERT INTO community (id, name, zipcode, lots) VALUES (2, 'Oak Ridge', '00501', '12'), (1, 'Pine', NULL, '')`).Error)

	values, err := store.BaseValues(ctx, []int64{2, 1, 99})
	require.NoError(t, err)
	require.Len(t, values, 2, "ids without a live row are skipped")

	assert.Equal(t, []string{"pk", "name", "zipcode", "lots"}, values[0].Keys())
	pk, _ := values[0].Get("pk")
	assert.Equal(t, int64(1), pk, "ordered by id")
	zip, _ := values[0].Get("zipcode")
	assert.Nil(t, zip)

	name, _ := values[1].Get("name")
	assert.Equal(t, "Oak Ridge", utils.ToString(name))
}

func TestGormStore_Verify(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	assert.NoError(t, store.Verify(ctx))

	broken, err := NewGormStore(store.db, Profile{
		Name:         "community",
		Table:        "community",
		HistoryTable: "community_history",
		Fields:       []string{"name", "missing_col"},
	})
	require.NoError(t, err)
	err = broken.Verify(ctx)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.ErrorContains(t, err, "missing_col")

	absent, err := NewGormStore(store.db, Profile{Name: "lot", Table: "lot", HistoryTable: "lot_history"})
	require.NoError(t, err)
	assert.ErrorContains(t, absent.Verify(ctx), "not found")
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"valid", Profile{Name: "c", Table: "c", HistoryTable: "c_h"}, false},
		{"missing name", Profile{Table: "c", HistoryTable: "c_h"}, true},
		{"missing table", Profile{Name: "c", HistoryTable: "c_h"}, true},
		{"injection", Profile{Name: "c", Table: "c; DROP TABLE x", HistoryTable: "c_h"}, true},
		{"bad field", Profile{Name: "c", Table: "c", HistoryTable: "c_h", Fields: []string{"a b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.WithDefaults().Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProfile)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfile_WithDefaults(t *testing.T) {
	p := Profile{Name: "community"}.WithDefaults()
	assert.Equal(t, "id", p.Columns.ID)
	assert.Equal(t, "history_date", p.Columns.Date)
	assert.Equal(t, "history_type", p.Columns.Type)
	assert.Equal(t, DefaultTimestampField, p.TimestampField)
	assert.Equal(t, "model=community", p.Search)
}
