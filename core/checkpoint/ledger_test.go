package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	tracker, db := setupTracker(t)
	ctx := context.Background()

	emitted, err := tracker.Emitted(ctx, community)
	require.NoError(t, err)
	assert.Empty(t, emitted)

	require.NoError(t, tracker.Upsert(ctx, community, 1, at))
	require.NoError(t, tracker.Upsert(ctx, community, 1, at))
	require.NoError(t, tracker.Upsert(ctx, community, 2, at))
	require.NoError(t, tracker.Upsert(ctx, "bill", 3, at))

	t.Run("Upsert is idempotent", func(t *testing.T) {
		var count int64
		require.NoError(t, db.Model(&ProcessedEntity{}).Where("entity_type = ?", community).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Upsert replaces timestamp", func(t *testing.T) {
		require.NoError(t, tracker.Upsert(ctx, community, 1, at.Add(time.Hour)))
		var row ProcessedEntity
		require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", community, 1).First(&row).Error)
		assert.True(t, at.Add(time.Hour).Equal(row.LastUpdated))
	})

	t.Run("Emitted is scoped to the type", func(t *testing.T) {
		emitted, err := tracker.Emitted(ctx, community)
		require.NoError(t, err)
		require.Len(t, emitted, 2)
		assert.True(t, at.Add(time.Hour).Equal(emitted[1]))
		assert.True(t, at.Equal(emitted[2]))
	})

	t.Run("Forget", func(t *testing.T) {
		require.NoError(t, tracker.Forget(ctx, community, nil))
		require.NoError(t, tracker.Forget(ctx, community, []int64{2, 3}))

		emitted, err := tracker.Emitted(ctx, community)
		require.NoError(t, err)
		assert.Len(t, emitted, 1)
		assert.Contains(t, emitted, int64(1))

		emitted, err = tracker.Emitted(ctx, "bill")
		require.NoError(t, err)
		assert.Len(t, emitted, 1)
	})
}
