package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"history-forwarder/core/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2017, 1, 12, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

// ids builds a ledger of ids emitted long before any test window.
func ids(v ...int64) map[int64]time.Time {
	m := make(map[int64]time.Time, len(v))
	for _, id := range v {
		m[id] = t0.Add(-24 * time.Hour)
	}
	return m
}

// mockSource serves version records newer than the requested watermark.
type mockSource struct {
	records []history.VersionRecord
	err     error
}

func (m *mockSource) ChangedSince(ctx context.Context, lower time.Time) ([]history.VersionRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []history.VersionRecord
	for _, r := range m.records {
		if r.VersionTimestamp.After(lower) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockSource) History(ctx context.Context, ids []int64) ([]history.VersionRecord, error) {
	return m.records, nil
}

func TestPartition_DeleteWins(t *testing.T) {
	set := Partition([]history.VersionRecord{
		{EntityID: 1, VersionTimestamp: at(1), ChangeKind: history.ChangeCreate},
		{EntityID: 1, VersionTimestamp: at(2), ChangeKind: history.ChangeDelete},
		{EntityID: 1, VersionTimestamp: at(3), ChangeKind: history.ChangeUpdate},
		{EntityID: 2, VersionTimestamp: at(1), ChangeKind: history.ChangeUpdate},
		{EntityID: 2, VersionTimestamp: at(4), ChangeKind: history.ChangeUpdate},
	})

	assert.Len(t, set.Deleted, 1)
	assert.True(t, at(3).Equal(set.Deleted[1]), "newest timestamp of the id")
	assert.Len(t, set.Changed, 1)
	assert.True(t, at(4).Equal(set.Changed[2]))
	assert.False(t, set.Empty())
	assert.True(t, Partition(nil).Empty())
}

func TestReconcile(t *testing.T) {
	changes := &ChangeSet{
		Changed: map[int64]time.Time{1: at(1), 2: at(2), 3: at(3)},
		Deleted: map[int64]time.Time{4: at(4), 5: at(5)},
	}
	processed := ids(2, 4, 9)

	result := Reconcile(changes, processed)

	assert.Equal(t, []int64{1, 3}, result.Adds)
	assert.Equal(t, []int64{2}, result.Updates)
	assert.Equal(t, []int64{4}, result.Deletes, "5 was never emitted")
}

func TestReconcile_SkipsVersionsAlreadyHandled(t *testing.T) {
	changes := &ChangeSet{
		Changed: map[int64]time.Time{1: at(1), 2: at(2)},
		Deleted: map[int64]time.Time{3: at(3), 4: at(4)},
	}
	emitted := map[int64]time.Time{
		1: at(1), // emitted at this version
		2: at(1), // emitted at an older version
		3: at(3), // delete already sent
		4: at(2),
	}

	result := Reconcile(changes, emitted)

	assert.Empty(t, result.Adds)
	assert.Equal(t, []int64{2}, result.Updates)
	assert.Equal(t, []int64{4}, result.Deletes)
}

func TestReconcile_DisjointSets(t *testing.T) {
	changes := &ChangeSet{
		Changed: map[int64]time.Time{1: at(1), 2: at(1), 3: at(1)},
		Deleted: map[int64]time.Time{4: at(1), 5: at(1)},
	}
	result := Reconcile(changes, ids(1, 2, 3, 4, 5))

	seen := map[int64]int{}
	for _, list := range [][]int64{result.Adds, result.Updates, result.Deletes} {
		for _, id := range list {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %d classified more than once", id)
	}
}

func TestScenario_NewEntityIsAdd(t *testing.T) {
	src := &mockSource{records: []history.VersionRecord{
		{EntityID: 10, VersionTimestamp: at(1), ChangeKind: history.ChangeCreate},
		{EntityID: 10, VersionTimestamp: at(2), ChangeKind: history.ChangeUpdate},
		{EntityID: 10, VersionTimestamp: at(3), ChangeKind: history.ChangeUpdate},
	}}

	changes, err := NewDetector(src).Detect(context.Background(), t0)
	require.NoError(t, err)

	plan := BuildPlan(changes, ids(), Options{})
	assert.Equal(t, []int64{10}, plan.Adds)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Deletes)
	assert.Equal(t, []int64{10}, plan.AddBatch)
	assert.Empty(t, plan.DeleteBatch)
}

func TestScenario_EmittedEntityDeleted(t *testing.T) {
	src := &mockSource{records: []history.VersionRecord{
		{EntityID: 20, VersionTimestamp: at(1), ChangeKind: history.ChangeUpdate},
		{EntityID: 20, VersionTimestamp: at(2), ChangeKind: history.ChangeDelete},
	}}

	changes, err := NewDetector(src).Detect(context.Background(), t0)
	require.NoError(t, err)

	plan := BuildPlan(changes, ids(20), Options{})
	assert.Empty(t, plan.Adds)
	assert.Empty(t, plan.Updates)
	assert.Equal(t, []int64{20}, plan.Deletes)
	assert.Equal(t, []int64{20}, plan.DeleteBatch)
	assert.Empty(t, plan.AddBatch)
}

func TestScenario_Idempotence(t *testing.T) {
	src := &mockSource{records: []history.VersionRecord{
		{EntityID: 1, VersionTimestamp: at(1), ChangeKind: history.ChangeCreate},
		{EntityID: 2, VersionTimestamp: at(2), ChangeKind: history.ChangeCreate},
	}}
	detector := NewDetector(src)
	ctx := context.Background()

	changes, err := detector.Detect(ctx, t0)
	require.NoError(t, err)
	first := BuildPlan(changes, ids(), Options{})
	require.Len(t, first.AddBatch, 2)

	// the watermark moves to the newest emitted version, the ledger holds both ids
	changes, err = detector.Detect(ctx, at(2))
	require.NoError(t, err)
	second := BuildPlan(changes, ids(1, 2), Options{})

	assert.Empty(t, second.Adds)
	assert.Empty(t, second.Updates)
	assert.Empty(t, second.Deletes)
	assert.Empty(t, second.Actions)
}

func TestDetect_Error(t *testing.T) {
	_, err := NewDetector(&mockSource{err: errors.New("db down")}).Detect(context.Background(), t0)
	assert.ErrorContains(t, err, "db down")
}
