package emit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"history-forwarder/core/backend"
	bmocks "history-forwarder/core/backend/mocks"
	"history-forwarder/core/checkpoint"
	"history-forwarder/core/normalize"
	smocks "history-forwarder/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2017, 1, 12, 11, 38, 0, 0, time.UTC)

type fakeLedger struct {
	rows map[int64]time.Time
	err  error
}

func (l *fakeLedger) Upsert(_ context.Context, _ checkpoint.EntityType, id int64, ts time.Time) error {
	if l.err != nil {
		return l.err
	}
	if l.rows == nil {
		l.rows = make(map[int64]time.Time)
	}
	l.rows[id] = ts
	return nil
}

func record(id int64, ts time.Time) *normalize.Record {
	return &normalize.Record{
		EntityID:  id,
		Timestamp: ts,
		Fields:    normalize.NewFields(normalize.KeyTimestamp, ts, normalize.KeyPK, id),
	}
}

func TestBuildDeleteQuery(t *testing.T) {
	tests := []struct {
		name       string
		quantifier string
		ids        []int64
		want       string
	}{
		{"Single", "model=community", []int64{7}, "model=community (id=7) | delete"},
		{"Many", "index=main model=community", []int64{1, 2, 3}, "index=main model=community (id=1 OR id=2 OR id=3) | delete"},
		{"No quantifier", " ", []int64{1}, "(id=1) | delete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDeleteQuery(tt.quantifier, tt.ids))
		})
	}
}

func TestEmitDeletes(t *testing.T) {
	ctx := context.Background()
	opts := Options{EntityType: "community", Quantifier: "model=community", PollInterval: time.Millisecond, PollTimeout: time.Second}

	t.Run("Empty is a no-op", func(t *testing.T) {
		client := new(bmocks.Client)
		e := New(client, &fakeLedger{}, NewStreamSink(io.Discard), opts, nil)
		require.NoError(t, e.EmitDeletes(ctx, nil))
		client.AssertNotCalled(t, "CreateSearch", mock.Anything, mock.Anything)
	})

	t.Run("Submits and waits", func(t *testing.T) {
		client := new(bmocks.Client)
		client.On("CreateSearch", mock.Anything, "model=community (id=1 OR id=2) | delete").Return("sid", nil)
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Code: 204}, nil).Once()
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Ready: true, Code: 200}, nil).Once()

		e := New(client, &fakeLedger{}, NewStreamSink(io.Discard), opts, nil)
		require.NoError(t, e.EmitDeletes(ctx, []int64{1, 2}))
		client.AssertExpectations(t)
	})

	t.Run("Fatal query", func(t *testing.T) {
		client := new(bmocks.Client)
		client.On("CreateSearch", mock.Anything, mock.Anything).Return("", &backend.FatalQueryError{Message: "bad"})

		e := New(client, &fakeLedger{}, NewStreamSink(io.Discard), opts, nil)
		err := e.EmitDeletes(ctx, []int64{1})
		var fatal *backend.FatalQueryError
		assert.ErrorAs(t, err, &fatal)
	})

	t.Run("Dry run", func(t *testing.T) {
		client := new(bmocks.Client)
		dry := opts
		dry.DryRun = true

		e := New(client, &fakeLedger{}, NewStreamSink(io.Discard), dry, nil)
		require.NoError(t, e.EmitDeletes(ctx, []int64{1}))
		client.AssertNotCalled(t, "CreateSearch", mock.Anything, mock.Anything)
	})
}

func TestEmitAdds(t *testing.T) {
	ctx := context.Background()
	opts := Options{EntityType: "community"}

	t.Run("Ledger then sink", func(t *testing.T) {
		var out bytes.Buffer
		ledger := &fakeLedger{}
		sink := NewStreamSink(&out)
		e := New(nil, ledger, sink, opts, nil)

		n, err := e.EmitAdds(ctx, []*normalize.Record{record(1, at), record(2, at.Add(time.Hour))})
		require.NoError(t, err)
		require.NoError(t, e.Flush(ctx))
		assert.Equal(t, 2, n)

		assert.Equal(t, map[int64]time.Time{1: at, 2: at.Add(time.Hour)}, ledger.rows)
		assert.Equal(t,
			"{\"timestamp\":\"2017-01-12T11:38:00+00:00\",\"pk\":1}\n{\"timestamp\":\"2017-01-12T12:38:00+00:00\",\"pk\":2}\n",
			out.String())
	})

	t.Run("Ledger failure stops the batch", func(t *testing.T) {
		var out bytes.Buffer
		e := New(nil, &fakeLedger{err: errors.New("db down")}, NewStreamSink(&out), opts, nil)

		n, err := e.EmitAdds(ctx, []*normalize.Record{record(1, at)})
		assert.ErrorContains(t, err, "db down")
		assert.Zero(t, n)
		require.NoError(t, e.Flush(ctx))
		assert.Empty(t, out.String())
	})

	t.Run("Dry run skips ledger", func(t *testing.T) {
		var out bytes.Buffer
		ledger := &fakeLedger{}
		dry := opts
		dry.DryRun = true
		e := New(nil, ledger, NewStreamSink(&out), dry, nil)

		n, err := e.EmitAdds(ctx, []*normalize.Record{record(1, at)})
		require.NoError(t, err)
		require.NoError(t, e.Flush(ctx))
		assert.Equal(t, 1, n)
		assert.Empty(t, ledger.rows)
		assert.NotEmpty(t, out.String())
	})
}

func TestFileSink_Truncates(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.ndjson")
	require.NoError(t, os.WriteFile(p, []byte("stale\nstale\n"), 0o644))

	sink, err := NewFileSink(p)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), "community", []byte(`{"pk":1}`)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{\"pk\":1}\n", string(data))
}

func TestObjectSink(t *testing.T) {
	ctx := context.Background()
	client := new(smocks.Client)
	client.On("PutObject", ctx, "records", "history/community/run-1.ndjson", mock.Anything, int64(18),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"}).Return(minio.UploadInfo{}, nil).Once()
	client.On("PutObject", ctx, "records", "history/community/run-1-1.ndjson", mock.Anything, int64(9),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"}).Return(minio.UploadInfo{}, nil).Once()

	sink := NewObjectSink(client, "records", "history", "run-1")
	require.NoError(t, sink.Write(ctx, "community", []byte(`{"pk":1}`)))
	require.NoError(t, sink.Write(ctx, "community", []byte(`{"pk":2}`)))
	require.NoError(t, sink.Flush(ctx))

	require.NoError(t, sink.Flush(ctx), "nothing buffered")

	require.NoError(t, sink.Write(ctx, "community", []byte(`{"pk":3}`)))
	require.NoError(t, sink.Flush(ctx))
	client.AssertExpectations(t)
}

func TestOpen(t *testing.T) {
	sink, err := Open(Config{Mode: ModeStdout}, nil, "", "run")
	require.NoError(t, err)
	assert.IsType(t, &StreamSink{}, sink)

	_, err = Open(Config{Mode: ModeObject}, nil, "records", "run")
	assert.Error(t, err)

	sink, err = Open(Config{Mode: ModeObject}, new(smocks.Client), "records", "run")
	require.NoError(t, err)
	assert.IsType(t, &ObjectSink{}, sink)

	_, err = Open(Config{Mode: "kafka"}, nil, "", "run")
	assert.ErrorContains(t, err, "unsupported output mode")
}
