package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"history-forwarder/core/backend"
	"history-forwarder/core/backend/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWaitForResults(t *testing.T) {
	t.Run("Ready after pending polls", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Code: 204}, nil).Twice()
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Ready: true, Code: 200}, nil).Once()

		status, err := backend.WaitForResults(context.Background(), client, "sid", time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.True(t, status.Ready)
		client.AssertNumberOfCalls(t, "PollStatus", 3)
	})

	t.Run("Timeout", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Code: 204}, nil)

		_, err := backend.WaitForResults(context.Background(), client, "sid", time.Millisecond, 20*time.Millisecond)
		assert.ErrorIs(t, err, backend.ErrPollTimeout)
	})

	t.Run("Cancelled", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PollStatus", mock.Anything, "sid").Return(&backend.SearchStatus{Code: 204}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := backend.WaitForResults(ctx, client, "sid", time.Hour, 0)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Poll error", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PollStatus", mock.Anything, "sid").Return(nil, backend.ErrAuthentication)

		_, err := backend.WaitForResults(context.Background(), client, "sid", time.Millisecond, time.Second)
		assert.True(t, errors.Is(err, backend.ErrAuthentication))
	})
}

func TestConfig_Defaults(t *testing.T) {
	cfg := backend.Config{Host: "splunk", Port: 8089}
	assert.Equal(t, "https://splunk:8089", cfg.BaseURL())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.PollTimeout())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}
