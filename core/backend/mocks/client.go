package mocks

import (
	"context"

	"history-forwarder/core/backend"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of backend.Client
type Client struct {
	mock.Mock
}

func (m *Client) CreateSearch(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func (m *Client) PollStatus(ctx context.Context, jobID string) (*backend.SearchStatus, error) {
	args := m.Called(ctx, jobID)
	if status, ok := args.Get(0).(*backend.SearchStatus); ok {
		return status, args.Error(1)
	}
	return nil, args.Error(1)
}
