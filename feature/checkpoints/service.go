package checkpoints

import (
	"context"
	"errors"
	"fmt"
	"time"

	"history-forwarder/core/checkpoint"

	"go.uber.org/zap"
)

// ErrNotFound is returned for entity types without a tracker row.
var ErrNotFound = errors.New("entity type not tracked")

// Entry is the JSON view of one tracker row.
type Entry struct {
	EntityType string    `json:"entity_type"`
	State      string    `json:"state"`
	Locked     bool      `json:"locked"`
	Watermark  time.Time `json:"watermark"`
	LedgerRows int64     `json:"ledger_rows"`
}

// Service reads and clears tracker state.
type Service struct {
	tracker *checkpoint.Tracker
	logger  *zap.Logger
}

// NewService creates a new checkpoints service.
func NewService(tracker *checkpoint.Tracker, logger *zap.Logger) *Service {
	return &Service{tracker: tracker, logger: logger}
}

// List returns every tracked entity type.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	statuses, err := s.tracker.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, Entry{
			EntityType: string(st.EntityType),
			State:      st.State.String(),
			Locked:     st.State == checkpoint.StateLocked,
			Watermark:  st.LastUpdated,
			LedgerRows: st.LedgerRows,
		})
	}
	return out, nil
}

// Get returns one entity type.
func (s *Service) Get(ctx context.Context, entityType string) (*Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].EntityType == entityType {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, entityType)
}

// Unlock clears the lock of entityType.
func (s *Service) Unlock(ctx context.Context, entityType string) error {
	err := s.tracker.Unlock(ctx, checkpoint.EntityType(entityType))
	if errors.Is(err, checkpoint.ErrUnknownEntityType) {
		return fmt.Errorf("%w: %s", ErrNotFound, entityType)
	}
	return err
}
