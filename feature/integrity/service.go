package integrity

import (
	"context"

	"history-forwarder/core/history"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntityReport is the check result of one profile.
type EntityReport struct {
	EntityType string `json:"entity_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Report is the check result of every profile.
type Report struct {
	Healthy  bool           `json:"healthy"`
	Entities []EntityReport `json:"entities"`
}

// Service runs profile checks.
type Service struct {
	db       *gorm.DB
	profiles []history.Profile
	logger   *zap.Logger
}

// NewService creates a new integrity service.
func NewService(db *gorm.DB, profiles []history.Profile, logger *zap.Logger) *Service {
	return &Service{db: db, profiles: profiles, logger: logger}
}

// Check verifies every profile, in configuration order.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{Healthy: true, Entities: make([]EntityReport, 0, len(s.profiles))}
	for _, p := range s.profiles {
		entry := EntityReport{EntityType: p.Name, Status: "ok"}
		if err := s.verify(ctx, p); err != nil {
			entry.Status = "error"
			entry.Error = err.Error()
			report.Healthy = false
			s.logger.Warn("Entity profile check failed", zap.String("entity_type", p.Name), zap.Error(err))
		}
		report.Entities = append(report.Entities, entry)
	}
	return report
}

func (s *Service) verify(ctx context.Context, p history.Profile) error {
	store, err := history.NewGormStore(s.db, p)
	if err != nil {
		return err
	}
	return store.Verify(ctx)
}
