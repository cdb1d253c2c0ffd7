package integrity

import (
	"history-forwarder/core/history"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler  *Handler
	profiles []history.Profile
}

// NewFeature creates a new integrity feature.
func NewFeature(db *gorm.DB, profiles []history.Profile, logger *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(NewService(db, profiles, logger)), profiles: profiles}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "integrity"
}

// IsEnabled is false when no entity is configured.
func (f *Feature) IsEnabled() bool {
	return len(f.profiles) > 0
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
