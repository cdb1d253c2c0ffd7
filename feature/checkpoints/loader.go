package checkpoints

import (
	"history-forwarder/core/checkpoint"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates a new checkpoints feature.
func NewFeature(tracker *checkpoint.Tracker, logger *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(NewService(tracker, logger))}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "checkpoints"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
