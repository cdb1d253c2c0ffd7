package checkpoints

import (
	"errors"

	"history-forwarder/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for checkpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the checkpoint routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/checkpoints")
	group.Get("/", h.HandleList)
	group.Get("/:entity", h.HandleGet)
	group.Post("/:entity/unlock", h.HandleUnlock)
}

// HandleList returns every tracked entity type.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	entries, err := h.service.List(c.Context())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing checkpoints failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"checkpoints": entries})
}

// HandleGet returns one entity type.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	entry, err := h.service.Get(c.Context(), c.Params("entity"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entry)
}

// HandleUnlock clears a stale lock.
func (h *Handler) HandleUnlock(c *fiber.Ctx) error {
	entity := c.Params("entity")
	l := logger.WithRayID(h.service.logger, c)

	if err := h.service.Unlock(c.Context(), entity); err != nil {
		return h.fail(c, err)
	}
	l.Warn("Lock cleared over HTTP", zap.String("entity_type", entity))

	entry, err := h.service.Get(c.Context(), entity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entry)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	logger.WithRayID(h.service.logger, c).Error("Checkpoint request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
