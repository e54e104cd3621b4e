package mergeinfo

import (
	"errors"

	"merge-engine/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for mergeinfo.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the mergeinfo routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/mergeinfo")
	group.Get("/", h.HandleGet)
	group.Get("/tree", h.HandleTree)
}

// HandleGet returns the mergeinfo of one path.
// Query: path (default /), rev (default HEAD), mode (explicit, inherited, nearest-ancestor).
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.Get(c.Context(), c.Query("path", "/"), c.Query("rev"), c.Query("mode", "inherited"))
	if err != nil {
		return h.fail(c, l, err)
	}
	return c.JSON(report)
}

// HandleTree returns the mergeinfo of a path and its descendants.
func (h *Handler) HandleTree(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.Tree(c.Context(), c.Query("path", "/"), c.Query("rev"))
	if err != nil {
		return h.fail(c, l, err)
	}
	return c.JSON(report)
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, err error) error {
	if errors.Is(err, ErrBadRequest) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l.Error("Mergeinfo query failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
