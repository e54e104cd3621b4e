package integrity

import (
	"strconv"

	"merge-engine/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/schema", h.HandleSchemaCheck)
	group.Get("/blobs", h.HandleBlobCheck)
	group.Get("/index", h.HandleIndexCheck)
}

// HandleIntegrityCheck runs every check.
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	return c.JSON(h.service.RunAll(c.Context()))
}

// HandleSchemaCheck compares the repository tables with the models.
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckSchema()
	if err != nil {
		l.Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleBlobCheck checks and optionally removes orphaned blobs.
func (h *Handler) HandleBlobCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	if !h.service.HasBlobs() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "blob storage is not configured"})
	}

	report, err := h.service.CheckBlobs(c.Context())
	if err != nil {
		l.Error("Blob check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(report.Missing) > 0 {
		l.Warn("Missing blobs detected", zap.Strings("missing", report.Missing))
	}

	if fix && len(report.Orphaned) > 0 {
		l.Info("Removing orphaned blobs", zap.Int("count", len(report.Orphaned)))
		if err := h.service.FixBlobs(c.Context(), report.Orphaned); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "fixed", "removed": report.Orphaned, "missing": report.Missing})
	}

	return c.JSON(report)
}

// HandleIndexCheck verifies the mergeinfo index, at ?rev= or the youngest revision.
func (h *Handler) HandleIndexCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	rev := int64(-1)
	if raw := c.Query("rev"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid revision " + raw})
		}
		rev = parsed
	}

	report, err := h.service.CheckIndex(c.Context(), rev)
	if err != nil {
		l.Error("Index check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
