package readonly

import "github.com/gofiber/fiber/v2"

// New returns a middleware that rejects every method but GET and HEAD when
// enabled is set.
func New(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enabled {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead:
			return c.Next()
		}
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "server is read-only"})
	}
}
