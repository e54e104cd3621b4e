package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Header is the request header carrying the API key.
const Header = "X-API-Key"

// Config holds the middleware settings.
type Config struct {
	// ApiKey is the expected key. Empty lets every request through.
	ApiKey string
}

// New returns a middleware rejecting requests without the configured key.
// The key is read from Header or from a bearer Authorization header.
func New(cfg Config) fiber.Handler {
	expected := []byte(cfg.ApiKey)
	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return c.Next()
		}

		key := c.Get(Header)
		if key == "" {
			key = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or missing api key"})
		}
		return c.Next()
	}
}
