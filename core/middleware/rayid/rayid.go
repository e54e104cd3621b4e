package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header is the response header carrying the request id.
const Header = "X-Ray-ID"

// LocalsKey is the fiber.Ctx locals key holding the request id.
const LocalsKey = "ray_id"

// New returns a middleware that assigns every request an id. An id sent by
// the client in Header is kept.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalsKey, id)
		c.Set(Header, id)
		return c.Next()
	}
}
