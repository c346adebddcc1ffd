package middleware

import (
	"strings"

	"habinest-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CallerHeader carries the identity already established by the fronting gateway.
const CallerHeader = "X-User-Id"

const callerLocal = "caller"

// CallerIdentity copies the pre-authenticated caller id into Locals. Requests without one pass through.
func CallerIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := strings.TrimSpace(c.Get(CallerHeader)); id != "" {
			c.Locals(callerLocal, id)
		}
		return c.Next()
	}
}

// RequireCaller rejects requests that carry no caller identity.
func RequireCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetCaller(c) == "" {
			return response.Unauthorized(c, "Missing "+CallerHeader+" header")
		}
		return c.Next()
	}
}

// GetCaller returns the caller id, or "" when none was supplied.
func GetCaller(c *fiber.Ctx) string {
	id, _ := c.Locals(callerLocal).(string)
	return id
}
