package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig lists the exact origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string
	// AllowLocalhost admits http://localhost:* and http://127.0.0.1:* origins, for development.
	AllowLocalhost bool
}

const allowedHeaders = "Content-Type, " + CallerHeader + ", " + traceIDHeader + ", Idempotency-Key"

// CORS returns a Fiber handler that allows configured origins. Requests without an
// Origin header are not cross-site and pass through.
func CORS(cfg CORSConfig) fiber.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin == "" {
			return c.Next()
		}
		lower := strings.ToLower(origin)
		ok := allowed[lower] ||
			(cfg.AllowLocalhost && (strings.HasPrefix(lower, "http://localhost:") || strings.HasPrefix(lower, "http://127.0.0.1:")))
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status": "error",
				"error": fiber.Map{
					"message":    "Not allowed by CORS",
					"statusCode": 403,
					"details":    fiber.Map{},
				},
			})
		}
		setCORSHeaders(c, origin)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set("Access-Control-Allow-Origin", origin)
	c.Set("Access-Control-Allow-Credentials", "true")
	c.Set("Access-Control-Allow-Headers", allowedHeaders)
	c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Set("Vary", "Origin")
}
