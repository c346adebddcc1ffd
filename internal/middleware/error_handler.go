package middleware

import (
	"context"
	"encoding/json"
	"time"

	"habinest-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const errorLogSize = 50

// ErrorHandler is the global error handler. It maps domain error kinds to status codes,
// logs server errors and, when rdb is set, keeps the most recent ones for /health/errors.
func ErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, message := response.StatusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("request failed")
			if rdb != nil {
				recordError(rdb, c, code, err)
			}
		}
		return response.Error(c, message, code, nil)
	}
}

func recordError(rdb *redis.Client, c *fiber.Ctx, code int, err error) {
	entry, _ := json.Marshal(map[string]interface{}{
		"time":    time.Now(),
		"traceId": GetTraceID(c),
		"method":  c.Method(),
		"path":    c.OriginalURL(),
		"status":  code,
		"error":   err.Error(),
	})
	ctx := context.Background()
	pipe := rdb.Pipeline()
	pipe.LPush(ctx, KeyErrorLog, entry)
	pipe.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
	_, _ = pipe.Exec(ctx)
}
