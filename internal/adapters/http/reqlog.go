package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/harmonyservices/gdalsubset/internal/pkg/logging"
)

// RequestIDLogMiddleware puts a logger carrying the Fiber request ID into
// the user context, so services called from handlers log with it.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))
		return c.Next()
	}
}

// LoggerFromCtx returns the request-scoped logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	return logging.LoggerFromCtx(ctx)
}
