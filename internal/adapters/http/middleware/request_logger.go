package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"smart-factory/internal/ports"
)

func RequestLogger(logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			duration := time.Since(started)
			ctx := c.Request().Context()
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route_pattern", c.Path(),
				"status", c.Response().Status,
				"duration", duration.String(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if actor := ActorFrom(c); actor.UserID != "" {
				args = append(args, "user_id", actor.UserID, "role", string(actor.Role))
			}
			logger.Info(ctx, "http request", args...)
			return nil
		}
	}
}
