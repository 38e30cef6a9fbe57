package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/infrastructure/auth"
	"smart-factory/internal/ports"
)

const actorKey = "actor"

type ActorResolver interface {
	ResolveActor(ctx context.Context, id application.Identity) (domain.Actor, error)
}

// ActorMiddleware turns the authenticated identity into a domain.Actor. A
// request without a known identity is rejected with 401.
func ActorMiddleware(resolver ActorResolver, logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get(auth.ContextUserID).(string)
			email, _ := c.Get(auth.ContextEmail).(string)
			ctx := c.Request().Context()
			actor, err := resolver.ResolveActor(ctx, application.Identity{
				UserID:    userID,
				Email:     email,
				IPAddress: c.RealIP(),
				UserAgent: c.Request().UserAgent(),
			})
			if errors.Is(err, domain.ErrUnauthenticated) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
			}
			if err != nil {
				logger.Error(ctx, "resolve actor failed", "user_id", userID, "error", err.Error())
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// ActorFrom returns the resolved caller, or an actor with no role when the
// middleware did not run.
func ActorFrom(c echo.Context) domain.Actor {
	if actor, ok := c.Get(actorKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}
