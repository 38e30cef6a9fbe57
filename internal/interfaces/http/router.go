package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Middleware holds the cross-cutting layers. Nil entries are skipped.
type Middleware struct {
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
	Metrics       echo.MiddlewareFunc
	RateLimit     echo.MiddlewareFunc
	Auth          echo.MiddlewareFunc
	Actor         echo.MiddlewareFunc
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler stdhttp.Handler
}

type Handlers struct {
	System     *SystemHandler
	Roles      *RolesHandler
	Users      *UsersHandler
	Devices    *DevicesHandler
	Alerts     *AlertsHandler
	AlertRules *AlertRulesHandler
	Audit      *AuditHandler
}

var publicRoutes = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// protected runs mw for every route except the public ones.
func protected(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if publicRoutes[c.Path()] {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	for _, mw := range []echo.MiddlewareFunc{m.XRay, m.RequestLogger, m.Metrics, m.RateLimit} {
		if mw != nil {
			e.Use(mw)
		}
	}
	for _, mw := range []echo.MiddlewareFunc{m.Auth, m.Actor} {
		if mw != nil {
			e.Use(protected(mw))
		}
	}
	return e
}

func NewMainRouter(h Handlers, m Middleware) *echo.Echo {
	e := newEcho(m)

	e.GET("/healthz", h.System.Health)
	if m.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(m.MetricsHandler))
	}
	e.GET("/me", h.System.Me)
	e.GET("/permissions", h.System.Permissions)

	e.GET("/roles", h.Roles.List)
	e.POST("/roles", h.Roles.Create)
	e.GET("/roles/matrix", h.Roles.Matrix)
	e.GET("/roles/:id", h.Roles.Get)
	e.PATCH("/roles/:id", h.Roles.Update)
	e.DELETE("/roles/:id", h.Roles.Delete)
	e.GET("/roles/:id/permissions", h.Roles.Permissions)
	e.PUT("/roles/:id/permissions", h.Roles.SetPermissions)

	e.GET("/users", h.Users.List)
	e.POST("/users", h.Users.Create)
	e.GET("/users/:id", h.Users.Get)
	e.PATCH("/users/:id", h.Users.Update)
	e.DELETE("/users/:id", h.Users.Deactivate)

	e.GET("/devices", h.Devices.List)
	e.POST("/devices", h.Devices.Create)
	e.GET("/devices/status-counts", h.Devices.StatusCounts)
	e.GET("/devices/:id", h.Devices.Get)
	e.PATCH("/devices/:id", h.Devices.Update)
	e.DELETE("/devices/:id", h.Devices.Delete)
	e.GET("/devices/:id/commands", h.Devices.Commands)
	e.POST("/devices/:id/commands", h.Devices.SendCommand)

	e.GET("/alerts", h.Alerts.List)
	e.POST("/alerts", h.Alerts.Raise)
	e.GET("/alerts/stats", h.Alerts.Stats)
	e.GET("/alerts/:id", h.Alerts.Get)
	e.POST("/alerts/:id/acknowledge", h.Alerts.Acknowledge)
	e.POST("/alerts/:id/resolve", h.Alerts.Resolve)

	e.GET("/alert-rules", h.AlertRules.List)
	e.POST("/alert-rules", h.AlertRules.Create)
	e.POST("/alert-rules/evaluate", h.AlertRules.Evaluate)
	e.GET("/alert-rules/:id", h.AlertRules.Get)
	e.PATCH("/alert-rules/:id", h.AlertRules.Update)
	e.DELETE("/alert-rules/:id", h.AlertRules.Delete)

	e.GET("/audit-logs", h.Audit.List)
	e.GET("/audit-logs/export", h.Audit.Export)
	return e
}
