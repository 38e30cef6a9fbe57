package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens one segment per request, annotated with the route
// pattern and, once the actor middleware has run, the caller.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			defer func() { seg.Close(err) }()
			_ = seg.AddAnnotation("route", c.Path())
			req := c.Request().Clone(ctx)
			c.SetRequest(req)

			err = next(c)
			if actor := ActorFrom(c); !actor.Anonymous() {
				_ = seg.AddAnnotation("user_id", actor.UserID)
				_ = seg.AddAnnotation("role", string(actor.Role))
			}
			return err
		}
	}
}
