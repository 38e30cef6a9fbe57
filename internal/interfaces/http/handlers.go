package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/labstack/echo/v4"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

func handleError(c echo.Context, logger ports.Logger, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.JSON(stdhttp.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(stdhttp.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIllegalTransition):
		return c.JSON(stdhttp.StatusConflict, map[string]string{"error": err.Error()})
	default:
		if logger != nil {
			logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err.Error())
		}
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func invalidPayload(c echo.Context) error {
	return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
}

type pageQuery struct {
	Page     int
	PageSize int
}

func bindPage(c echo.Context) (pageQuery, error) {
	var q pageQuery
	err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("page_size", &q.PageSize).
		BindError()
	return q, err
}

// bindTimeRange reads optional RFC3339 start and end query parameters.
func bindTimeRange(c echo.Context) (start, end *time.Time, err error) {
	var from, to time.Time
	if err := echo.QueryParamsBinder(c).
		Time("start", &from, time.RFC3339).
		Time("end", &to, time.RFC3339).
		BindError(); err != nil {
		return nil, nil, err
	}
	if !from.IsZero() {
		start = &from
	}
	if !to.IsZero() {
		end = &to
	}
	return start, end, nil
}

// optional distinguishes a JSON field that is absent from one that is
// explicitly null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optional[T]) ptr() **T {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

type SystemHandler struct {
	authz  *application.AuthorizationService
	roles  *application.RoleService
	logger ports.Logger
}

func NewSystemHandler(authz *application.AuthorizationService, roles *application.RoleService, logger ports.Logger) *SystemHandler {
	return &SystemHandler{authz: authz, roles: roles, logger: logger}
}

func (h *SystemHandler) Health(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
}

// Me reports the caller and everything their role currently allows.
func (h *SystemHandler) Me(c echo.Context) error {
	actor := adaptermiddleware.ActorFrom(c)
	return c.JSON(stdhttp.StatusOK, map[string]any{
		"user":   actor,
		"access": h.authz.AccessFor(actor.Role),
	})
}

func (h *SystemHandler) Permissions(c echo.Context) error {
	catalog, err := h.roles.Catalog(adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, catalog)
}
