package http

import (
	"bytes"
	"fmt"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

type AuditHandler struct {
	service *application.AuditService
	logger  ports.Logger
}

func NewAuditHandler(service *application.AuditService, logger ports.Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: logger}
}

func auditFilter(c echo.Context) (domain.AuditLogFilter, error) {
	start, end, err := bindTimeRange(c)
	if err != nil {
		return domain.AuditLogFilter{}, err
	}
	return domain.AuditLogFilter{
		UserID:   c.QueryParam("user_id"),
		Action:   domain.AuditAction(c.QueryParam("action")),
		Resource: domain.Resource(c.QueryParam("resource")),
		Result:   domain.AuditResult(c.QueryParam("result")),
		Start:    start,
		End:      end,
		Search:   c.QueryParam("search"),
	}, nil
}

func (h *AuditHandler) List(c echo.Context) error {
	page, err := bindPage(c)
	if err != nil {
		return invalidPayload(c)
	}
	filter, err := auditFilter(c)
	if err != nil {
		return invalidPayload(c)
	}
	logs, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c), filter, page.Page, page.PageSize)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, logs)
}

// Export buffers the document so a failure can still be reported as JSON.
func (h *AuditHandler) Export(c echo.Context) error {
	filter, err := auditFilter(c)
	if err != nil {
		return invalidPayload(c)
	}
	var buf bytes.Buffer
	res, err := h.service.Export(c.Request().Context(), adaptermiddleware.ActorFrom(c), filter, &buf)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.FileName))
	return c.Blob(stdhttp.StatusOK, res.ContentType, buf.Bytes())
}
