package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

type DevicesHandler struct {
	service *application.DeviceService
	logger  ports.Logger
}

func NewDevicesHandler(service *application.DeviceService, logger ports.Logger) *DevicesHandler {
	return &DevicesHandler{service: service, logger: logger}
}

func (h *DevicesHandler) List(c echo.Context) error {
	page, err := bindPage(c)
	if err != nil {
		return invalidPayload(c)
	}
	filter := domain.DeviceFilter{
		Status: domain.DeviceStatus(c.QueryParam("status")),
		Type:   domain.DeviceType(c.QueryParam("type")),
		Zone:   c.QueryParam("zone"),
		Search: c.QueryParam("search"),
	}
	devices, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c), filter, page.Page, page.PageSize)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, devices)
}

func (h *DevicesHandler) Get(c echo.Context) error {
	device, err := h.service.Get(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, device)
}

func (h *DevicesHandler) StatusCounts(c echo.Context) error {
	counts, err := h.service.StatusCounts(c.Request().Context(), adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, counts)
}

func (h *DevicesHandler) Create(c echo.Context) error {
	var req struct {
		Name      string              `json:"name"`
		Type      domain.DeviceType   `json:"type"`
		Zone      string              `json:"zone"`
		Status    domain.DeviceStatus `json:"status"`
		IPAddress string              `json:"ip_address"`
		Firmware  string              `json:"firmware"`
		Metadata  map[string]any      `json:"metadata"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	device, err := h.service.Create(c.Request().Context(), adaptermiddleware.ActorFrom(c), domain.Device{
		Name:      req.Name,
		Type:      req.Type,
		Zone:      req.Zone,
		Status:    req.Status,
		IPAddress: req.IPAddress,
		Firmware:  req.Firmware,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, device)
}

func (h *DevicesHandler) Update(c echo.Context) error {
	var req struct {
		Name      *string              `json:"name"`
		Zone      *string              `json:"zone"`
		Status    *domain.DeviceStatus `json:"status"`
		IPAddress *string              `json:"ip_address"`
		Firmware  *string              `json:"firmware"`
		Metadata  map[string]any       `json:"metadata"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	device, err := h.service.Update(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), domain.DeviceUpdate{
		Name:      req.Name,
		Zone:      req.Zone,
		Status:    req.Status,
		IPAddress: req.IPAddress,
		Firmware:  req.Firmware,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, device)
}

func (h *DevicesHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *DevicesHandler) SendCommand(c echo.Context) error {
	var req struct {
		Command string         `json:"command"`
		Params  map[string]any `json:"params"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	cmd, err := h.service.SendCommand(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), req.Command, req.Params)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, cmd)
}

func (h *DevicesHandler) Commands(c echo.Context) error {
	cmds, err := h.service.Commands(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, cmds)
}
