package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
	"smart-factory/internal/application"
	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

type AlertsHandler struct {
	service *application.AlertService
	logger  ports.Logger
}

func NewAlertsHandler(service *application.AlertService, logger ports.Logger) *AlertsHandler {
	return &AlertsHandler{service: service, logger: logger}
}

func (h *AlertsHandler) List(c echo.Context) error {
	page, err := bindPage(c)
	if err != nil {
		return invalidPayload(c)
	}
	start, end, err := bindTimeRange(c)
	if err != nil {
		return invalidPayload(c)
	}
	filter := domain.AlertFilter{
		Severity: domain.Severity(c.QueryParam("severity")),
		Status:   domain.AlertStatus(c.QueryParam("status")),
		DeviceID: c.QueryParam("device_id"),
		RuleID:   c.QueryParam("rule_id"),
		Start:    start,
		End:      end,
	}
	alerts, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c), filter, page.Page, page.PageSize)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, alerts)
}

func (h *AlertsHandler) Get(c echo.Context) error {
	alert, err := h.service.Get(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, alert)
}

func (h *AlertsHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context(), adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, stats)
}

func (h *AlertsHandler) Raise(c echo.Context) error {
	var req struct {
		DeviceID string          `json:"device_id"`
		Metric   string          `json:"metric"`
		Value    float64         `json:"value"`
		Severity domain.Severity `json:"severity"`
		Message  string          `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	alert, err := h.service.Raise(c.Request().Context(), adaptermiddleware.ActorFrom(c), application.RaiseAlertInput{
		DeviceID: req.DeviceID,
		Metric:   req.Metric,
		Value:    req.Value,
		Severity: req.Severity,
		Message:  req.Message,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, alert)
}

func (h *AlertsHandler) Acknowledge(c echo.Context) error {
	alert, err := h.service.Acknowledge(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, alert)
}

func (h *AlertsHandler) Resolve(c echo.Context) error {
	alert, err := h.service.Resolve(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, alert)
}

type AlertRulesHandler struct {
	service *application.AlertRuleService
	logger  ports.Logger
}

func NewAlertRulesHandler(service *application.AlertRuleService, logger ports.Logger) *AlertRulesHandler {
	return &AlertRulesHandler{service: service, logger: logger}
}

func (h *AlertRulesHandler) List(c echo.Context) error {
	rules, err := h.service.List(c.Request().Context(), adaptermiddleware.ActorFrom(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, rules)
}

func (h *AlertRulesHandler) Get(c echo.Context) error {
	rule, err := h.service.Get(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, rule)
}

func (h *AlertRulesHandler) Create(c echo.Context) error {
	var req struct {
		Name            string           `json:"name"`
		Description     string           `json:"description"`
		DeviceID        *string          `json:"device_id"`
		Metric          string           `json:"metric"`
		Operator        domain.Operator  `json:"operator"`
		Threshold       float64          `json:"threshold"`
		ThresholdHigh   *float64         `json:"threshold_high"`
		Unit            string           `json:"unit"`
		Severity        domain.Severity  `json:"severity"`
		Channels        []domain.Channel `json:"channels"`
		IsActive        *bool            `json:"is_active"`
		CooldownMinutes int              `json:"cooldown_minutes"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule, err := h.service.Create(c.Request().Context(), adaptermiddleware.ActorFrom(c), domain.AlertRule{
		Name:            req.Name,
		Description:     req.Description,
		DeviceID:        req.DeviceID,
		Metric:          req.Metric,
		Operator:        req.Operator,
		Threshold:       req.Threshold,
		ThresholdHigh:   req.ThresholdHigh,
		Unit:            req.Unit,
		Severity:        req.Severity,
		Channels:        req.Channels,
		IsActive:        active,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusCreated, rule)
}

func (h *AlertRulesHandler) Update(c echo.Context) error {
	var req struct {
		Name            *string           `json:"name"`
		Description     *string           `json:"description"`
		DeviceID        optional[string]  `json:"device_id"`
		Metric          *string           `json:"metric"`
		Operator        *domain.Operator  `json:"operator"`
		Threshold       *float64          `json:"threshold"`
		ThresholdHigh   optional[float64] `json:"threshold_high"`
		Unit            *string           `json:"unit"`
		Severity        *domain.Severity  `json:"severity"`
		Channels        []domain.Channel  `json:"channels"`
		IsActive        *bool             `json:"is_active"`
		CooldownMinutes *int              `json:"cooldown_minutes"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidPayload(c)
	}
	rule, err := h.service.Update(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id"), domain.AlertRuleUpdate{
		Name:            req.Name,
		Description:     req.Description,
		DeviceID:        req.DeviceID.ptr(),
		Metric:          req.Metric,
		Operator:        req.Operator,
		Threshold:       req.Threshold,
		ThresholdHigh:   req.ThresholdHigh.ptr(),
		Unit:            req.Unit,
		Severity:        req.Severity,
		Channels:        req.Channels,
		IsActive:        req.IsActive,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(stdhttp.StatusOK, rule)
}

func (h *AlertRulesHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), adaptermiddleware.ActorFrom(c), c.Param("id")); err != nil {
		return handleError(c, h.logger, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

// Evaluate runs a submitted metric sample through the active rules and
// returns whatever alerts fired.
func (h *AlertRulesHandler) Evaluate(c echo.Context) error {
	var sample domain.MetricSample
	if err := c.Bind(&sample); err != nil {
		return invalidPayload(c)
	}
	alerts, err := h.service.EvaluateAs(c.Request().Context(), adaptermiddleware.ActorFrom(c), sample)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"alerts": alerts})
}
