package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

type AlertService struct {
	repo    ports.AlertRepository
	devices ports.DeviceRepository
	authz   *AuthorizationService
	audit   *AuditService
	metrics ports.Metrics
	logger  ports.Logger
	now     func() time.Time
}

func NewAlertService(repo ports.AlertRepository, devices ports.DeviceRepository, authz *AuthorizationService, audit *AuditService, metrics ports.Metrics, logger ports.Logger) *AlertService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &AlertService{repo: repo, devices: devices, authz: authz, audit: audit, metrics: metrics, logger: logger, now: utcNow}
}

func (s *AlertService) List(ctx context.Context, actor domain.Actor, filter domain.AlertFilter, page, pageSize int) (domain.Page[domain.Alert], error) {
	if err := s.authz.Require(actor, domain.ResourceAlert, domain.ActionView); err != nil {
		return domain.Page[domain.Alert]{}, err
	}
	alerts, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Alert]{}, err
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	return domain.Paginate(alerts, page, pageSize), nil
}

func (s *AlertService) Get(ctx context.Context, actor domain.Actor, alertID string) (domain.Alert, error) {
	if err := s.authz.Require(actor, domain.ResourceAlert, domain.ActionView); err != nil {
		return domain.Alert{}, err
	}
	if alertID == "" {
		return domain.Alert{}, domain.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, alertID)
}

func (s *AlertService) Stats(ctx context.Context, actor domain.Actor) (domain.AlertStats, error) {
	if err := s.authz.Require(actor, domain.ResourceAlert, domain.ActionView); err != nil {
		return domain.AlertStats{}, err
	}
	alerts, err := s.repo.List(ctx, domain.AlertFilter{})
	if err != nil {
		return domain.AlertStats{}, err
	}
	return domain.ComputeAlertStats(alerts), nil
}

type RaiseAlertInput struct {
	DeviceID string
	Metric   string
	Value    float64
	Severity domain.Severity
	Message  string
}

// Raise records a manually reported alert in the active state.
func (s *AlertService) Raise(ctx context.Context, actor domain.Actor, in RaiseAlertInput) (domain.Alert, error) {
	alert, err := s.raise(ctx, actor, in)
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditCreate,
		Resource:   domain.ResourceAlert,
		ResourceID: alert.ID,
		Details:    map[string]any{"device_id": in.DeviceID, "severity": in.Severity},
	}, err)
	if err == nil {
		s.metrics.AlertFired(alert.Severity)
	}
	return alert, err
}

func (s *AlertService) raise(ctx context.Context, actor domain.Actor, in RaiseAlertInput) (domain.Alert, error) {
	if err := s.authz.Require(actor, domain.ResourceAlert, domain.ActionCreate); err != nil {
		return domain.Alert{}, err
	}
	if in.DeviceID == "" || strings.TrimSpace(in.Message) == "" || !in.Severity.Valid() {
		return domain.Alert{}, fmt.Errorf("%w: device_id, message and a valid severity are required", domain.ErrInvalidInput)
	}
	device, err := s.devices.GetByID(ctx, in.DeviceID)
	if err != nil {
		return domain.Alert{}, err
	}
	alert := domain.Alert{
		ID:          ids.New(ids.PrefixAlert),
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		Metric:      in.Metric,
		Value:       in.Value,
		Severity:    in.Severity,
		Status:      domain.AlertActive,
		Message:     strings.TrimSpace(in.Message),
		TriggeredAt: s.now(),
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return domain.Alert{}, err
	}
	return alert, nil
}

func (s *AlertService) Acknowledge(ctx context.Context, actor domain.Actor, alertID string) (domain.Alert, error) {
	return s.transition(ctx, actor, alertID, domain.ActionAcknowledge, domain.AuditAcknowledge, domain.Alert.Acknowledge)
}

func (s *AlertService) Resolve(ctx context.Context, actor domain.Actor, alertID string) (domain.Alert, error) {
	return s.transition(ctx, actor, alertID, domain.ActionResolve, domain.AuditResolve, domain.Alert.Resolve)
}

type alertStep func(a domain.Alert, actorID string, at time.Time) (domain.Alert, error)

// transition authorizes, applies the state change to the stored alert and
// persists it with a compare-and-swap on the previous status. The outcome is
// audited whether or not it succeeded.
func (s *AlertService) transition(ctx context.Context, actor domain.Actor, alertID string, action domain.Action, auditAction domain.AuditAction, step alertStep) (domain.Alert, error) {
	var from domain.AlertStatus
	next, err := func() (domain.Alert, error) {
		if err := s.authz.Require(actor, domain.ResourceAlert, action); err != nil {
			return domain.Alert{}, err
		}
		if alertID == "" {
			return domain.Alert{}, domain.ErrInvalidInput
		}
		current, err := s.repo.GetByID(ctx, alertID)
		if err != nil {
			return domain.Alert{}, err
		}
		from = current.Status
		next, err := step(current, actor.UserID, s.now())
		if err != nil {
			return domain.Alert{}, err
		}
		if err := s.repo.Transition(ctx, next, current.Status); err != nil {
			return domain.Alert{}, err
		}
		return next, nil
	}()

	details := map[string]any{}
	if from != "" {
		details["from"] = from
	}
	if err == nil {
		details["to"] = next.Status
	}
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: auditAction, Resource: domain.ResourceAlert, ResourceID: alertID, Details: details}, err)
	s.metrics.AlertTransition(string(action), outcomeLabel(err))
	if err != nil {
		s.logger.Warn(ctx, "alert transition rejected", "alert_id", alertID, "action", action, "user_id", actor.UserID, "error", err)
	}
	return next, err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
