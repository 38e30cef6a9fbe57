package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

type AlertRuleService struct {
	repo    ports.AlertRuleRepository
	alerts  ports.AlertRepository
	devices ports.DeviceRepository
	authz   *AuthorizationService
	audit   *AuditService
	metrics ports.Metrics
	logger  ports.Logger
	now     func() time.Time

	// evalMu serializes evaluation so two samples for the same device cannot
	// both pass the cooldown check.
	evalMu sync.Mutex
}

func NewAlertRuleService(repo ports.AlertRuleRepository, alerts ports.AlertRepository, devices ports.DeviceRepository, authz *AuthorizationService, audit *AuditService, metrics ports.Metrics, logger ports.Logger) *AlertRuleService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &AlertRuleService{repo: repo, alerts: alerts, devices: devices, authz: authz, audit: audit, metrics: metrics, logger: logger, now: utcNow}
}

func (s *AlertRuleService) List(ctx context.Context, actor domain.Actor) ([]domain.AlertRule, error) {
	if err := s.authz.Require(actor, domain.ResourceAlertRule, domain.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *AlertRuleService) Get(ctx context.Context, actor domain.Actor, ruleID string) (domain.AlertRule, error) {
	if err := s.authz.Require(actor, domain.ResourceAlertRule, domain.ActionView); err != nil {
		return domain.AlertRule{}, err
	}
	if ruleID == "" {
		return domain.AlertRule{}, domain.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, ruleID)
}

func (s *AlertRuleService) Create(ctx context.Context, actor domain.Actor, rule domain.AlertRule) (domain.AlertRule, error) {
	created, err := func() (domain.AlertRule, error) {
		if err := s.authz.Require(actor, domain.ResourceAlertRule, domain.ActionCreate); err != nil {
			return domain.AlertRule{}, err
		}
		rule.Name = strings.TrimSpace(rule.Name)
		rule.Metric = strings.TrimSpace(rule.Metric)
		if err := rule.Validate(); err != nil {
			return domain.AlertRule{}, err
		}
		if err := s.checkDevice(ctx, rule.DeviceID); err != nil {
			return domain.AlertRule{}, err
		}
		now := s.now()
		rule.ID = ids.New(ids.PrefixRule)
		rule.CreatedBy = actor.UserID
		rule.CreatedAt = now
		rule.UpdatedAt = now
		rule.LastTriggered = nil
		rule.DeviceTriggers = nil
		if rule.Channels == nil {
			rule.Channels = []domain.Channel{domain.ChannelPopup}
		}
		if err := s.repo.Create(ctx, rule); err != nil {
			return domain.AlertRule{}, err
		}
		return rule, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditCreate,
		Resource:   domain.ResourceAlertRule,
		ResourceID: created.ID,
		Details:    map[string]any{"name": rule.Name, "metric": rule.Metric},
	}, err)
	return created, err
}

func (s *AlertRuleService) Update(ctx context.Context, actor domain.Actor, ruleID string, upd domain.AlertRuleUpdate) (domain.AlertRule, error) {
	updated, err := func() (domain.AlertRule, error) {
		if err := s.authz.Require(actor, domain.ResourceAlertRule, domain.ActionUpdate); err != nil {
			return domain.AlertRule{}, err
		}
		if ruleID == "" {
			return domain.AlertRule{}, domain.ErrInvalidInput
		}
		s.evalMu.Lock()
		defer s.evalMu.Unlock()
		current, err := s.repo.GetByID(ctx, ruleID)
		if err != nil {
			return domain.AlertRule{}, err
		}
		next := current.Apply(upd)
		if err := next.Validate(); err != nil {
			return domain.AlertRule{}, err
		}
		if upd.DeviceID != nil {
			if err := s.checkDevice(ctx, next.DeviceID); err != nil {
				return domain.AlertRule{}, err
			}
		}
		next.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, next); err != nil {
			return domain.AlertRule{}, err
		}
		return next, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditUpdate, Resource: domain.ResourceAlertRule, ResourceID: ruleID}, err)
	return updated, err
}

func (s *AlertRuleService) Delete(ctx context.Context, actor domain.Actor, ruleID string) error {
	err := func() error {
		if err := s.authz.Require(actor, domain.ResourceAlertRule, domain.ActionDelete); err != nil {
			return err
		}
		if ruleID == "" {
			return domain.ErrInvalidInput
		}
		s.evalMu.Lock()
		defer s.evalMu.Unlock()
		return s.repo.Delete(ctx, ruleID)
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditDelete, Resource: domain.ResourceAlertRule, ResourceID: ruleID}, err)
	return err
}

func (s *AlertRuleService) checkDevice(ctx context.Context, deviceID *string) error {
	if deviceID == nil {
		return nil
	}
	if _, err := s.devices.GetByID(ctx, *deviceID); err != nil {
		return fmt.Errorf("rule device %s: %w", *deviceID, err)
	}
	return nil
}

// Evaluate runs a metric sample through every rule on behalf of the system
// and returns the alerts it raised.
func (s *AlertRuleService) Evaluate(ctx context.Context, sample domain.MetricSample) ([]domain.Alert, error) {
	return s.evaluate(ctx, domain.System, sample)
}

// EvaluateAs is Evaluate for a caller who submits a sample directly and
// therefore needs alert:create.
func (s *AlertRuleService) EvaluateAs(ctx context.Context, actor domain.Actor, sample domain.MetricSample) ([]domain.Alert, error) {
	if err := s.authz.Require(actor, domain.ResourceAlert, domain.ActionCreate); err != nil {
		return nil, err
	}
	return s.evaluate(ctx, actor, sample)
}

func (s *AlertRuleService) evaluate(ctx context.Context, actor domain.Actor, sample domain.MetricSample) ([]domain.Alert, error) {
	sample.Metric = strings.TrimSpace(sample.Metric)
	if sample.DeviceID == "" || sample.Metric == "" {
		return nil, fmt.Errorf("%w: device_id and metric are required", domain.ErrInvalidInput)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	sample.Timestamp = sample.Timestamp.UTC()

	device, err := s.devices.GetByID(ctx, sample.DeviceID)
	if err != nil {
		return nil, err
	}

	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	fired := []domain.Alert{}
	for _, rule := range rules {
		if !rule.Matches(sample) {
			continue
		}
		if rule.InCooldown(sample.DeviceID, sample.Timestamp) {
			s.logger.Debug(ctx, "rule suppressed by cooldown", "rule_id", rule.ID, "device_id", sample.DeviceID)
			continue
		}
		alert := domain.Alert{
			ID:          ids.New(ids.PrefixAlert),
			RuleID:      rule.ID,
			DeviceID:    device.ID,
			DeviceName:  device.Name,
			Metric:      sample.Metric,
			Value:       sample.Value,
			Severity:    rule.Severity,
			Status:      domain.AlertActive,
			Message:     rule.Describe(sample.Value),
			TriggeredAt: sample.Timestamp,
		}
		if err := s.alerts.Create(ctx, alert); err != nil {
			return fired, err
		}
		if err := s.repo.Update(ctx, rule.MarkTriggered(sample.DeviceID, sample.Timestamp)); err != nil {
			return fired, err
		}
		s.metrics.AlertFired(alert.Severity)
		s.audit.RecordOutcome(ctx, actor, AuditEntry{
			Action:     domain.AuditCreate,
			Resource:   domain.ResourceAlert,
			ResourceID: alert.ID,
			Details:    map[string]any{"rule_id": rule.ID, "device_id": device.ID, "value": sample.Value},
		}, nil)
		s.logger.Info(ctx, "alert raised", "alert_id", alert.ID, "rule_id", rule.ID, "device_id", device.ID, "severity", alert.Severity)
		fired = append(fired, alert)
	}
	return fired, nil
}
