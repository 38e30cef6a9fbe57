package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smart-factory/internal/domain"
)

type AlertRuleRepository struct{ client *Client }

func NewAlertRuleRepository(client *Client) *AlertRuleRepository {
	return &AlertRuleRepository{client: client}
}

type ruleRecord struct {
	PK              string            `dynamodbav:"PK"`
	SK              string            `dynamodbav:"SK"`
	EntityType      string            `dynamodbav:"EntityType"`
	ID              string            `dynamodbav:"ID"`
	Name            string            `dynamodbav:"Name"`
	Description     string            `dynamodbav:"Description"`
	DeviceID        string            `dynamodbav:"DeviceID,omitempty"`
	Metric          string            `dynamodbav:"Metric"`
	Operator        string            `dynamodbav:"Operator"`
	Threshold       float64           `dynamodbav:"Threshold"`
	ThresholdHigh   *float64          `dynamodbav:"ThresholdHigh,omitempty"`
	Unit            string            `dynamodbav:"Unit,omitempty"`
	Severity        string            `dynamodbav:"Severity"`
	Channels        []string          `dynamodbav:"Channels"`
	IsActive        bool              `dynamodbav:"IsActive"`
	CooldownMinutes int               `dynamodbav:"CooldownMinutes"`
	LastTriggered   string            `dynamodbav:"LastTriggered,omitempty"`
	DeviceTriggers  map[string]string `dynamodbav:"DeviceTriggers,omitempty"`
	CreatedBy       string            `dynamodbav:"CreatedBy"`
	CreatedAt       string            `dynamodbav:"CreatedAt"`
	UpdatedAt       string            `dynamodbav:"UpdatedAt"`
}

func toRuleRecord(rule domain.AlertRule) ruleRecord {
	rec := ruleRecord{
		PK:              rulesPK,
		SK:              ruleSK(rule.ID),
		EntityType:      "ALERT_RULE",
		ID:              rule.ID,
		Name:            rule.Name,
		Description:     rule.Description,
		Metric:          rule.Metric,
		Operator:        string(rule.Operator),
		Threshold:       rule.Threshold,
		ThresholdHigh:   rule.ThresholdHigh,
		Unit:            rule.Unit,
		Severity:        string(rule.Severity),
		IsActive:        rule.IsActive,
		CooldownMinutes: rule.CooldownMinutes,
		LastTriggered:   formatTimePtr(rule.LastTriggered),
		CreatedBy:       rule.CreatedBy,
		CreatedAt:       formatTime(rule.CreatedAt),
		UpdatedAt:       formatTime(rule.UpdatedAt),
	}
	if rule.DeviceID != nil {
		rec.DeviceID = *rule.DeviceID
	}
	for _, ch := range rule.Channels {
		rec.Channels = append(rec.Channels, string(ch))
	}
	if len(rule.DeviceTriggers) > 0 {
		rec.DeviceTriggers = make(map[string]string, len(rule.DeviceTriggers))
		for deviceID, at := range rule.DeviceTriggers {
			rec.DeviceTriggers[deviceID] = formatTime(at)
		}
	}
	return rec
}

func (r ruleRecord) toDomain() domain.AlertRule {
	rule := domain.AlertRule{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Metric:          r.Metric,
		Operator:        domain.Operator(r.Operator),
		Threshold:       r.Threshold,
		ThresholdHigh:   r.ThresholdHigh,
		Unit:            r.Unit,
		Severity:        domain.Severity(r.Severity),
		IsActive:        r.IsActive,
		CooldownMinutes: r.CooldownMinutes,
		LastTriggered:   parseTimePtr(r.LastTriggered),
		CreatedBy:       r.CreatedBy,
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
	}
	if r.DeviceID != "" {
		deviceID := r.DeviceID
		rule.DeviceID = &deviceID
	}
	for _, ch := range r.Channels {
		rule.Channels = append(rule.Channels, domain.Channel(ch))
	}
	if len(r.DeviceTriggers) > 0 {
		rule.DeviceTriggers = make(map[string]time.Time, len(r.DeviceTriggers))
		for deviceID, at := range r.DeviceTriggers {
			rule.DeviceTriggers[deviceID] = parseTime(at)
		}
	}
	return rule
}

func (r *AlertRuleRepository) List(ctx context.Context) ([]domain.AlertRule, error) {
	items, err := r.client.query(ctx, "DynamoDB.QueryAlertRules", rulesPK, "RULE#", true)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalAll[ruleRecord](items)
	if err != nil {
		return nil, err
	}
	rules := make([]domain.AlertRule, 0, len(records))
	for _, rec := range records {
		rules = append(rules, rec.toDomain())
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })
	return rules, nil
}

func (r *AlertRuleRepository) GetByID(ctx context.Context, ruleID string) (domain.AlertRule, error) {
	var rec ruleRecord
	if err := r.client.getItem(ctx, "DynamoDB.GetAlertRule", rulesPK, ruleSK(ruleID), &rec); err != nil {
		return domain.AlertRule{}, err
	}
	return rec.toDomain(), nil
}

func (r *AlertRuleRepository) Create(ctx context.Context, rule domain.AlertRule) error {
	err := r.client.putItem(ctx, "DynamoDB.PutAlertRule", toRuleRecord(rule), "attribute_not_exists(PK)")
	if isConditionalCheckFailure(err) {
		return fmt.Errorf("%w: alert rule %s already exists", domain.ErrConflict, rule.ID)
	}
	return err
}

func (r *AlertRuleRepository) Update(ctx context.Context, rule domain.AlertRule) error {
	err := r.client.putItem(ctx, "DynamoDB.UpdateAlertRule", toRuleRecord(rule), "attribute_exists(PK)")
	if isConditionalCheckFailure(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r *AlertRuleRepository) Delete(ctx context.Context, ruleID string) error {
	return r.client.deleteItem(ctx, "DynamoDB.DeleteAlertRule", rulesPK, ruleSK(ruleID))
}
