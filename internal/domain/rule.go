package domain

import (
	"fmt"
	"strings"
	"time"
)

type Operator string

const (
	OpGreater      Operator = "gt"
	OpLess         Operator = "lt"
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "neq"
	OpGreaterEqual Operator = "gte"
	OpLessEqual    Operator = "lte"
	OpBetween      Operator = "between"
)

func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpEqual, OpNotEqual, OpGreaterEqual, OpLessEqual, OpBetween:
		return true
	}
	return false
}

func (o Operator) Symbol() string {
	switch o {
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreaterEqual:
		return ">="
	case OpLessEqual:
		return "<="
	case OpBetween:
		return "between"
	}
	return string(o)
}

type Channel string

const (
	ChannelPopup Channel = "popup"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type AlertRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// DeviceID nil means the rule applies to every device.
	DeviceID        *string              `json:"device_id"`
	Metric          string               `json:"metric"`
	Operator        Operator             `json:"operator"`
	Threshold       float64              `json:"threshold"`
	ThresholdHigh   *float64             `json:"threshold_high,omitempty"`
	Unit            string               `json:"unit,omitempty"`
	Severity        Severity             `json:"severity"`
	Channels        []Channel            `json:"channels"`
	IsActive        bool                 `json:"is_active"`
	CooldownMinutes int                  `json:"cooldown_minutes"`
	LastTriggered   *time.Time           `json:"last_triggered,omitempty"`
	DeviceTriggers  map[string]time.Time `json:"device_triggers,omitempty"`
	CreatedBy       string               `json:"created_by"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func (r AlertRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Metric) == "" {
		return fmt.Errorf("%w: metric is required", ErrInvalidInput)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("%w: unsupported operator %q", ErrInvalidInput, r.Operator)
	}
	if r.Operator == OpBetween {
		if r.ThresholdHigh == nil {
			return fmt.Errorf("%w: threshold_high is required for between", ErrInvalidInput)
		}
		if *r.ThresholdHigh < r.Threshold {
			return fmt.Errorf("%w: threshold_high must not be below threshold", ErrInvalidInput)
		}
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: unsupported severity %q", ErrInvalidInput, r.Severity)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("%w: cooldown_minutes must be >= 0", ErrInvalidInput)
	}
	for _, ch := range r.Channels {
		if ch != ChannelPopup && ch != ChannelEmail && ch != ChannelSMS {
			return fmt.Errorf("%w: unsupported channel %q", ErrInvalidInput, ch)
		}
	}
	return nil
}

// MetricSample is one telemetry reading presented to the rule evaluator.
type MetricSample struct {
	DeviceID  string    `json:"device_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func (r AlertRule) compare(v float64) bool {
	switch r.Operator {
	case OpGreater:
		return v > r.Threshold
	case OpLess:
		return v < r.Threshold
	case OpEqual:
		return v == r.Threshold
	case OpNotEqual:
		return v != r.Threshold
	case OpGreaterEqual:
		return v >= r.Threshold
	case OpLessEqual:
		return v <= r.Threshold
	case OpBetween:
		return r.ThresholdHigh != nil && v >= r.Threshold && v <= *r.ThresholdHigh
	}
	return false
}

// Matches reports whether the sample satisfies the rule, ignoring cooldown.
func (r AlertRule) Matches(s MetricSample) bool {
	if !r.IsActive || r.Metric != s.Metric {
		return false
	}
	if r.DeviceID != nil && *r.DeviceID != s.DeviceID {
		return false
	}
	return r.compare(s.Value)
}

// InCooldown reports whether the rule fired for deviceID less than
// CooldownMinutes before at.
func (r AlertRule) InCooldown(deviceID string, at time.Time) bool {
	if r.CooldownMinutes <= 0 {
		return false
	}
	last, ok := r.DeviceTriggers[deviceID]
	if !ok {
		return false
	}
	return at.Sub(last) < time.Duration(r.CooldownMinutes)*time.Minute
}

// MarkTriggered records a firing for deviceID at at. Stored timestamps only
// move forward, so a late sample cannot shorten a cooldown.
func (r AlertRule) MarkTriggered(deviceID string, at time.Time) AlertRule {
	at = at.UTC()
	triggers := make(map[string]time.Time, len(r.DeviceTriggers)+1)
	for k, v := range r.DeviceTriggers {
		triggers[k] = v
	}
	if last, ok := triggers[deviceID]; !ok || at.After(last) {
		triggers[deviceID] = at
	}
	r.DeviceTriggers = triggers
	if r.LastTriggered == nil || at.After(*r.LastTriggered) {
		r.LastTriggered = &at
	}
	return r
}

func (r AlertRule) Describe(value float64) string {
	if r.Operator == OpBetween && r.ThresholdHigh != nil {
		return fmt.Sprintf("%s: %s %g%s within [%g, %g]", r.Name, r.Metric, value, r.Unit, r.Threshold, *r.ThresholdHigh)
	}
	return fmt.Sprintf("%s: %s %g%s %s %g%s", r.Name, r.Metric, value, r.Unit, r.Operator.Symbol(), r.Threshold, r.Unit)
}

type AlertRuleUpdate struct {
	Name            *string
	Description     *string
	DeviceID        **string
	Metric          *string
	Operator        *Operator
	Threshold       *float64
	ThresholdHigh   **float64
	Unit            *string
	Severity        *Severity
	Channels        []Channel
	IsActive        *bool
	CooldownMinutes *int
}

func (r AlertRule) Apply(u AlertRuleUpdate) AlertRule {
	if u.Name != nil {
		r.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.DeviceID != nil {
		r.DeviceID = *u.DeviceID
	}
	if u.Metric != nil {
		r.Metric = strings.TrimSpace(*u.Metric)
	}
	if u.Operator != nil {
		r.Operator = *u.Operator
	}
	if u.Threshold != nil {
		r.Threshold = *u.Threshold
	}
	if u.ThresholdHigh != nil {
		r.ThresholdHigh = *u.ThresholdHigh
	}
	if u.Unit != nil {
		r.Unit = *u.Unit
	}
	if u.Severity != nil {
		r.Severity = *u.Severity
	}
	if u.Channels != nil {
		r.Channels = u.Channels
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
	if u.CooldownMinutes != nil {
		r.CooldownMinutes = *u.CooldownMinutes
	}
	return r
}
