package domain

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

func (s AlertStatus) Valid() bool {
	return s == AlertActive || s == AlertAcknowledged || s == AlertResolved
}

type Alert struct {
	ID             string      `json:"id"`
	RuleID         string      `json:"rule_id,omitempty"`
	DeviceID       string      `json:"device_id"`
	DeviceName     string      `json:"device_name"`
	Metric         string      `json:"metric"`
	Value          float64     `json:"value"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	Message        string      `json:"message"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string      `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy     string      `json:"resolved_by,omitempty"`
}

// Acknowledge moves an active alert to acknowledged. Any other starting
// state is rejected so the first acknowledgement is never overwritten.
func (a Alert) Acknowledge(actorID string, at time.Time) (Alert, error) {
	if a.Status != AlertActive {
		return a, fmt.Errorf("%w: cannot acknowledge alert in status %s", ErrIllegalTransition, a.Status)
	}
	at = at.UTC()
	a.Status = AlertAcknowledged
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = actorID
	return a, nil
}

// Resolve closes an active or acknowledged alert. Resolved is terminal.
func (a Alert) Resolve(actorID string, at time.Time) (Alert, error) {
	if a.Status != AlertActive && a.Status != AlertAcknowledged {
		return a, fmt.Errorf("%w: cannot resolve alert in status %s", ErrIllegalTransition, a.Status)
	}
	at = at.UTC()
	a.Status = AlertResolved
	a.ResolvedAt = &at
	a.ResolvedBy = actorID
	return a, nil
}

type AlertFilter struct {
	Severity Severity
	Status   AlertStatus
	DeviceID string
	RuleID   string
	Start    *time.Time
	End      *time.Time
}

func (f AlertFilter) Match(a Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.DeviceID != "" && a.DeviceID != f.DeviceID {
		return false
	}
	if f.RuleID != "" && a.RuleID != f.RuleID {
		return false
	}
	if f.Start != nil && a.TriggeredAt.Before(*f.Start) {
		return false
	}
	if f.End != nil && a.TriggeredAt.After(*f.End) {
		return false
	}
	return true
}

type AlertStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	Critical     int `json:"critical"`
	Warning      int `json:"warning"`
	Info         int `json:"info"`
}

func ComputeAlertStats(alerts []Alert) AlertStats {
	var s AlertStats
	for _, a := range alerts {
		s.Total++
		switch a.Status {
		case AlertActive:
			s.Active++
		case AlertAcknowledged:
			s.Acknowledged++
		case AlertResolved:
			s.Resolved++
		}
		switch a.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warning++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}
