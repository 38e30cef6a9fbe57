package domain

import (
	"strings"
	"time"
)

type AuditAction string

const (
	AuditLogin       AuditAction = "LOGIN"
	AuditLogout      AuditAction = "LOGOUT"
	AuditCreate      AuditAction = "CREATE"
	AuditUpdate      AuditAction = "UPDATE"
	AuditDelete      AuditAction = "DELETE"
	AuditControl     AuditAction = "CONTROL"
	AuditView        AuditAction = "VIEW"
	AuditExport      AuditAction = "EXPORT"
	AuditAcknowledge AuditAction = "ACKNOWLEDGE"
	AuditResolve     AuditAction = "RESOLVE"
	AuditConfigure   AuditAction = "CONFIGURE"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditLogin, AuditLogout, AuditCreate, AuditUpdate, AuditDelete, AuditControl,
		AuditView, AuditExport, AuditAcknowledge, AuditResolve, AuditConfigure:
		return true
	}
	return false
}

type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailure AuditResult = "failure"
)

// AuditLog is append-only: nothing in the system updates or deletes one.
type AuditLog struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	Action     AuditAction    `json:"action"`
	Resource   Resource       `json:"resource"`
	ResourceID string         `json:"resource_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Result     AuditResult    `json:"result"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Timestamp  time.Time      `json:"timestamp"`
}

type AuditLogFilter struct {
	UserID   string
	Action   AuditAction
	Resource Resource
	Result   AuditResult
	Start    *time.Time
	End      *time.Time
	Search   string
}

func (f AuditLogFilter) Match(l AuditLog) bool {
	if f.UserID != "" && l.UserID != f.UserID {
		return false
	}
	if f.Action != "" && l.Action != f.Action {
		return false
	}
	if f.Resource != "" && l.Resource != f.Resource {
		return false
	}
	if f.Result != "" && l.Result != f.Result {
		return false
	}
	if f.Start != nil && l.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && l.Timestamp.After(*f.End) {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.UserName), s) &&
			!strings.Contains(strings.ToLower(l.ResourceID), s) &&
			!strings.Contains(strings.ToLower(string(l.Resource)), s) {
			return false
		}
	}
	return true
}
