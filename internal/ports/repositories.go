package ports

import (
	"context"

	"smart-factory/internal/domain"
)

type RoleRepository interface {
	List(ctx context.Context) ([]domain.Role, error)
	GetByID(ctx context.Context, roleID string) (domain.Role, error)
	GetByName(ctx context.Context, name domain.RoleName) (domain.Role, error)
	Create(ctx context.Context, role domain.Role) error
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, roleID string) error
	// ListGrants returns every role_permission row.
	ListGrants(ctx context.Context) ([]domain.RolePermission, error)
	// SetGrants replaces the grants of one role.
	SetGrants(ctx context.Context, roleID string, permissionIDs []string) error
}

type UserRepository interface {
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	GetByID(ctx context.Context, userID string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
}

type DeviceRepository interface {
	List(ctx context.Context, filter domain.DeviceFilter) ([]domain.Device, error)
	GetByID(ctx context.Context, deviceID string) (domain.Device, error)
	Create(ctx context.Context, device domain.Device) error
	Update(ctx context.Context, device domain.Device) error
	Delete(ctx context.Context, deviceID string) error
	AppendCommand(ctx context.Context, cmd domain.DeviceCommand) error
	ListCommands(ctx context.Context, deviceID string) ([]domain.DeviceCommand, error)
}

type AlertRepository interface {
	// List returns matching alerts, most recently triggered first.
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	GetByID(ctx context.Context, alertID string) (domain.Alert, error)
	Create(ctx context.Context, alert domain.Alert) error
	// Transition stores next only if the stored alert is still in status from.
	// A lost race returns domain.ErrIllegalTransition.
	Transition(ctx context.Context, next domain.Alert, from domain.AlertStatus) error
}

type AlertRuleRepository interface {
	List(ctx context.Context) ([]domain.AlertRule, error)
	GetByID(ctx context.Context, ruleID string) (domain.AlertRule, error)
	Create(ctx context.Context, rule domain.AlertRule) error
	Update(ctx context.Context, rule domain.AlertRule) error
	Delete(ctx context.Context, ruleID string) error
}

// AuditLogRepository is append-only.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLog) error
	// List returns matching entries, newest first.
	List(ctx context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, error)
}
