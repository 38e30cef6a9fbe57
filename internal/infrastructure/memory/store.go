// Package memory keeps every aggregate in process maps. It backs local runs and
// integration tests; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"smart-factory/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	roles    map[string]domain.Role
	grants   map[string][]string
	users    map[string]domain.User
	devices  map[string]domain.Device
	commands map[string][]domain.DeviceCommand
	alerts   map[string]domain.Alert
	rules    map[string]domain.AlertRule
	audit    []domain.AuditLog
}

func NewStore() *Store {
	return &Store{
		roles:    map[string]domain.Role{},
		grants:   map[string][]string{},
		users:    map[string]domain.User{},
		devices:  map[string]domain.Device{},
		commands: map[string][]domain.DeviceCommand{},
		alerts:   map[string]domain.Alert{},
		rules:    map[string]domain.AlertRule{},
	}
}

type RoleRepository struct{ s *Store }

type UserRepository struct{ s *Store }

type DeviceRepository struct{ s *Store }

type AlertRepository struct{ s *Store }

type AlertRuleRepository struct{ s *Store }

type AuditLogRepository struct{ s *Store }

func (s *Store) Roles() *RoleRepository           { return &RoleRepository{s: s} }
func (s *Store) Users() *UserRepository           { return &UserRepository{s: s} }
func (s *Store) Devices() *DeviceRepository       { return &DeviceRepository{s: s} }
func (s *Store) Alerts() *AlertRepository         { return &AlertRepository{s: s} }
func (s *Store) AlertRules() *AlertRuleRepository { return &AlertRuleRepository{s: s} }
func (s *Store) AuditLogs() *AuditLogRepository   { return &AuditLogRepository{s: s} }

// List returns the system roles in seeded order followed by custom roles,
// oldest first.
func (r *RoleRepository) List(_ context.Context) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rank := map[string]int{}
	for i, role := range domain.BuiltinRoles() {
		rank[role.ID] = i + 1
	}
	out := slices.Collect(maps.Values(r.s.roles))
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i].ID], rank[out[j].ID]
		switch {
		case ri != 0 && rj != 0:
			return ri < rj
		case ri != 0 || rj != 0:
			return ri != 0
		case !out[i].CreatedAt.Equal(out[j].CreatedAt):
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *RoleRepository) GetByID(_ context.Context, roleID string) (domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[roleID]
	if !ok {
		return domain.Role{}, domain.ErrNotFound
	}
	return role, nil
}

func (r *RoleRepository) GetByName(_ context.Context, name domain.RoleName) (domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return domain.Role{}, domain.ErrNotFound
}

func (r *RoleRepository) Create(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.roles[role.ID]; exists {
		return fmt.Errorf("%w: role %s already exists", domain.ErrConflict, role.ID)
	}
	for _, existing := range r.s.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("%w: role name %s already taken", domain.ErrConflict, role.Name)
		}
	}
	r.s.roles[role.ID] = role
	return nil
}

func (r *RoleRepository) Update(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.roles[role.ID]; !exists {
		return domain.ErrNotFound
	}
	r.s.roles[role.ID] = role
	return nil
}

func (r *RoleRepository) Delete(_ context.Context, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.roles[roleID]; !exists {
		return domain.ErrNotFound
	}
	delete(r.s.roles, roleID)
	delete(r.s.grants, roleID)
	return nil
}

func (r *RoleRepository) ListGrants(_ context.Context) ([]domain.RolePermission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	roleIDs := slices.Sorted(maps.Keys(r.s.grants))
	var out []domain.RolePermission
	for _, roleID := range roleIDs {
		for _, key := range r.s.grants[roleID] {
			out = append(out, domain.RolePermission{RoleID: roleID, PermissionID: key})
		}
	}
	return out, nil
}

func (r *RoleRepository) SetGrants(_ context.Context, roleID string, permissionIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.roles[roleID]; !exists {
		return domain.ErrNotFound
	}
	if len(permissionIDs) == 0 {
		delete(r.s.grants, roleID)
		return nil
	}
	r.s.grants[roleID] = slices.Clone(permissionIDs)
	return nil
}

func (r *UserRepository) List(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.User{}
	for _, u := range r.s.users {
		if filter.Match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *UserRepository) GetByID(_ context.Context, userID string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s already exists", domain.ErrConflict, user.ID)
	}
	if r.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, user.Email)
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *UserRepository) Update(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; !exists {
		return domain.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, user.Email)
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *UserRepository) emailTaken(email, ownerID string) bool {
	for id, u := range r.s.users {
		if id != ownerID && u.Email == email {
			return true
		}
	}
	return false
}

func cloneDevice(d domain.Device) domain.Device {
	d.Metadata = maps.Clone(d.Metadata)
	return d
}

func (r *DeviceRepository) List(_ context.Context, filter domain.DeviceFilter) ([]domain.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Device{}
	for _, d := range r.s.devices {
		if filter.Match(d) {
			out = append(out, cloneDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Zone != out[j].Zone {
			return out[i].Zone < out[j].Zone
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *DeviceRepository) GetByID(_ context.Context, deviceID string) (domain.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.devices[deviceID]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return cloneDevice(d), nil
}

func (r *DeviceRepository) Create(_ context.Context, device domain.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.devices[device.ID]; exists {
		return fmt.Errorf("%w: device %s already exists", domain.ErrConflict, device.ID)
	}
	r.s.devices[device.ID] = cloneDevice(device)
	return nil
}

func (r *DeviceRepository) Update(_ context.Context, device domain.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.devices[device.ID]; !exists {
		return domain.ErrNotFound
	}
	r.s.devices[device.ID] = cloneDevice(device)
	return nil
}

func (r *DeviceRepository) Delete(_ context.Context, deviceID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.devices[deviceID]; !exists {
		return domain.ErrNotFound
	}
	delete(r.s.devices, deviceID)
	delete(r.s.commands, deviceID)
	return nil
}

func (r *DeviceRepository) AppendCommand(_ context.Context, cmd domain.DeviceCommand) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.devices[cmd.DeviceID]; !exists {
		return domain.ErrNotFound
	}
	cmd.Params = maps.Clone(cmd.Params)
	r.s.commands[cmd.DeviceID] = append(r.s.commands[cmd.DeviceID], cmd)
	return nil
}

// ListCommands returns the device's command history, newest first.
func (r *DeviceRepository) ListCommands(_ context.Context, deviceID string) ([]domain.DeviceCommand, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	history := r.s.commands[deviceID]
	out := make([]domain.DeviceCommand, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (r *AlertRepository) List(_ context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Alert{}
	for _, a := range r.s.alerts {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *AlertRepository) GetByID(_ context.Context, alertID string) (domain.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.alerts[alertID]
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *AlertRepository) Create(_ context.Context, alert domain.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.alerts[alert.ID]; exists {
		return fmt.Errorf("%w: alert %s already exists", domain.ErrConflict, alert.ID)
	}
	r.s.alerts[alert.ID] = alert
	return nil
}

func (r *AlertRepository) Transition(_ context.Context, next domain.Alert, from domain.AlertStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.alerts[next.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != from {
		return fmt.Errorf("%w: alert %s is already %s", domain.ErrIllegalTransition, next.ID, current.Status)
	}
	r.s.alerts[next.ID] = next
	return nil
}

func cloneRule(rule domain.AlertRule) domain.AlertRule {
	rule.DeviceTriggers = maps.Clone(rule.DeviceTriggers)
	rule.Channels = slices.Clone(rule.Channels)
	return rule
}

func (r *AlertRuleRepository) List(_ context.Context) ([]domain.AlertRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.AlertRule, 0, len(r.s.rules))
	for _, rule := range r.s.rules {
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AlertRuleRepository) GetByID(_ context.Context, ruleID string) (domain.AlertRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[ruleID]
	if !ok {
		return domain.AlertRule{}, domain.ErrNotFound
	}
	return cloneRule(rule), nil
}

func (r *AlertRuleRepository) Create(_ context.Context, rule domain.AlertRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.rules[rule.ID]; exists {
		return fmt.Errorf("%w: alert rule %s already exists", domain.ErrConflict, rule.ID)
	}
	r.s.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *AlertRuleRepository) Update(_ context.Context, rule domain.AlertRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.rules[rule.ID]; !exists {
		return domain.ErrNotFound
	}
	r.s.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *AlertRuleRepository) Delete(_ context.Context, ruleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.rules[ruleID]; !exists {
		return domain.ErrNotFound
	}
	delete(r.s.rules, ruleID)
	return nil
}

func (r *AuditLogRepository) Append(_ context.Context, entry domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.audit {
		if existing.ID == entry.ID {
			return fmt.Errorf("%w: audit entry %s already written", domain.ErrConflict, entry.ID)
		}
	}
	entry.Details = maps.Clone(entry.Details)
	r.s.audit = append(r.s.audit, entry)
	return nil
}

func (r *AuditLogRepository) List(_ context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.AuditLog{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if filter.Match(r.s.audit[i]) {
			out = append(out, r.s.audit[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
