package domain

import (
	"slices"
	"strings"
)

type Resource string

const (
	ResourceDashboard    Resource = "dashboard"
	ResourceDevice       Resource = "device"
	ResourceAlert        Resource = "alert"
	ResourceAlertRule    Resource = "alert_rule"
	ResourceUser         Resource = "user"
	ResourceRole         Resource = "role"
	ResourceLog          Resource = "log"
	ResourceEnergy       Resource = "energy"
	ResourceSettings     Resource = "settings"
	ResourceSystemHealth Resource = "system_health"
	ResourceDigitalTwin  Resource = "digital_twin"
)

type Action string

const (
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionControl     Action = "control"
	ActionAcknowledge Action = "acknowledge"
	ActionResolve     Action = "resolve"
	ActionExport      Action = "export"
)

// RoleName is the policy key for a role. Built-in names are fixed; custom
// roles use whatever unique name they were created with.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleManager  RoleName = "manager"
	RoleOperator RoleName = "operator"
	RoleGuest    RoleName = "guest"
)

// Permission is one (resource, action) pair from the fixed catalog.
type Permission struct {
	ID          string   `json:"id"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	Description string   `json:"description"`
}

func PermissionKey(resource Resource, action Action) string {
	return string(resource) + ":" + string(action)
}

// ParsePermissionKey splits "resource:action". It only checks shape, not
// catalog membership.
func ParsePermissionKey(key string) (Resource, Action, bool) {
	res, act, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || res == "" || act == "" {
		return "", "", false
	}
	return Resource(res), Action(act), true
}

type catalogEntry struct {
	resource Resource
	actions  []Action
	labels   map[Action]string
}

var catalog = []catalogEntry{
	{ResourceDashboard, []Action{ActionView}, map[Action]string{ActionView: "View main dashboard"}},
	{ResourceDevice, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionControl}, map[Action]string{
		ActionView:    "View device list and details",
		ActionCreate:  "Register devices",
		ActionUpdate:  "Edit device details",
		ActionDelete:  "Decommission devices",
		ActionControl: "Send commands to devices",
	}},
	{ResourceAlert, []Action{ActionView, ActionCreate, ActionUpdate, ActionAcknowledge, ActionResolve}, map[Action]string{
		ActionView:        "View alerts",
		ActionCreate:      "Raise alerts",
		ActionUpdate:      "Edit alerts",
		ActionAcknowledge: "Acknowledge alerts",
		ActionResolve:     "Resolve alerts",
	}},
	{ResourceAlertRule, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}, map[Action]string{
		ActionView:   "View alert rules",
		ActionCreate: "Create alert rules",
		ActionUpdate: "Edit alert rules",
		ActionDelete: "Delete alert rules",
	}},
	{ResourceUser, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}, map[Action]string{
		ActionView:   "View user list",
		ActionCreate: "Create users",
		ActionUpdate: "Edit users",
		ActionDelete: "Deactivate users",
	}},
	{ResourceRole, []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}, map[Action]string{
		ActionView:   "View roles and permissions",
		ActionCreate: "Create roles",
		ActionUpdate: "Edit roles and assign permissions",
		ActionDelete: "Delete custom roles",
	}},
	{ResourceLog, []Action{ActionView, ActionExport}, map[Action]string{
		ActionView:   "View audit logs",
		ActionExport: "Export audit log data",
	}},
	{ResourceEnergy, []Action{ActionView, ActionExport}, map[Action]string{
		ActionView:   "View energy data and reports",
		ActionExport: "Export energy data",
	}},
	{ResourceSettings, []Action{ActionView, ActionUpdate}, map[Action]string{
		ActionView:   "View system settings",
		ActionUpdate: "Manage system settings",
	}},
	{ResourceSystemHealth, []Action{ActionView}, map[Action]string{ActionView: "View system health dashboard"}},
	{ResourceDigitalTwin, []Action{ActionView}, map[Action]string{ActionView: "Access digital twin view"}},
}

// Catalog returns every permission the system knows about, in a stable order.
func Catalog() []Permission {
	out := make([]Permission, 0, 32)
	for _, entry := range catalog {
		for _, action := range entry.actions {
			out = append(out, Permission{
				ID:          PermissionKey(entry.resource, action),
				Resource:    entry.resource,
				Action:      action,
				Description: entry.labels[action],
			})
		}
	}
	return out
}

func Resources() []Resource {
	out := make([]Resource, 0, len(catalog))
	for _, entry := range catalog {
		out = append(out, entry.resource)
	}
	return out
}

func InCatalog(resource Resource, action Action) bool {
	for _, entry := range catalog {
		if entry.resource == resource {
			return slices.Contains(entry.actions, action)
		}
	}
	return false
}

var builtinGrants = map[RoleName]map[Resource][]Action{
	RoleManager: {
		ResourceDashboard:    {ActionView},
		ResourceDevice:       {ActionView, ActionControl},
		ResourceAlert:        {ActionView, ActionAcknowledge, ActionResolve},
		ResourceAlertRule:    {ActionView, ActionCreate, ActionUpdate},
		ResourceUser:         {ActionView},
		ResourceRole:         {ActionView},
		ResourceLog:          {ActionView},
		ResourceEnergy:       {ActionView, ActionExport},
		ResourceSettings:     {ActionView},
		ResourceSystemHealth: {ActionView},
		ResourceDigitalTwin:  {ActionView},
	},
	RoleOperator: {
		ResourceDashboard:    {ActionView},
		ResourceDevice:       {ActionView, ActionControl},
		ResourceAlert:        {ActionView, ActionAcknowledge},
		ResourceAlertRule:    {ActionView},
		ResourceLog:          {ActionView},
		ResourceEnergy:       {ActionView},
		ResourceSystemHealth: {ActionView},
		ResourceDigitalTwin:  {ActionView},
	},
	RoleGuest: {
		ResourceDashboard:   {ActionView},
		ResourceDevice:      {ActionView},
		ResourceAlert:       {ActionView},
		ResourceEnergy:      {ActionView},
		ResourceDigitalTwin: {ActionView},
	},
}

// BuiltinGrants returns the permission keys seeded for a system role. Admin
// always receives the whole catalog.
func BuiltinGrants(role RoleName) []string {
	if role == RoleAdmin {
		keys := make([]string, 0, 32)
		for _, p := range Catalog() {
			keys = append(keys, p.ID)
		}
		return keys
	}
	var keys []string
	for _, entry := range catalog {
		for _, action := range builtinGrants[role][entry.resource] {
			keys = append(keys, PermissionKey(entry.resource, action))
		}
	}
	return keys
}

type actionSet map[Action]struct{}

// Policy is an immutable role -> resource -> actions table. Lookups never
// fail: an unknown role or resource simply has no actions.
type Policy struct {
	table map[RoleName]map[Resource]actionSet
}

// NewPolicy builds a policy from permission keys per role. Keys outside the
// catalog are ignored, and admin is always given the full catalog.
func NewPolicy(grants map[RoleName][]string) *Policy {
	p := &Policy{table: make(map[RoleName]map[Resource]actionSet, len(grants)+1)}
	for role, keys := range grants {
		for _, key := range keys {
			res, act, ok := ParsePermissionKey(key)
			if !ok || !InCatalog(res, act) {
				continue
			}
			p.grant(role, res, act)
		}
	}
	for _, perm := range Catalog() {
		p.grant(RoleAdmin, perm.Resource, perm.Action)
	}
	return p
}

func (p *Policy) grant(role RoleName, res Resource, act Action) {
	byRes, ok := p.table[role]
	if !ok {
		byRes = map[Resource]actionSet{}
		p.table[role] = byRes
	}
	set, ok := byRes[res]
	if !ok {
		set = actionSet{}
		byRes[res] = set
	}
	set[act] = struct{}{}
}

func (p *Policy) CheckPermission(role RoleName, resource Resource, action Action) bool {
	if p == nil {
		return false
	}
	set, ok := p.table[role][resource]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

func (p *Policy) HasAnyPermission(role RoleName, resource Resource, actions []Action) bool {
	for _, a := range actions {
		if p.CheckPermission(role, resource, a) {
			return true
		}
	}
	return false
}

// HasAllPermissions is false for an empty action list, so a caller can never
// be granted access by asking for nothing.
func (p *Policy) HasAllPermissions(role RoleName, resource Resource, actions []Action) bool {
	if len(actions) == 0 {
		return false
	}
	for _, a := range actions {
		if !p.CheckPermission(role, resource, a) {
			return false
		}
	}
	return true
}

// AccessibleResources lists, in catalog order, the resources on which role
// holds at least one action.
func (p *Policy) AccessibleResources(role RoleName) []Resource {
	if p == nil {
		return nil
	}
	byRes := p.table[role]
	out := []Resource{}
	for _, entry := range catalog {
		if len(byRes[entry.resource]) > 0 {
			out = append(out, entry.resource)
		}
	}
	return out
}

// Permissions returns the permission keys held by role in catalog order.
func (p *Policy) Permissions(role RoleName) []string {
	out := []string{}
	for _, perm := range Catalog() {
		if p.CheckPermission(role, perm.Resource, perm.Action) {
			out = append(out, perm.ID)
		}
	}
	return out
}

var defaultPolicy = func() *Policy {
	grants := map[RoleName][]string{}
	for _, role := range []RoleName{RoleAdmin, RoleManager, RoleOperator, RoleGuest} {
		grants[role] = BuiltinGrants(role)
	}
	return NewPolicy(grants)
}()

// DefaultPolicy is the built-in table used before any role store is loaded.
func DefaultPolicy() *Policy { return defaultPolicy }

func CheckPermission(role RoleName, resource Resource, action Action) bool {
	return defaultPolicy.CheckPermission(role, resource, action)
}

func HasAnyPermission(role RoleName, resource Resource, actions []Action) bool {
	return defaultPolicy.HasAnyPermission(role, resource, actions)
}

func HasAllPermissions(role RoleName, resource Resource, actions []Action) bool {
	return defaultPolicy.HasAllPermissions(role, resource, actions)
}

func AccessibleResources(role RoleName) []Resource {
	return defaultPolicy.AccessibleResources(role)
}
