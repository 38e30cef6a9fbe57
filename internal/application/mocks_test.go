package application

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"smart-factory/internal/domain"
)

type roleRepoMock struct{ mock.Mock }

func (m *roleRepoMock) List(ctx context.Context) ([]domain.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Role), args.Error(1)
}

func (m *roleRepoMock) GetByID(ctx context.Context, roleID string) (domain.Role, error) {
	args := m.Called(ctx, roleID)
	return args.Get(0).(domain.Role), args.Error(1)
}

func (m *roleRepoMock) GetByName(ctx context.Context, name domain.RoleName) (domain.Role, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Role), args.Error(1)
}

func (m *roleRepoMock) Create(ctx context.Context, role domain.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *roleRepoMock) Update(ctx context.Context, role domain.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *roleRepoMock) Delete(ctx context.Context, roleID string) error {
	args := m.Called(ctx, roleID)
	return args.Error(0)
}

func (m *roleRepoMock) ListGrants(ctx context.Context) ([]domain.RolePermission, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.RolePermission), args.Error(1)
}

func (m *roleRepoMock) SetGrants(ctx context.Context, roleID string, permissionIDs []string) error {
	args := m.Called(ctx, roleID, permissionIDs)
	return args.Error(0)
}

type userRepoMock struct{ mock.Mock }

func (m *userRepoMock) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *userRepoMock) GetByID(ctx context.Context, userID string) (domain.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *userRepoMock) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *userRepoMock) Create(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *userRepoMock) Update(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type deviceRepoMock struct{ mock.Mock }

func (m *deviceRepoMock) List(ctx context.Context, filter domain.DeviceFilter) ([]domain.Device, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Device), args.Error(1)
}

func (m *deviceRepoMock) GetByID(ctx context.Context, deviceID string) (domain.Device, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(domain.Device), args.Error(1)
}

func (m *deviceRepoMock) Create(ctx context.Context, device domain.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *deviceRepoMock) Update(ctx context.Context, device domain.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *deviceRepoMock) Delete(ctx context.Context, deviceID string) error {
	args := m.Called(ctx, deviceID)
	return args.Error(0)
}

func (m *deviceRepoMock) AppendCommand(ctx context.Context, cmd domain.DeviceCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *deviceRepoMock) ListCommands(ctx context.Context, deviceID string) ([]domain.DeviceCommand, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).([]domain.DeviceCommand), args.Error(1)
}

type alertRepoMock struct{ mock.Mock }

func (m *alertRepoMock) List(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Alert), args.Error(1)
}

func (m *alertRepoMock) GetByID(ctx context.Context, alertID string) (domain.Alert, error) {
	args := m.Called(ctx, alertID)
	return args.Get(0).(domain.Alert), args.Error(1)
}

func (m *alertRepoMock) Create(ctx context.Context, alert domain.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *alertRepoMock) Transition(ctx context.Context, next domain.Alert, from domain.AlertStatus) error {
	args := m.Called(ctx, next, from)
	return args.Error(0)
}

type ruleRepoMock struct{ mock.Mock }

func (m *ruleRepoMock) List(ctx context.Context) ([]domain.AlertRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.AlertRule), args.Error(1)
}

func (m *ruleRepoMock) GetByID(ctx context.Context, ruleID string) (domain.AlertRule, error) {
	args := m.Called(ctx, ruleID)
	return args.Get(0).(domain.AlertRule), args.Error(1)
}

func (m *ruleRepoMock) Create(ctx context.Context, rule domain.AlertRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *ruleRepoMock) Update(ctx context.Context, rule domain.AlertRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *ruleRepoMock) Delete(ctx context.Context, ruleID string) error {
	args := m.Called(ctx, ruleID)
	return args.Error(0)
}

// auditRepoStub keeps appended entries so tests can inspect what was audited.
type auditRepoStub struct {
	entries   []domain.AuditLog
	appendErr error
}

func (s *auditRepoStub) Append(_ context.Context, entry domain.AuditLog) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditRepoStub) List(_ context.Context, filter domain.AuditLogFilter) ([]domain.AuditLog, error) {
	out := []domain.AuditLog{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Match(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *auditRepoStub) last() domain.AuditLog {
	if len(s.entries) == 0 {
		return domain.AuditLog{}
	}
	return s.entries[len(s.entries)-1]
}

type metricsMock struct{ mock.Mock }

func (m *metricsMock) AlertTransition(transition, result string) { m.Called(transition, result) }
func (m *metricsMock) AlertFired(severity domain.Severity)       { m.Called(severity) }
func (m *metricsMock) AuditRecorded(result domain.AuditResult)   { m.Called(result) }

type csvExporter struct{}

func (csvExporter) Export(w io.Writer, logs []domain.AuditLog) error {
	var buf bytes.Buffer
	for _, l := range logs {
		buf.WriteString(l.ID + "," + string(l.Action) + "\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (csvExporter) ContentType() string   { return "text/csv" }
func (csvExporter) FileExtension() string { return "csv" }

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Debug(context.Context, string, ...any) {}

var fixedNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func actorWith(role domain.RoleName, id string) domain.Actor {
	return domain.Actor{UserID: id, UserName: "user " + id, Role: role, IPAddress: "10.0.0.1", UserAgent: "test"}
}

// harness wires every service over mocks, using the built-in policy.
type harness struct {
	roles   *roleRepoMock
	users   *userRepoMock
	devices *deviceRepoMock
	alerts  *alertRepoMock
	rules   *ruleRepoMock
	audit   *auditRepoStub

	authz    *AuthorizationService
	auditSvc *AuditService
	alertSvc *AlertService
	ruleSvc  *AlertRuleService
	devSvc   *DeviceService
	userSvc  *UserService
	roleSvc  *RoleService
}

func newHarness() *harness {
	h := &harness{
		roles:   new(roleRepoMock),
		users:   new(userRepoMock),
		devices: new(deviceRepoMock),
		alerts:  new(alertRepoMock),
		rules:   new(ruleRepoMock),
		audit:   &auditRepoStub{},
	}
	clock := func() time.Time { return fixedNow }
	h.authz = NewAuthorizationService(h.roles, h.users, nopLogger{})
	h.auditSvc = NewAuditService(h.audit, h.authz, csvExporter{}, nil, nopLogger{})
	h.auditSvc.now = clock
	h.alertSvc = NewAlertService(h.alerts, h.devices, h.authz, h.auditSvc, nil, nopLogger{})
	h.alertSvc.now = clock
	h.ruleSvc = NewAlertRuleService(h.rules, h.alerts, h.devices, h.authz, h.auditSvc, nil, nopLogger{})
	h.ruleSvc.now = clock
	h.devSvc = NewDeviceService(h.devices, h.authz, h.auditSvc, nopLogger{})
	h.devSvc.now = clock
	h.userSvc = NewUserService(h.users, h.roles, h.authz, h.auditSvc, nopLogger{})
	h.userSvc.now = clock
	h.roleSvc = NewRoleService(h.roles, h.users, h.authz, h.auditSvc, nopLogger{})
	h.roleSvc.now = clock
	return h
}
