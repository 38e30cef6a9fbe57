package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"smart-factory/internal/domain"
)

func TestDeviceService_SendCommandStartsDevice(t *testing.T) {
	h := newHarness()
	h.devices.On("GetByID", mock.Anything, "dev-1").Return(domain.Device{ID: "dev-1", Name: "Conveyor A", Status: domain.DeviceOffline}, nil)
	h.devices.On("AppendCommand", mock.Anything, mock.MatchedBy(func(c domain.DeviceCommand) bool {
		return c.Command == "start" && c.SentBy == "usr-1" && c.Status == domain.CommandAcknowledged && c.RespondedAt != nil
	})).Return(nil)
	h.devices.On("Update", mock.Anything, mock.MatchedBy(func(d domain.Device) bool {
		return d.Status == domain.DeviceOnline && d.LastSeen.Equal(fixedNow)
	})).Return(nil)

	cmd, err := h.devSvc.SendCommand(context.Background(), actorWith(domain.RoleOperator, "usr-1"), "dev-1", " start ", nil)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", cmd.DeviceID)
	assert.NotNil(t, cmd.Params)
	h.devices.AssertExpectations(t)

	entry := h.audit.last()
	assert.Equal(t, domain.AuditControl, entry.Action)
	assert.Equal(t, "start", entry.Details["command"])
}

func TestDeviceService_GuestCannotControl(t *testing.T) {
	h := newHarness()
	_, err := h.devSvc.SendCommand(context.Background(), actorWith(domain.RoleGuest, "usr-4"), "dev-1", "stop", nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	h.devices.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Equal(t, domain.AuditFailure, h.audit.last().Result)
}

func TestDeviceService_OperatorCannotDelete(t *testing.T) {
	h := newHarness()
	err := h.devSvc.Delete(context.Background(), actorWith(domain.RoleOperator, "usr-1"), "dev-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	h.devices.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeviceService_Create(t *testing.T) {
	h := newHarness()
	h.devices.On("Create", mock.Anything, mock.MatchedBy(func(d domain.Device) bool {
		return d.ID != "" && d.Status == domain.DeviceOffline && d.Metadata != nil && d.CreatedAt.Equal(fixedNow)
	})).Return(nil)

	d, err := h.devSvc.Create(context.Background(), actorWith(domain.RoleAdmin, "usr-1"), domain.Device{Name: " Robot 7 ", Type: domain.DeviceRobotArm, Zone: "Assembly"})
	require.NoError(t, err)
	assert.Equal(t, "Robot 7", d.Name)
	assert.Equal(t, d.ID, h.audit.last().ResourceID)
}

func TestDeviceService_CreateInvalidType(t *testing.T) {
	h := newHarness()
	_, err := h.devSvc.Create(context.Background(), actorWith(domain.RoleAdmin, "usr-1"), domain.Device{Name: "PLC", Type: "plc", Zone: "A"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeviceService_Update(t *testing.T) {
	h := newHarness()
	h.devices.On("GetByID", mock.Anything, "dev-1").Return(domain.Device{ID: "dev-1", Name: "A", Type: domain.DeviceConveyor, Zone: "Z1", Status: domain.DeviceOnline}, nil)
	h.devices.On("Update", mock.Anything, mock.MatchedBy(func(d domain.Device) bool { return d.Zone == "Z2" })).Return(nil)

	zone := "Z2"
	d, err := h.devSvc.Update(context.Background(), actorWith(domain.RoleAdmin, "usr-1"), "dev-1", domain.DeviceUpdate{Zone: &zone})
	require.NoError(t, err)
	assert.Equal(t, "Z2", d.Zone)
}

func TestDeviceService_StatusCounts(t *testing.T) {
	h := newHarness()
	h.devices.On("List", mock.Anything, domain.DeviceFilter{}).Return([]domain.Device{
		{Status: domain.DeviceOnline}, {Status: domain.DeviceOnline}, {Status: domain.DeviceError},
	}, nil)

	counts, err := h.devSvc.StatusCounts(context.Background(), actorWith(domain.RoleGuest, "usr-4"))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.DeviceOnline])
	assert.Equal(t, 0, counts[domain.DeviceMaintenance])
	assert.Len(t, counts, 4)
}

func TestDeviceService_Commands(t *testing.T) {
	h := newHarness()
	h.devices.On("GetByID", mock.Anything, "dev-1").Return(domain.Device{ID: "dev-1"}, nil)
	h.devices.On("ListCommands", mock.Anything, "dev-1").Return([]domain.DeviceCommand{{ID: "cmd-1"}}, nil)

	cmds, err := h.devSvc.Commands(context.Background(), actorWith(domain.RoleGuest, "usr-4"), "dev-1")
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
}
