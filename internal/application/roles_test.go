package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"smart-factory/internal/domain"
)

func TestRoleService_SetPermissionsRefreshesPolicy(t *testing.T) {
	h := newHarness()
	roles := []domain.Role{{ID: "role_admin", Name: domain.RoleAdmin}, {ID: "role_operator", Name: domain.RoleOperator}}
	h.roles.On("GetByID", mock.Anything, "role_operator").Return(roles[1], nil)
	h.roles.On("SetGrants", mock.Anything, "role_operator", []string{"alert:view", "alert:resolve"}).Return(nil)
	h.roles.On("List", mock.Anything).Return(roles, nil)
	h.roles.On("ListGrants", mock.Anything).Return([]domain.RolePermission{
		{RoleID: "role_operator", PermissionID: "alert:view"},
		{RoleID: "role_operator", PermissionID: "alert:resolve"},
	}, nil)

	operator := actorWith(domain.RoleOperator, "usr-1")
	assert.False(t, h.authz.Can(operator, domain.ResourceAlert, domain.ActionResolve))

	granted, err := h.roleSvc.SetPermissions(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), "role_operator", []string{"alert:view", "alert:resolve", "alert:view"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alert:view", "alert:resolve"}, granted)
	assert.True(t, h.authz.Can(operator, domain.ResourceAlert, domain.ActionResolve))
	assert.Equal(t, domain.AuditConfigure, h.audit.last().Action)
}

func TestRoleService_SetPermissionsRejectsUnknownKeys(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByID", mock.Anything, "role_guest").Return(domain.Role{ID: "role_guest", Name: domain.RoleGuest}, nil)

	_, err := h.roleSvc.SetPermissions(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), "role_guest", []string{"reactor:meltdown"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	h.roles.AssertNotCalled(t, "SetGrants", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoleService_AdminGrantsAreFixed(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByID", mock.Anything, "role_admin").Return(domain.Role{ID: "role_admin", Name: domain.RoleAdmin, IsSystem: true}, nil)

	_, err := h.roleSvc.SetPermissions(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), "role_admin", nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRoleService_ManagerCannotEditGrants(t *testing.T) {
	h := newHarness()
	_, err := h.roleSvc.SetPermissions(context.Background(), actorWith(domain.RoleManager, "usr-2"), "role_operator", []string{"alert:view"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.AuditFailure, h.audit.last().Result)
}

func TestRoleService_DeleteSystemRole(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByID", mock.Anything, "role_guest").Return(domain.Role{ID: "role_guest", Name: domain.RoleGuest, IsSystem: true}, nil)

	err := h.roleSvc.Delete(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), "role_guest")
	assert.ErrorIs(t, err, domain.ErrConflict)
	h.roles.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRoleService_DeleteAssignedRole(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByID", mock.Anything, "role_x").Return(domain.Role{ID: "role_x", Name: "shift_lead"}, nil)
	h.users.On("List", mock.Anything, domain.UserFilter{RoleID: "role_x"}).Return([]domain.User{{ID: "usr-7"}}, nil)

	err := h.roleSvc.Delete(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), "role_x")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRoleService_Create(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByName", mock.Anything, domain.RoleName("shift_lead")).Return(domain.Role{}, domain.ErrNotFound)
	h.roles.On("Create", mock.Anything, mock.MatchedBy(func(r domain.Role) bool {
		return r.Name == "shift_lead" && !r.IsSystem && r.DisplayName == "Shift lead"
	})).Return(nil)
	h.roles.On("SetGrants", mock.Anything, mock.Anything, []string{"device:view"}).Return(nil)
	h.roles.On("List", mock.Anything).Return([]domain.Role{{ID: "role_x", Name: "shift_lead"}}, nil)
	h.roles.On("ListGrants", mock.Anything).Return([]domain.RolePermission{{RoleID: "role_x", PermissionID: "device:view"}}, nil)

	role, err := h.roleSvc.Create(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), CreateRoleInput{Name: "Shift_Lead", DisplayName: "Shift lead", Permissions: []string{"device:view"}})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleName("shift_lead"), role.Name)
	assert.True(t, h.authz.Can(actorWith("shift_lead", "u"), domain.ResourceDevice, domain.ActionView))
}

func TestRoleService_CreateDuplicateName(t *testing.T) {
	h := newHarness()
	h.roles.On("GetByName", mock.Anything, domain.RoleManager).Return(domain.Role{ID: "role_manager"}, nil)

	_, err := h.roleSvc.Create(context.Background(), actorWith(domain.RoleAdmin, "usr-0"), CreateRoleInput{Name: "manager"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRoleService_Matrix(t *testing.T) {
	h := newHarness()
	h.roles.On("List", mock.Anything).Return(domain.BuiltinRoles(), nil)

	m, err := h.roleSvc.Matrix(context.Background(), actorWith(domain.RoleGuest, "usr-4"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	m, err = h.roleSvc.Matrix(context.Background(), actorWith(domain.RoleManager, "usr-2"))
	require.NoError(t, err)
	require.Len(t, m.Roles, 4)
	assert.Len(t, m.Roles[0].Permissions, len(domain.Catalog()))
	assert.Equal(t, domain.BuiltinGrants(domain.RoleGuest), m.Roles[3].Permissions)
}

func TestSeedBuiltinRoles(t *testing.T) {
	repo := new(roleRepoMock)
	repo.On("ListGrants", mock.Anything).Return([]domain.RolePermission{{RoleID: "role_manager", PermissionID: "alert:view"}}, nil)
	repo.On("GetByID", mock.Anything, "role_admin").Return(domain.Role{ID: "role_admin"}, nil)
	repo.On("GetByID", mock.Anything, "role_manager").Return(domain.Role{ID: "role_manager"}, nil)
	repo.On("GetByID", mock.Anything, mock.Anything).Return(domain.Role{}, domain.ErrNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetGrants", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, SeedBuiltinRoles(context.Background(), repo))

	repo.AssertNumberOfCalls(t, "Create", 2)
	repo.AssertCalled(t, "SetGrants", mock.Anything, "role_admin", domain.BuiltinGrants(domain.RoleAdmin))
	repo.AssertCalled(t, "SetGrants", mock.Anything, "role_guest", domain.BuiltinGrants(domain.RoleGuest))
	repo.AssertNotCalled(t, "SetGrants", mock.Anything, "role_manager", mock.Anything)
}

func TestSeedAdminUser(t *testing.T) {
	users := new(userRepoMock)
	users.On("GetByEmail", mock.Anything, "root@factory.io").Return(domain.User{}, domain.ErrNotFound).Once()
	users.On("Create", mock.Anything, mock.MatchedBy(func(u domain.User) bool {
		return u.RoleID == "role_admin" && u.IsActive && u.Name == "Administrator"
	})).Return(nil).Once()

	u, err := SeedAdminUser(context.Background(), users, "Root@Factory.io", "")
	require.NoError(t, err)
	assert.Equal(t, "root@factory.io", u.Email)

	users.On("GetByEmail", mock.Anything, "root@factory.io").Return(u, nil).Once()
	again, err := SeedAdminUser(context.Background(), users, "root@factory.io", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	users.AssertExpectations(t)
}
