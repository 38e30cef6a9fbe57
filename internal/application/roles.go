package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,31}$`)

type RoleService struct {
	repo   ports.RoleRepository
	users  ports.UserRepository
	authz  *AuthorizationService
	audit  *AuditService
	logger ports.Logger
	now    func() time.Time
}

func NewRoleService(repo ports.RoleRepository, users ports.UserRepository, authz *AuthorizationService, audit *AuditService, logger ports.Logger) *RoleService {
	return &RoleService{repo: repo, users: users, authz: authz, audit: audit, logger: logger, now: utcNow}
}

func (s *RoleService) List(ctx context.Context, actor domain.Actor) ([]domain.Role, error) {
	if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *RoleService) Get(ctx context.Context, actor domain.Actor, roleID string) (domain.Role, error) {
	if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionView); err != nil {
		return domain.Role{}, err
	}
	if roleID == "" {
		return domain.Role{}, domain.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, roleID)
}

func (s *RoleService) Catalog(actor domain.Actor) ([]domain.Permission, error) {
	if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionView); err != nil {
		return nil, err
	}
	return domain.Catalog(), nil
}

type RoleGrants struct {
	Role        domain.Role `json:"role"`
	Permissions []string    `json:"permissions"`
}

type RoleMatrix struct {
	Permissions []domain.Permission `json:"permissions"`
	Roles       []RoleGrants        `json:"roles"`
}

// Matrix is the role x permission grid as currently enforced.
func (s *RoleService) Matrix(ctx context.Context, actor domain.Actor) (RoleMatrix, error) {
	roles, err := s.List(ctx, actor)
	if err != nil {
		return RoleMatrix{}, err
	}
	policy := s.authz.Policy()
	out := RoleMatrix{Permissions: domain.Catalog(), Roles: make([]RoleGrants, 0, len(roles))}
	for _, role := range roles {
		out.Roles = append(out.Roles, RoleGrants{Role: role, Permissions: policy.Permissions(role.Name)})
	}
	return out, nil
}

func (s *RoleService) Permissions(ctx context.Context, actor domain.Actor, roleID string) ([]string, error) {
	role, err := s.Get(ctx, actor, roleID)
	if err != nil {
		return nil, err
	}
	return s.authz.Policy().Permissions(role.Name), nil
}

type CreateRoleInput struct {
	Name        string
	DisplayName string
	Description string
	Permissions []string
}

func (s *RoleService) Create(ctx context.Context, actor domain.Actor, in CreateRoleInput) (domain.Role, error) {
	created, err := func() (domain.Role, error) {
		if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionCreate); err != nil {
			return domain.Role{}, err
		}
		name := strings.ToLower(strings.TrimSpace(in.Name))
		if !roleNamePattern.MatchString(name) {
			return domain.Role{}, fmt.Errorf("%w: role name must be 2-32 lower-case letters, digits or underscores", domain.ErrInvalidInput)
		}
		keys, err := validPermissionKeys(in.Permissions)
		if err != nil {
			return domain.Role{}, err
		}
		if _, err := s.repo.GetByName(ctx, domain.RoleName(name)); err == nil {
			return domain.Role{}, fmt.Errorf("%w: role %s already exists", domain.ErrConflict, name)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Role{}, err
		}
		role := domain.Role{
			ID:          ids.New(ids.PrefixRole),
			Name:        domain.RoleName(name),
			DisplayName: strings.TrimSpace(in.DisplayName),
			Description: strings.TrimSpace(in.Description),
			CreatedAt:   s.now(),
		}
		if role.DisplayName == "" {
			role.DisplayName = name
		}
		if err := s.repo.Create(ctx, role); err != nil {
			return domain.Role{}, err
		}
		if err := s.repo.SetGrants(ctx, role.ID, keys); err != nil {
			return domain.Role{}, err
		}
		return role, s.authz.Refresh(ctx)
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditCreate,
		Resource:   domain.ResourceRole,
		ResourceID: created.ID,
		Details:    map[string]any{"name": in.Name, "permissions": in.Permissions},
	}, err)
	return created, err
}

type UpdateRoleInput struct {
	DisplayName *string
	Description *string
}

// Update edits display text only; names and the system flag are immutable.
func (s *RoleService) Update(ctx context.Context, actor domain.Actor, roleID string, in UpdateRoleInput) (domain.Role, error) {
	updated, err := func() (domain.Role, error) {
		if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionUpdate); err != nil {
			return domain.Role{}, err
		}
		role, err := s.repo.GetByID(ctx, roleID)
		if err != nil {
			return domain.Role{}, err
		}
		if in.DisplayName != nil {
			if strings.TrimSpace(*in.DisplayName) == "" {
				return domain.Role{}, fmt.Errorf("%w: display_name cannot be empty", domain.ErrInvalidInput)
			}
			role.DisplayName = strings.TrimSpace(*in.DisplayName)
		}
		if in.Description != nil {
			role.Description = strings.TrimSpace(*in.Description)
		}
		if err := s.repo.Update(ctx, role); err != nil {
			return domain.Role{}, err
		}
		return role, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditUpdate, Resource: domain.ResourceRole, ResourceID: roleID}, err)
	return updated, err
}

func (s *RoleService) Delete(ctx context.Context, actor domain.Actor, roleID string) error {
	err := func() error {
		if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionDelete); err != nil {
			return err
		}
		role, err := s.repo.GetByID(ctx, roleID)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return fmt.Errorf("%w: system role %s cannot be deleted", domain.ErrConflict, role.Name)
		}
		assigned, err := s.users.List(ctx, domain.UserFilter{RoleID: roleID})
		if err != nil {
			return err
		}
		if len(assigned) > 0 {
			return fmt.Errorf("%w: role %s is assigned to %d users", domain.ErrConflict, role.Name, len(assigned))
		}
		if err := s.repo.Delete(ctx, roleID); err != nil {
			return err
		}
		return s.authz.Refresh(ctx)
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditDelete, Resource: domain.ResourceRole, ResourceID: roleID}, err)
	return err
}

// SetPermissions replaces a role's grants. The administrator role always
// holds the full catalog and cannot be edited.
func (s *RoleService) SetPermissions(ctx context.Context, actor domain.Actor, roleID string, permissionIDs []string) ([]string, error) {
	granted, err := func() ([]string, error) {
		if err := s.authz.Require(actor, domain.ResourceRole, domain.ActionUpdate); err != nil {
			return nil, err
		}
		role, err := s.repo.GetByID(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if role.Name == domain.RoleAdmin {
			return nil, fmt.Errorf("%w: administrator permissions are fixed", domain.ErrConflict)
		}
		keys, err := validPermissionKeys(permissionIDs)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetGrants(ctx, role.ID, keys); err != nil {
			return nil, err
		}
		if err := s.authz.Refresh(ctx); err != nil {
			return nil, err
		}
		return s.authz.Policy().Permissions(role.Name), nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditConfigure,
		Resource:   domain.ResourceRole,
		ResourceID: roleID,
		Details:    map[string]any{"permissions": permissionIDs},
	}, err)
	return granted, err
}

func validPermissionKeys(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		res, act, ok := domain.ParsePermissionKey(key)
		if !ok || !domain.InCatalog(res, act) {
			return nil, fmt.Errorf("%w: unknown permission %q", domain.ErrInvalidInput, key)
		}
		id := domain.PermissionKey(res, act)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
