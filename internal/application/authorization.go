package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"smart-factory/internal/domain"
	"smart-factory/internal/ports"
)

// Identity is what the authentication layer knows about a caller before it
// is mapped onto a stored user.
type Identity struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
}

type Access struct {
	Role        domain.RoleName   `json:"role"`
	Resources   []domain.Resource `json:"resources"`
	Permissions []string          `json:"permissions"`
}

// AuthorizationService answers permission questions against an immutable
// policy snapshot. Refresh swaps the snapshot atomically, so checks never
// take a lock. ResolveActor refreshes it once per request.
type AuthorizationService struct {
	roles  ports.RoleRepository
	users  ports.UserRepository
	logger ports.Logger
	policy atomic.Pointer[policySnapshot]
	reads  atomic.Uint64
}

// policySnapshot tags a policy with the refresh that read it. A refresh that
// started earlier never replaces one that started later.
type policySnapshot struct {
	policy *domain.Policy
	seq    uint64
}

func NewAuthorizationService(roles ports.RoleRepository, users ports.UserRepository, logger ports.Logger) *AuthorizationService {
	s := &AuthorizationService{roles: roles, users: users, logger: logger}
	s.policy.Store(&policySnapshot{policy: domain.DefaultPolicy()})
	return s
}

func (s *AuthorizationService) Policy() *domain.Policy {
	return s.policy.Load().policy
}

func (s *AuthorizationService) Refresh(ctx context.Context) error {
	seq := s.reads.Add(1)
	roles, err := s.roles.List(ctx)
	if err != nil {
		return err
	}
	grants, err := s.roles.ListGrants(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]domain.RoleName, len(roles))
	table := make(map[domain.RoleName][]string, len(roles))
	for _, role := range roles {
		names[role.ID] = role.Name
		table[role.Name] = nil
	}
	for _, g := range grants {
		name, ok := names[g.RoleID]
		if !ok {
			continue
		}
		table[name] = append(table[name], g.PermissionID)
	}
	next := &policySnapshot{policy: domain.NewPolicy(table), seq: seq}
	for {
		cur := s.policy.Load()
		if cur.seq > seq || s.policy.CompareAndSwap(cur, next) {
			break
		}
	}
	s.logger.Debug(ctx, "authorization policy refreshed", "roles", len(roles), "grants", len(grants))
	return nil
}

func (s *AuthorizationService) Can(actor domain.Actor, resource domain.Resource, action domain.Action) bool {
	return s.Policy().CheckPermission(actor.Role, resource, action)
}

func (s *AuthorizationService) Require(actor domain.Actor, resource domain.Resource, action domain.Action) error {
	if s.Can(actor, resource, action) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrForbidden, domain.PermissionKey(resource, action))
}

// ResolveActor maps an authenticated identity to an Actor through the user's
// role and reloads the policy from the role repository, so a request is
// checked against the grants stored when it arrived. Inactive users and
// dangling role references resolve to an actor with no role, which every
// check denies.
func (s *AuthorizationService) ResolveActor(ctx context.Context, id Identity) (domain.Actor, error) {
	if id.UserID == "" && id.Email == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	user, err := s.lookupUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Actor{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthenticated)
		}
		return domain.Actor{}, err
	}
	actor := domain.Actor{UserID: user.ID, UserName: user.Name, IPAddress: id.IPAddress, UserAgent: id.UserAgent}
	if !user.IsActive {
		return actor, nil
	}
	role, err := s.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn(ctx, "user references missing role", "user_id", user.ID, "role_id", user.RoleID)
			return actor, nil
		}
		return domain.Actor{}, err
	}
	// Grants may have changed through another instance sharing the store.
	if err := s.Refresh(ctx); err != nil {
		return domain.Actor{}, fmt.Errorf("reload authorization policy: %w", err)
	}
	actor.Role = role.Name
	return actor, nil
}

func (s *AuthorizationService) lookupUser(ctx context.Context, id Identity) (domain.User, error) {
	if id.UserID != "" {
		user, err := s.users.GetByID(ctx, id.UserID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) || id.Email == "" {
			return user, err
		}
	}
	return s.users.GetByEmail(ctx, domain.NormalizeEmail(id.Email))
}

func (s *AuthorizationService) AccessFor(role domain.RoleName) Access {
	p := s.Policy()
	return Access{Role: role, Resources: p.AccessibleResources(role), Permissions: p.Permissions(role)}
}
