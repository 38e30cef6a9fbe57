package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

type UserService struct {
	repo   ports.UserRepository
	roles  ports.RoleRepository
	authz  *AuthorizationService
	audit  *AuditService
	logger ports.Logger
	now    func() time.Time
}

func NewUserService(repo ports.UserRepository, roles ports.RoleRepository, authz *AuthorizationService, audit *AuditService, logger ports.Logger) *UserService {
	return &UserService{repo: repo, roles: roles, authz: authz, audit: audit, logger: logger, now: utcNow}
}

func (s *UserService) List(ctx context.Context, actor domain.Actor, filter domain.UserFilter, page, pageSize int) (domain.Page[domain.User], error) {
	if err := s.authz.Require(actor, domain.ResourceUser, domain.ActionView); err != nil {
		return domain.Page[domain.User]{}, err
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	return domain.Paginate(users, page, pageSize), nil
}

func (s *UserService) Get(ctx context.Context, actor domain.Actor, userID string) (domain.User, error) {
	if err := s.authz.Require(actor, domain.ResourceUser, domain.ActionView); err != nil {
		return domain.User{}, err
	}
	if userID == "" {
		return domain.User{}, domain.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, userID)
}

type CreateUserInput struct {
	Email  string
	Name   string
	RoleID string
}

func (s *UserService) Create(ctx context.Context, actor domain.Actor, in CreateUserInput) (domain.User, error) {
	created, err := func() (domain.User, error) {
		if err := s.authz.Require(actor, domain.ResourceUser, domain.ActionCreate); err != nil {
			return domain.User{}, err
		}
		now := s.now()
		user := domain.User{
			ID:        ids.New(ids.PrefixUser),
			Email:     domain.NormalizeEmail(in.Email),
			Name:      strings.TrimSpace(in.Name),
			RoleID:    in.RoleID,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := user.Validate(); err != nil {
			return domain.User{}, err
		}
		if err := s.checkRole(ctx, user.RoleID); err != nil {
			return domain.User{}, err
		}
		if err := s.checkEmailFree(ctx, user.Email, ""); err != nil {
			return domain.User{}, err
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return domain.User{}, err
		}
		return user, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{
		Action:     domain.AuditCreate,
		Resource:   domain.ResourceUser,
		ResourceID: created.ID,
		Details:    map[string]any{"email": domain.NormalizeEmail(in.Email), "role_id": in.RoleID},
	}, err)
	return created, err
}

func (s *UserService) Update(ctx context.Context, actor domain.Actor, userID string, upd domain.UserUpdate) (domain.User, error) {
	updated, err := func() (domain.User, error) {
		if err := s.authz.Require(actor, domain.ResourceUser, domain.ActionUpdate); err != nil {
			return domain.User{}, err
		}
		if userID == "" {
			return domain.User{}, domain.ErrInvalidInput
		}
		current, err := s.repo.GetByID(ctx, userID)
		if err != nil {
			return domain.User{}, err
		}
		next := current.Apply(upd)
		if err := next.Validate(); err != nil {
			return domain.User{}, err
		}
		if next.RoleID != current.RoleID {
			if err := s.checkRole(ctx, next.RoleID); err != nil {
				return domain.User{}, err
			}
		}
		if next.Email != current.Email {
			if err := s.checkEmailFree(ctx, next.Email, current.ID); err != nil {
				return domain.User{}, err
			}
		}
		next.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, next); err != nil {
			return domain.User{}, err
		}
		return next, nil
	}()
	details := map[string]any{}
	if upd.RoleID != nil {
		details["role_id"] = *upd.RoleID
	}
	if upd.IsActive != nil {
		details["is_active"] = *upd.IsActive
	}
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditUpdate, Resource: domain.ResourceUser, ResourceID: userID, Details: details}, err)
	return updated, err
}

// Deactivate is the only way to remove a user; accounts are never deleted.
func (s *UserService) Deactivate(ctx context.Context, actor domain.Actor, userID string) (domain.User, error) {
	user, err := func() (domain.User, error) {
		if err := s.authz.Require(actor, domain.ResourceUser, domain.ActionDelete); err != nil {
			return domain.User{}, err
		}
		if userID == "" {
			return domain.User{}, domain.ErrInvalidInput
		}
		if userID == actor.UserID {
			return domain.User{}, fmt.Errorf("%w: cannot deactivate yourself", domain.ErrConflict)
		}
		user, err := s.repo.GetByID(ctx, userID)
		if err != nil {
			return domain.User{}, err
		}
		user.IsActive = false
		user.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, user); err != nil {
			return domain.User{}, err
		}
		return user, nil
	}()
	s.audit.RecordOutcome(ctx, actor, AuditEntry{Action: domain.AuditDelete, Resource: domain.ResourceUser, ResourceID: userID}, err)
	return user, err
}

func (s *UserService) checkRole(ctx context.Context, roleID string) error {
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, roleID)
		}
		return err
	}
	return nil
}

func (s *UserService) checkEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != ownerID:
		return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, email)
	}
	return nil
}
