package application

import (
	"context"
	"errors"

	"smart-factory/internal/domain"
	"smart-factory/internal/ids"
	"smart-factory/internal/ports"
)

// SeedBuiltinRoles makes sure the four system roles exist. Grants are only
// written for roles that have none yet, so edits made through the API
// survive a restart. Admin grants are always rewritten to the full catalog.
func SeedBuiltinRoles(ctx context.Context, repo ports.RoleRepository) error {
	grants, err := repo.ListGrants(ctx)
	if err != nil {
		return err
	}
	hasGrants := map[string]bool{}
	for _, g := range grants {
		hasGrants[g.RoleID] = true
	}
	for _, role := range domain.BuiltinRoles() {
		_, err := repo.GetByID(ctx, role.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			role.CreatedAt = utcNow()
			if err := repo.Create(ctx, role); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		if role.Name == domain.RoleAdmin || !hasGrants[role.ID] {
			if err := repo.SetGrants(ctx, role.ID, domain.BuiltinGrants(role.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// SeedAdminUser creates the bootstrap administrator if no user owns email.
func SeedAdminUser(ctx context.Context, users ports.UserRepository, email, name string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}
	if name == "" {
		name = "Administrator"
	}
	now := utcNow()
	user := domain.User{
		ID:        ids.New(ids.PrefixUser),
		Email:     email,
		Name:      name,
		RoleID:    "role_admin",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	if err := users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
