package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	RoleID       string    `json:"role_id"`
	IsActive     bool      `json:"is_active"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email != NormalizeEmail(u.Email) {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, u.Email)
	}
	if u.RoleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return nil
}

type UserFilter struct {
	RoleID     string
	ActiveOnly bool
	Search     string
}

func (f UserFilter) Match(u User) bool {
	if f.RoleID != "" && u.RoleID != f.RoleID {
		return false
	}
	if f.ActiveOnly && !u.IsActive {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Name), s) && !strings.Contains(u.Email, s) {
			return false
		}
	}
	return true
}

type UserUpdate struct {
	Name     *string
	Email    *string
	RoleID   *string
	IsActive *bool
}

func (u User) Apply(upd UserUpdate) User {
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		u.Email = NormalizeEmail(*upd.Email)
	}
	if upd.RoleID != nil {
		u.RoleID = *upd.RoleID
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	return u
}
