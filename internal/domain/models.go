package domain

import (
	"time"
)

type Role struct {
	ID          string    `json:"id"`
	Name        RoleName  `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// BuiltinRoles are seeded at startup and can never be deleted.
func BuiltinRoles() []Role {
	return []Role{
		{ID: "role_admin", Name: RoleAdmin, DisplayName: "Administrator", Description: "Full system access with all privileges", IsSystem: true},
		{ID: "role_manager", Name: RoleManager, DisplayName: "Manager", Description: "Can view all data, manage devices and alerts, limited user management", IsSystem: true},
		{ID: "role_operator", Name: RoleOperator, DisplayName: "Operator", Description: "Can view devices, send commands, and acknowledge alerts", IsSystem: true},
		{ID: "role_guest", Name: RoleGuest, DisplayName: "Guest", Description: "Read-only access to dashboards and monitoring", IsSystem: true},
	}
}

type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page to >= 1 and pageSize to [1, MaxPageSize].
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Paginate slices items for a 1-based page. Out of range pages are empty.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	start := (page - 1) * pageSize
	if start > total || start < 0 {
		start = total
	}
	end := min(start+pageSize, total)
	return Page[T]{Data: append([]T{}, items[start:end]...), Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}
