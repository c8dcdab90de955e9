// Package iam owns the locally stored access-control entities:
// permissions, role assignments and policies. Directory users and
// groups live remotely and are reached through internal/directory.
package iam

import (
	"context"
	"encoding/json"
	"time"
)

// Permission is a named grant that roles can carry.
type Permission struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleAssignment links a role to a permission.
type RoleAssignment struct {
	RoleID         string    `json:"role_id"`
	PermissionName string    `json:"permission_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Policy is a named document evaluated by downstream enforcement.
// The service stores and versions it; evaluation happens elsewhere.
type Policy struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListOptions bound a listing. Zero Limit means the store default.
type ListOptions struct {
	Limit  int
	Offset int
}

// PermissionStore persists permissions.
type PermissionStore interface {
	Create(ctx context.Context, p Permission) (Permission, error)
	FindByName(ctx context.Context, name string) (Permission, error)
	List(ctx context.Context, opts ListOptions) ([]Permission, error)
	Update(ctx context.Context, p Permission) (Permission, error)
	// Delete removes the permission and reports whether it existed.
	// Absence is not an error at this layer.
	Delete(ctx context.Context, name string) (bool, error)
}

// AssignmentStore persists role-to-permission links.
type AssignmentStore interface {
	Assign(ctx context.Context, roleID, permissionName string) error
	Remove(ctx context.Context, roleID, permissionName string) error
	// RemoveAllForPermission deletes every assignment referencing the
	// permission and returns how many were removed.
	RemoveAllForPermission(ctx context.Context, permissionName string) (int, error)
	RolesForPermission(ctx context.Context, permissionName string) ([]string, error)
	ListForRole(ctx context.Context, roleID string) ([]RoleAssignment, error)
}

// PolicyStore persists policies.
type PolicyStore interface {
	Create(ctx context.Context, p Policy) (Policy, error)
	FindByName(ctx context.Context, name string) (Policy, error)
	List(ctx context.Context, opts ListOptions) ([]Policy, error)
	Update(ctx context.Context, p Policy) (Policy, error)
	Delete(ctx context.Context, name string) (bool, error)
}
