package iam

import (
	"context"
	"strings"
	"time"

	"idgate.org/internal/apperr"
	"idgate.org/internal/auth"
	"idgate.org/internal/directory"
	"idgate.org/internal/ids"
)

// CapabilityCheck decides whether the caller may perform an operation
// gated by the named capability. The default consults the roles in the
// request context.
type CapabilityCheck func(ctx context.Context, capability string) bool

func orDefault(check CapabilityCheck) CapabilityCheck {
	if check != nil {
		return check
	}
	return auth.Allowed
}

func denied(op string) error {
	return apperr.New(apperr.KindAuthorization, op, "caller lacks the required capability")
}

// UserAdminService fronts the directory adapter with capability checks.
// It holds no state of its own; user and group truth stays remote.
type UserAdminService struct {
	dir   *directory.Adapter
	check CapabilityCheck
}

// NewUserAdminService builds the user/group admin surface. A nil check
// falls back to the role-based capability model.
func NewUserAdminService(dir *directory.Adapter, check CapabilityCheck) *UserAdminService {
	return &UserAdminService{dir: dir, check: orDefault(check)}
}

func (s *UserAdminService) CreateUser(ctx context.Context, in directory.CreateUserInput) (directory.User, error) {
	if !s.check(ctx, auth.CapManageUsers) {
		return directory.User{}, denied("iam.CreateUser")
	}
	return s.dir.CreateUser(ctx, in)
}

func (s *UserAdminService) GetUser(ctx context.Context, username string) (*directory.User, error) {
	if !s.check(ctx, auth.CapManageUsers) {
		return nil, denied("iam.GetUser")
	}
	return s.dir.GetUser(ctx, username)
}

func (s *UserAdminService) UpdateUserAttributes(ctx context.Context, username string, attrs map[string]string) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.UpdateUserAttributes")
	}
	return s.dir.UpdateUserAttributes(ctx, username, attrs)
}

func (s *UserAdminService) DeleteUser(ctx context.Context, username string) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.DeleteUser")
	}
	return s.dir.DeleteUser(ctx, username)
}

func (s *UserAdminService) EnableUser(ctx context.Context, username string) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.EnableUser")
	}
	return s.dir.EnableUser(ctx, username)
}

func (s *UserAdminService) DisableUser(ctx context.Context, username string) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.DisableUser")
	}
	return s.dir.DisableUser(ctx, username)
}

func (s *UserAdminService) ResetUserPassword(ctx context.Context, username string) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.ResetUserPassword")
	}
	return s.dir.ResetUserPassword(ctx, username)
}

func (s *UserAdminService) SetUserPassword(ctx context.Context, username, password string, permanent bool) error {
	if !s.check(ctx, auth.CapManageUsers) {
		return denied("iam.SetUserPassword")
	}
	return s.dir.SetUserPassword(ctx, username, password, permanent)
}

func (s *UserAdminService) ListUsers(ctx context.Context, page directory.Page) (directory.UserPage, error) {
	if !s.check(ctx, auth.CapManageUsers) {
		return directory.UserPage{}, denied("iam.ListUsers")
	}
	return s.dir.ListUsers(ctx, page)
}

func (s *UserAdminService) CreateGroup(ctx context.Context, in directory.CreateGroupInput) (directory.Group, error) {
	if !s.check(ctx, auth.CapManageGroups) {
		return directory.Group{}, denied("iam.CreateGroup")
	}
	return s.dir.CreateGroup(ctx, in)
}

func (s *UserAdminService) GetGroup(ctx context.Context, name string) (*directory.Group, error) {
	if !s.check(ctx, auth.CapManageGroups) {
		return nil, denied("iam.GetGroup")
	}
	return s.dir.GetGroup(ctx, name)
}

func (s *UserAdminService) DeleteGroup(ctx context.Context, name string) error {
	if !s.check(ctx, auth.CapManageGroups) {
		return denied("iam.DeleteGroup")
	}
	return s.dir.DeleteGroup(ctx, name)
}

func (s *UserAdminService) ListGroups(ctx context.Context, page directory.Page) (directory.GroupPage, error) {
	if !s.check(ctx, auth.CapManageGroups) {
		return directory.GroupPage{}, denied("iam.ListGroups")
	}
	return s.dir.ListGroups(ctx, page)
}

func (s *UserAdminService) AddUserToGroup(ctx context.Context, username, group string) error {
	if !s.check(ctx, auth.CapManageGroups) {
		return denied("iam.AddUserToGroup")
	}
	return s.dir.AddUserToGroup(ctx, username, group)
}

func (s *UserAdminService) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	if !s.check(ctx, auth.CapManageGroups) {
		return denied("iam.RemoveUserFromGroup")
	}
	return s.dir.RemoveUserFromGroup(ctx, username, group)
}

func (s *UserAdminService) ListGroupsForUser(ctx context.Context, username string, page directory.Page) (directory.GroupPage, error) {
	if !s.check(ctx, auth.CapManageGroups) {
		return directory.GroupPage{}, denied("iam.ListGroupsForUser")
	}
	return s.dir.ListGroupsForUser(ctx, username, page)
}

// PermissionAdminService manages permissions and role assignments.
type PermissionAdminService struct {
	perms   PermissionStore
	assigns AssignmentStore
	cascade *Cascade
	check   CapabilityCheck
	now     func() time.Time
}

// NewPermissionAdminService builds the permission admin surface.
func NewPermissionAdminService(perms PermissionStore, assigns AssignmentStore, check CapabilityCheck) *PermissionAdminService {
	return &PermissionAdminService{
		perms:   perms,
		assigns: assigns,
		cascade: NewCascade(perms, assigns),
		check:   orDefault(check),
		now:     time.Now,
	}
}

func (s *PermissionAdminService) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	const op = "iam.CreatePermission"
	if !s.check(ctx, auth.CapManagePermissions) {
		return Permission{}, denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, apperr.New(apperr.KindValidation, op, "permission name is required")
	}
	ts := s.now().UTC()
	return s.perms.Create(ctx, Permission{
		Name:        name,
		Description: strings.TrimSpace(description),
		Version:     1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
}

func (s *PermissionAdminService) GetPermission(ctx context.Context, name string) (Permission, error) {
	const op = "iam.GetPermission"
	if !s.check(ctx, auth.CapManagePermissions) {
		return Permission{}, denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, apperr.New(apperr.KindValidation, op, "permission name is required")
	}
	return s.perms.FindByName(ctx, name)
}

func (s *PermissionAdminService) ListPermissions(ctx context.Context, opts ListOptions) ([]Permission, error) {
	if !s.check(ctx, auth.CapManagePermissions) {
		return nil, denied("iam.ListPermissions")
	}
	return s.perms.List(ctx, opts)
}

func (s *PermissionAdminService) UpdatePermission(ctx context.Context, name, description string) (Permission, error) {
	const op = "iam.UpdatePermission"
	if !s.check(ctx, auth.CapManagePermissions) {
		return Permission{}, denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, apperr.New(apperr.KindValidation, op, "permission name is required")
	}
	current, err := s.perms.FindByName(ctx, name)
	if err != nil {
		return Permission{}, err
	}
	current.Description = strings.TrimSpace(description)
	current.Version++
	current.UpdatedAt = s.now().UTC()
	return s.perms.Update(ctx, current)
}

// DeletePermission runs the delete cascade; see Cascade.DeletePermission
// for the outcome contract.
func (s *PermissionAdminService) DeletePermission(ctx context.Context, name string) error {
	if !s.check(ctx, auth.CapManagePermissions) {
		return denied("iam.DeletePermission")
	}
	return s.cascade.DeletePermission(ctx, name)
}

func (s *PermissionAdminService) AssignToRole(ctx context.Context, roleID, permissionName string) error {
	const op = "iam.AssignToRole"
	if !s.check(ctx, auth.CapManagePermissions) {
		return denied(op)
	}
	roleID = strings.TrimSpace(roleID)
	permissionName = strings.TrimSpace(permissionName)
	if roleID == "" || permissionName == "" {
		return apperr.New(apperr.KindValidation, op, "role id and permission name are required")
	}
	// Assigning an unknown permission is a caller error, not a dangling
	// reference waiting to happen.
	if _, err := s.perms.FindByName(ctx, permissionName); err != nil {
		return err
	}
	return s.assigns.Assign(ctx, roleID, permissionName)
}

func (s *PermissionAdminService) RemoveFromRole(ctx context.Context, roleID, permissionName string) error {
	const op = "iam.RemoveFromRole"
	if !s.check(ctx, auth.CapManagePermissions) {
		return denied(op)
	}
	roleID = strings.TrimSpace(roleID)
	permissionName = strings.TrimSpace(permissionName)
	if roleID == "" || permissionName == "" {
		return apperr.New(apperr.KindValidation, op, "role id and permission name are required")
	}
	return s.assigns.Remove(ctx, roleID, permissionName)
}

func (s *PermissionAdminService) ListForRole(ctx context.Context, roleID string) ([]RoleAssignment, error) {
	const op = "iam.ListForRole"
	if !s.check(ctx, auth.CapManagePermissions) {
		return nil, denied(op)
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "role id is required")
	}
	return s.assigns.ListForRole(ctx, roleID)
}

func (s *PermissionAdminService) RolesForPermission(ctx context.Context, permissionName string) ([]string, error) {
	const op = "iam.RolesForPermission"
	if !s.check(ctx, auth.CapManagePermissions) {
		return nil, denied(op)
	}
	permissionName = strings.TrimSpace(permissionName)
	if permissionName == "" {
		return nil, apperr.New(apperr.KindValidation, op, "permission name is required")
	}
	return s.assigns.RolesForPermission(ctx, permissionName)
}

// PolicyAdminService manages policy documents.
type PolicyAdminService struct {
	policies PolicyStore
	check    CapabilityCheck
	now      func() time.Time
}

// NewPolicyAdminService builds the policy admin surface.
func NewPolicyAdminService(policies PolicyStore, check CapabilityCheck) *PolicyAdminService {
	return &PolicyAdminService{policies: policies, check: orDefault(check), now: time.Now}
}

func (s *PolicyAdminService) CreatePolicy(ctx context.Context, p Policy) (Policy, error) {
	const op = "iam.CreatePolicy"
	if !s.check(ctx, auth.CapManagePolicies) {
		return Policy{}, denied(op)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Policy{}, apperr.New(apperr.KindValidation, op, "policy name is required")
	}
	if len(p.Document) == 0 {
		return Policy{}, apperr.New(apperr.KindValidation, op, "policy document is required")
	}
	ts := s.now().UTC()
	p.ID = ids.New()
	p.Version = 1
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return s.policies.Create(ctx, p)
}

func (s *PolicyAdminService) GetPolicy(ctx context.Context, name string) (Policy, error) {
	const op = "iam.GetPolicy"
	if !s.check(ctx, auth.CapManagePolicies) {
		return Policy{}, denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Policy{}, apperr.New(apperr.KindValidation, op, "policy name is required")
	}
	return s.policies.FindByName(ctx, name)
}

func (s *PolicyAdminService) ListPolicies(ctx context.Context, opts ListOptions) ([]Policy, error) {
	if !s.check(ctx, auth.CapManagePolicies) {
		return nil, denied("iam.ListPolicies")
	}
	return s.policies.List(ctx, opts)
}

func (s *PolicyAdminService) UpdatePolicy(ctx context.Context, name string, description string, document []byte) (Policy, error) {
	const op = "iam.UpdatePolicy"
	if !s.check(ctx, auth.CapManagePolicies) {
		return Policy{}, denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Policy{}, apperr.New(apperr.KindValidation, op, "policy name is required")
	}
	current, err := s.policies.FindByName(ctx, name)
	if err != nil {
		return Policy{}, err
	}
	current.Description = strings.TrimSpace(description)
	if len(document) > 0 {
		current.Document = document
	}
	current.Version++
	current.UpdatedAt = s.now().UTC()
	return s.policies.Update(ctx, current)
}

func (s *PolicyAdminService) DeletePolicy(ctx context.Context, name string) error {
	const op = "iam.DeletePolicy"
	if !s.check(ctx, auth.CapManagePolicies) {
		return denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.New(apperr.KindValidation, op, "policy name is required")
	}
	existed, err := s.policies.Delete(ctx, name)
	if err != nil {
		return err
	}
	if !existed {
		return apperr.New(apperr.KindResourceNotFound, op, "policy %s not found", name)
	}
	return nil
}
