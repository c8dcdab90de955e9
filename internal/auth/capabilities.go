package auth

import "context"

// Capabilities gate the admin-plane operations.
const (
	CapManageUsers       = "users.manage"
	CapManageGroups      = "groups.manage"
	CapManagePermissions = "permissions.manage"
	CapManagePolicies    = "policies.manage"
)

// Operator roles recognized in token claims.
const (
	RoleAdmin     = "admin"
	RoleUserAdmin = "useradmin"
	RoleIAMAdmin  = "iamadmin"
)

var roleCapabilities = map[string][]string{
	RoleAdmin:     {CapManageUsers, CapManageGroups, CapManagePermissions, CapManagePolicies},
	RoleUserAdmin: {CapManageUsers, CapManageGroups},
	RoleIAMAdmin:  {CapManagePermissions, CapManagePolicies},
}

// Allowed reports whether any role in the context grants the capability.
func Allowed(ctx context.Context, capability string) bool {
	for _, role := range RolesFromContext(ctx) {
		for _, cap := range roleCapabilities[role] {
			if cap == capability {
				return true
			}
		}
	}
	return false
}
