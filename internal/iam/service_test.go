package iam

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"idgate.org/internal/apperr"
	"idgate.org/internal/auth"
	"idgate.org/internal/breaker"
	"idgate.org/internal/directory"
)

func allowAll(context.Context, string) bool { return true }
func denyAll(context.Context, string) bool  { return false }

func newUserService(t *testing.T, check CapabilityCheck) *UserAdminService {
	t.Helper()
	circuits := breaker.New(breaker.Settings{})
	adapter, err := directory.NewAdapter(directory.NewFake(), circuits, directory.Config{Pool: "test-pool"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return NewUserAdminService(adapter, check)
}

func TestUserAdminServiceDelegates(t *testing.T) {
	svc := newUserService(t, allowAll)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, directory.CreateUserInput{Username: "alice"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := svc.GetUser(ctx, "alice")
	if err != nil || got == nil {
		t.Fatalf("GetUser: %v %v", got, err)
	}
	if err := svc.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestUserAdminServiceDeniesWithoutCapability(t *testing.T) {
	svc := newUserService(t, denyAll)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, directory.CreateUserInput{Username: "alice"}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if _, err := svc.ListGroups(ctx, directory.Page{}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestUserAdminServiceUsesRoleModelByDefault(t *testing.T) {
	svc := newUserService(t, nil)

	denied := context.Background()
	if _, err := svc.CreateUser(denied, directory.CreateUserInput{Username: "alice"}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error for anonymous caller, got %v", err)
	}

	allowed := auth.ContextWithUser(context.Background(), "op-1", []string{auth.RoleUserAdmin})
	if _, err := svc.CreateUser(allowed, directory.CreateUserInput{Username: "alice"}); err != nil {
		t.Fatalf("CreateUser with useradmin role: %v", err)
	}
}

func TestPermissionAdminServiceLifecycle(t *testing.T) {
	store := NewMemoryStore()
	svc := NewPermissionAdminService(store, store, allowAll)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	p, err := svc.CreatePermission(ctx, " billing.read ", "read billing data")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if p.Name != "billing.read" || p.Version != 1 {
		t.Fatalf("unexpected permission: %+v", p)
	}

	if _, err := svc.CreatePermission(ctx, "billing.read", ""); apperr.KindOf(err) != apperr.KindPermissionExists {
		t.Fatalf("duplicate: expected permission_exists, got %v", err)
	}

	updated, err := svc.UpdatePermission(ctx, "billing.read", "read-only billing access")
	if err != nil {
		t.Fatalf("UpdatePermission: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}

	if err := svc.AssignToRole(ctx, "role-1", "billing.read"); err != nil {
		t.Fatalf("AssignToRole: %v", err)
	}
	if err := svc.AssignToRole(ctx, "role-1", "nonexistent"); apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("assigning unknown permission: expected permission_not_found, got %v", err)
	}

	roles, err := svc.RolesForPermission(ctx, "billing.read")
	if err != nil || len(roles) != 1 || roles[0] != "role-1" {
		t.Fatalf("RolesForPermission: %v %v", roles, err)
	}
	assignments, err := svc.ListForRole(ctx, "role-1")
	if err != nil || len(assignments) != 1 {
		t.Fatalf("ListForRole: %v %v", assignments, err)
	}

	if err := svc.DeletePermission(ctx, "billing.read"); err != nil {
		t.Fatalf("DeletePermission: %v", err)
	}
	roles, err = svc.RolesForPermission(ctx, "billing.read")
	if err != nil || len(roles) != 0 {
		t.Fatalf("expected assignments swept, got %v %v", roles, err)
	}
	if err := svc.DeletePermission(ctx, "billing.read"); apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("second delete: expected permission_not_found, got %v", err)
	}
}

func TestPermissionAdminServiceDenied(t *testing.T) {
	store := NewMemoryStore()
	svc := NewPermissionAdminService(store, store, denyAll)
	if _, err := svc.CreatePermission(context.Background(), "x", ""); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := svc.DeletePermission(context.Background(), "x"); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestPolicyAdminServiceLifecycle(t *testing.T) {
	svc := NewPolicyAdminService(NewMemoryPolicyStore(), allowAll)
	ctx := context.Background()
	doc := json.RawMessage(`{"effect":"allow","actions":["users:read"]}`)

	p, err := svc.CreatePolicy(ctx, Policy{Name: "readers", Document: doc})
	if err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}
	if p.ID == "" || p.Version != 1 {
		t.Fatalf("unexpected policy: %+v", p)
	}

	if _, err := svc.CreatePolicy(ctx, Policy{Name: "readers", Document: doc}); apperr.KindOf(err) != apperr.KindPolicyExists {
		t.Fatalf("duplicate: expected policy_exists, got %v", err)
	}
	if _, err := svc.CreatePolicy(ctx, Policy{Name: "empty"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("missing document: expected validation, got %v", err)
	}

	updated, err := svc.UpdatePolicy(ctx, "readers", "broader readers", json.RawMessage(`{"effect":"allow","actions":["*:read"]}`))
	if err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}

	if err := svc.DeletePolicy(ctx, "readers"); err != nil {
		t.Fatalf("DeletePolicy: %v", err)
	}
	if err := svc.DeletePolicy(ctx, "readers"); apperr.KindOf(err) != apperr.KindResourceNotFound {
		t.Fatalf("expected resource_not_found, got %v", err)
	}
}
