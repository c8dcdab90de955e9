package iam

import (
	"context"
	"errors"
	"testing"

	"idgate.org/internal/apperr"
)

type stubPermissionStore struct {
	PermissionStore
	deleteFn func(ctx context.Context, name string) (bool, error)
}

func (s *stubPermissionStore) Delete(ctx context.Context, name string) (bool, error) {
	return s.deleteFn(ctx, name)
}

type stubAssignmentStore struct {
	AssignmentStore
	removeAllFn func(ctx context.Context, name string) (int, error)
	calls       int
}

func (s *stubAssignmentStore) RemoveAllForPermission(ctx context.Context, name string) (int, error) {
	s.calls++
	return s.removeAllFn(ctx, name)
}

func TestCascadeDeleteSuccess(t *testing.T) {
	perms := &stubPermissionStore{deleteFn: func(context.Context, string) (bool, error) { return true, nil }}
	assigns := &stubAssignmentStore{removeAllFn: func(context.Context, string) (int, error) { return 3, nil }}

	c := NewCascade(perms, assigns)
	if err := c.DeletePermission(context.Background(), "billing.read"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assigns.calls != 1 {
		t.Fatalf("expected one cleanup call, got %d", assigns.calls)
	}
}

func TestCascadeDeleteNotFoundSkipsCleanup(t *testing.T) {
	perms := &stubPermissionStore{deleteFn: func(context.Context, string) (bool, error) { return false, nil }}
	assigns := &stubAssignmentStore{removeAllFn: func(context.Context, string) (int, error) {
		t.Fatal("cleanup must not run for a missing permission")
		return 0, nil
	}}

	c := NewCascade(perms, assigns)
	err := c.DeletePermission(context.Background(), "ghost")
	if apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("expected permission_not_found, got %v", err)
	}
	if assigns.calls != 0 {
		t.Fatalf("cleanup ran %d times", assigns.calls)
	}
}

func TestCascadeDeleteCleanupFailure(t *testing.T) {
	sweepErr := errors.New("assignment table unreachable")
	perms := &stubPermissionStore{deleteFn: func(context.Context, string) (bool, error) { return true, nil }}
	assigns := &stubAssignmentStore{removeAllFn: func(context.Context, string) (int, error) { return 0, sweepErr }}

	c := NewCascade(perms, assigns)
	err := c.DeletePermission(context.Background(), "billing.read")
	if apperr.KindOf(err) != apperr.KindCleanupFailed {
		t.Fatalf("expected cleanup_failed, got %v", err)
	}
	if !errors.Is(err, sweepErr) {
		t.Fatalf("cleanup cause not preserved: %v", err)
	}
}

func TestCascadeDeleteStorageErrorPassesThrough(t *testing.T) {
	storeErr := apperr.New(apperr.KindUnknown, "pg.Delete", "connection refused")
	perms := &stubPermissionStore{deleteFn: func(context.Context, string) (bool, error) { return false, storeErr }}
	assigns := &stubAssignmentStore{removeAllFn: func(context.Context, string) (int, error) {
		t.Fatal("cleanup must not run when the delete itself failed")
		return 0, nil
	}}

	c := NewCascade(perms, assigns)
	if err := c.DeletePermission(context.Background(), "billing.read"); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCascadeDeleteValidatesName(t *testing.T) {
	c := NewCascade(&stubPermissionStore{deleteFn: func(context.Context, string) (bool, error) {
		t.Fatal("store must not be reached")
		return false, nil
	}}, &stubAssignmentStore{})
	if err := c.DeletePermission(context.Background(), "   "); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// No rollback: after a cleanup failure the permission stays deleted,
// so a retry reports not-found and leaves the leftover assignments to
// a manual sweep.
func TestCascadeRetryAfterCleanupFailure(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Create(ctx, Permission{Name: "billing.read", Version: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Assign(ctx, "role-1", "billing.read"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	failing := &stubAssignmentStore{removeAllFn: func(context.Context, string) (int, error) {
		return 0, errors.New("sweep failed")
	}}
	if err := NewCascade(store, failing).DeletePermission(ctx, "billing.read"); apperr.KindOf(err) != apperr.KindCleanupFailed {
		t.Fatalf("expected cleanup_failed, got %v", err)
	}

	// Permission is gone even though cleanup failed.
	if _, err := store.FindByName(ctx, "billing.read"); apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("expected permission removed, got %v", err)
	}
	roles, err := store.RolesForPermission(ctx, "billing.read")
	if err != nil || len(roles) != 1 {
		t.Fatalf("expected dangling assignment to remain, got %v %v", roles, err)
	}

	// The retry path: not-found outcome, assignments untouched by the
	// coordinator.
	if err := NewCascade(store, store).DeletePermission(ctx, "billing.read"); apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("expected permission_not_found on retry, got %v", err)
	}
}
