package iam

import (
	"context"
	"strings"

	"idgate.org/internal/apperr"
	"idgate.org/internal/obs"
)

// Cascade coordinates the two-step permission delete: remove the
// permission record, then sweep the assignments referencing it. There
// is no transaction across the two steps and no rollback; a failed
// sweep leaves the permission deleted and the assignments dangling
// until the next delete or a manual sweep.
type Cascade struct {
	perms   PermissionStore
	assigns AssignmentStore
}

// NewCascade wires the coordinator over its two stores.
func NewCascade(perms PermissionStore, assigns AssignmentStore) *Cascade {
	return &Cascade{perms: perms, assigns: assigns}
}

// DeletePermission removes a permission and its role assignments.
// Outcomes:
//   - nil: permission and all assignments removed
//   - KindPermissionNotFound: nothing existed, nothing was touched
//   - KindCleanupFailed: permission removed but assignment cleanup
//     failed; the wrapped cause identifies the sweep error
func (c *Cascade) DeletePermission(ctx context.Context, name string) error {
	const op = "iam.DeletePermission"
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.New(apperr.KindValidation, op, "permission name is required")
	}

	existed, err := c.perms.Delete(ctx, name)
	if err != nil {
		return err
	}
	if !existed {
		// Assignment cleanup is intentionally skipped: assignments for a
		// permission that never existed cannot exist either.
		return apperr.New(apperr.KindPermissionNotFound, op, "permission %s not found", name)
	}

	removed, err := c.assigns.RemoveAllForPermission(ctx, name)
	if err != nil {
		obs.Error("permission deleted but assignment cleanup failed", obs.Fields{
			"permission": name,
			"state":      "permission_deleted_cleanup_pending",
			"error":      err.Error(),
		})
		return apperr.Wrap(apperr.KindCleanupFailed, op, err,
			"permission %s deleted but assignment cleanup failed", name)
	}

	obs.Info("permission deleted", obs.Fields{"permission": name, "assignments_removed": removed})
	return nil
}
