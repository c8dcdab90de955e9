package pg

import (
	"context"
	"database/sql"
	"errors"

	"idgate.org/internal/apperr"
	"idgate.org/internal/iam"
)

var (
	_ iam.PermissionStore = (*Store)(nil)
	_ iam.AssignmentStore = (*Store)(nil)
)

func (s *Store) Create(ctx context.Context, p iam.Permission) (iam.Permission, error) {
	const op = "pg.PermissionStore.Create"
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (name, description, version, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
		returning name, description, version, created_at, updated_at
	`, p.Name, p.Description, p.Version, p.CreatedAt, p.UpdatedAt)
	var out iam.Permission
	if err := row.Scan(&out.Name, &out.Description, &out.Version, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return iam.Permission{}, apperr.Wrap(apperr.KindPermissionExists, op, err, "permission %s already exists", p.Name)
		}
		return iam.Permission{}, err
	}
	return out, nil
}

func (s *Store) FindByName(ctx context.Context, name string) (iam.Permission, error) {
	const op = "pg.PermissionStore.FindByName"
	var out iam.Permission
	err := s.db.QueryRowContext(ctx, `
		select name, description, version, created_at, updated_at
		from permissions
		where name = $1
	`, name).Scan(&out.Name, &out.Description, &out.Version, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Permission{}, apperr.New(apperr.KindPermissionNotFound, op, "permission %s not found", name)
	}
	if err != nil {
		return iam.Permission{}, err
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, opts iam.ListOptions) ([]iam.Permission, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select name, description, version, created_at, updated_at
		from permissions
		order by name
		limit $1 offset $2
	`, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []iam.Permission
	for rows.Next() {
		var p iam.Permission
		if err := rows.Scan(&p.Name, &p.Description, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Update(ctx context.Context, p iam.Permission) (iam.Permission, error) {
	const op = "pg.PermissionStore.Update"
	var out iam.Permission
	err := s.db.QueryRowContext(ctx, `
		update permissions
		set description = $2, version = $3, updated_at = $4
		where name = $1
		returning name, description, version, created_at, updated_at
	`, p.Name, p.Description, p.Version, p.UpdatedAt).Scan(&out.Name, &out.Description, &out.Version, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Permission{}, apperr.New(apperr.KindPermissionNotFound, op, "permission %s not found", p.Name)
	}
	if err != nil {
		return iam.Permission{}, err
	}
	return out, nil
}

// Delete removes a permission and reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `delete from permissions where name = $1`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) Assign(ctx context.Context, roleID, permissionName string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments (role_id, permission_name, created_at)
		values ($1, $2, now())
		on conflict (role_id, permission_name) do nothing
	`, roleID, permissionName)
	return err
}

func (s *Store) Remove(ctx context.Context, roleID, permissionName string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where role_id = $1 and permission_name = $2
	`, roleID, permissionName)
	return err
}

func (s *Store) RemoveAllForPermission(ctx context.Context, permissionName string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where permission_name = $1
	`, permissionName)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) RolesForPermission(ctx context.Context, permissionName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id
		from role_assignments
		where permission_name = $1
		order by role_id
	`, permissionName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) ListForRole(ctx context.Context, roleID string) ([]iam.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id, permission_name, created_at
		from role_assignments
		where role_id = $1
		order by permission_name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []iam.RoleAssignment
	for rows.Next() {
		var a iam.RoleAssignment
		if err := rows.Scan(&a.RoleID, &a.PermissionName, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
