package pg

import (
	"context"
	"database/sql"
	"errors"

	"idgate.org/internal/apperr"
	"idgate.org/internal/iam"
)

// PolicyStore persists policy documents. It shares the Store's
// connection pool but is a separate type because its row shape differs.
type PolicyStore struct {
	db *sql.DB
}

// Policies returns the policy repository over the same pool.
func (s *Store) Policies() *PolicyStore { return &PolicyStore{db: s.db} }

var _ iam.PolicyStore = (*PolicyStore)(nil)

func (s *PolicyStore) Create(ctx context.Context, p iam.Policy) (iam.Policy, error) {
	const op = "pg.PolicyStore.Create"
	row := s.db.QueryRowContext(ctx, `
		insert into policies (id, name, description, document, version, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, name, description, document, version, created_at, updated_at
	`, p.ID, p.Name, p.Description, []byte(p.Document), p.Version, p.CreatedAt, p.UpdatedAt)
	out, err := scanPolicy(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return iam.Policy{}, apperr.Wrap(apperr.KindPolicyExists, op, err, "policy %s already exists", p.Name)
		}
		return iam.Policy{}, err
	}
	return out, nil
}

func (s *PolicyStore) FindByName(ctx context.Context, name string) (iam.Policy, error) {
	const op = "pg.PolicyStore.FindByName"
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, document, version, created_at, updated_at
		from policies
		where name = $1
	`, name)
	out, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Policy{}, apperr.New(apperr.KindResourceNotFound, op, "policy %s not found", name)
	}
	if err != nil {
		return iam.Policy{}, err
	}
	return out, nil
}

func (s *PolicyStore) List(ctx context.Context, opts iam.ListOptions) ([]iam.Policy, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, document, version, created_at, updated_at
		from policies
		order by name
		limit $1 offset $2
	`, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []iam.Policy
	for rows.Next() {
		var (
			p   iam.Policy
			doc []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &doc, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Document = doc
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PolicyStore) Update(ctx context.Context, p iam.Policy) (iam.Policy, error) {
	const op = "pg.PolicyStore.Update"
	row := s.db.QueryRowContext(ctx, `
		update policies
		set description = $2, document = $3, version = $4, updated_at = $5
		where name = $1
		returning id, name, description, document, version, created_at, updated_at
	`, p.Name, p.Description, []byte(p.Document), p.Version, p.UpdatedAt)
	out, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Policy{}, apperr.New(apperr.KindResourceNotFound, op, "policy %s not found", p.Name)
	}
	if err != nil {
		return iam.Policy{}, err
	}
	return out, nil
}

func (s *PolicyStore) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `delete from policies where name = $1`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanPolicy(row *sql.Row) (iam.Policy, error) {
	var (
		p   iam.Policy
		doc []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &doc, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return iam.Policy{}, err
	}
	p.Document = doc
	return p, nil
}
