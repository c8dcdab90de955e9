package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"idgate.org/internal/apperr"
	"idgate.org/internal/iam"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func permissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"name", "description", "version", "created_at", "updated_at"})
}

func TestCreatePermission(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into permissions").
		WithArgs("billing.read", "read billing data", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(permissionRows().AddRow("billing.read", "read billing data", 1, now, now))

	p, err := store.Create(context.Background(), iam.Permission{
		Name: "billing.read", Description: "read billing data", Version: 1, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "billing.read" || p.Version != 1 {
		t.Fatalf("unexpected permission: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePermissionConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into permissions").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.Create(context.Background(), iam.Permission{Name: "billing.read", Version: 1})
	if apperr.KindOf(err) != apperr.KindPermissionExists {
		t.Fatalf("expected permission_exists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByNameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select name, description, version, created_at, updated_at").
		WithArgs("ghost").
		WillReturnRows(permissionRows())

	_, err := store.FindByName(context.Background(), "ghost")
	if apperr.KindOf(err) != apperr.KindPermissionNotFound {
		t.Fatalf("expected permission_not_found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from permissions").
		WithArgs("billing.read").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from permissions").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err := store.Delete(context.Background(), "billing.read")
	if err != nil || !existed {
		t.Fatalf("expected existed=true, got %v %v", existed, err)
	}
	existed, err = store.Delete(context.Background(), "ghost")
	if err != nil || existed {
		t.Fatalf("expected existed=false, got %v %v", existed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveAllForPermissionCountsRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from role_assignments").
		WithArgs("billing.read").
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := store.RemoveAllForPermission(context.Background(), "billing.read")
	if err != nil {
		t.Fatalf("RemoveAllForPermission: %v", err)
	}
	if removed != 4 {
		t.Fatalf("expected 4 removed, got %d", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListForRole(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select role_id, permission_name, created_at").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "permission_name", "created_at"}).
			AddRow("role-1", "billing.read", now).
			AddRow("role-1", "billing.write", now))

	assignments, err := store.ListForRole(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("ListForRole: %v", err)
	}
	if len(assignments) != 2 || assignments[0].PermissionName != "billing.read" {
		t.Fatalf("unexpected assignments: %+v", assignments)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPolicyCreateConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into policies").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.Policies().Create(context.Background(), iam.Policy{ID: "p1", Name: "readers", Document: []byte(`{}`), Version: 1})
	if apperr.KindOf(err) != apperr.KindPolicyExists {
		t.Fatalf("expected policy_exists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
