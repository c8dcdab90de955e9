package auth

import (
	"context"
	"slices"
	"testing"
	"time"
)

func withSecret(t *testing.T) {
	t.Helper()
	t.Setenv(secretEnvVariable, "test-secret-value")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t)

	token, err := GenerateToken("op-42", []string{"Admin", "useradmin", "admin"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "op-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if !slices.Contains(claims.Roles, "admin") || !slices.Contains(claims.Roles, "useradmin") {
		t.Fatalf("roles were not preserved: %v", claims.Roles)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", claims.Roles)
	}
}

func TestGenerateTokenRejectsBadInput(t *testing.T) {
	withSecret(t)

	if _, err := GenerateToken("  ", nil, time.Minute); err == nil {
		t.Fatalf("expected error for empty userID")
	}
	if _, err := GenerateToken("op-1", nil, 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	withSecret(t)

	token, err := GenerateToken("op-1", []string{"admin"}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseAndValidate(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("op-1", nil, time.Minute); err != errMissingSecret {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "op-7", []string{"Admin", "admin"})

	id, ok := UserIDFromContext(ctx)
	if !ok || id != "op-7" {
		t.Fatalf("unexpected user id: %q %v", id, ok)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if !HasRole(ctx, "ADMIN") {
		t.Fatalf("HasRole should normalize case")
	}
	if HasRole(ctx, "iamadmin") {
		t.Fatalf("unexpected role grant")
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		roles []string
		cap   string
		want  bool
	}{
		{[]string{RoleAdmin}, CapManagePermissions, true},
		{[]string{RoleAdmin}, CapManageUsers, true},
		{[]string{RoleUserAdmin}, CapManageUsers, true},
		{[]string{RoleUserAdmin}, CapManageGroups, true},
		{[]string{RoleUserAdmin}, CapManagePermissions, false},
		{[]string{RoleIAMAdmin}, CapManagePermissions, true},
		{[]string{RoleIAMAdmin}, CapManagePolicies, true},
		{[]string{RoleIAMAdmin}, CapManageUsers, false},
		{nil, CapManageUsers, false},
		{[]string{"viewer"}, CapManageUsers, false},
	}
	for _, tc := range cases {
		ctx := ContextWithUser(context.Background(), "op-1", tc.roles)
		if got := Allowed(ctx, tc.cap); got != tc.want {
			t.Fatalf("roles %v cap %s: got %v, want %v", tc.roles, tc.cap, got, tc.want)
		}
	}
}
