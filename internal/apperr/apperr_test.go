package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessageIncludesOpAndMessage(t *testing.T) {
	err := New(KindUserNotFound, "directory.DeleteUser", "user %s not found", "u1")
	want := "directory.DeleteUser: user u1 not found"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := New(KindRateLimit, "directory.ListUsers", "throttled")
	outer := fmt.Errorf("admin call failed: %w", inner)
	if KindOf(outer) != KindRateLimit {
		t.Fatalf("expected rate limit kind, got %v", KindOf(outer))
	}
	if OpOf(outer) != "directory.ListUsers" {
		t.Fatalf("expected op preserved, got %q", OpOf(outer))
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := Wrap(KindCleanupFailed, "iam.DeletePermission", errors.New("boom"), "cleanup failed")
	if !errors.Is(err, &Error{Kind: KindCleanupFailed}) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(err, &Error{Kind: KindPermissionNotFound}) {
		t.Fatalf("unexpected kind match")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindRateLimit, true},
		{KindServiceUnavailable, true},
		{KindValidation, false},
		{KindUserNotFound, false},
		{KindProviderInternal, false},
	}
	for _, tc := range cases {
		if got := Retryable(New(tc.kind, "op", "msg")); got != tc.want {
			t.Fatalf("kind %v: retryable = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindUserNotFound, http.StatusNotFound},
		{KindResourceNotFound, http.StatusNotFound},
		{KindPermissionNotFound, http.StatusNotFound},
		{KindGroupExists, http.StatusConflict},
		{KindPermissionExists, http.StatusConflict},
		{KindValidation, http.StatusBadRequest},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindAuthorization, http.StatusForbidden},
		{KindServiceUnavailable, http.StatusServiceUnavailable},
		{KindProviderInternal, http.StatusInternalServerError},
		{KindCleanupFailed, http.StatusInternalServerError},
		{KindAdapterInteraction, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "op", "msg")); got != tc.want {
			t.Fatalf("kind %v: status = %d, want %d", tc.kind, got, tc.want)
		}
	}
	if HTTPStatus(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatalf("plain errors should map to 500")
	}
}
