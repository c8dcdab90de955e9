// Package apperr defines the error taxonomy shared by the directory
// adapter, the IAM services and the HTTP layer. Every failure that
// crosses a package boundary is an *Error carrying a Kind; callers
// branch on the kind, never on provider-specific detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUserNotFound
	KindResourceNotFound
	KindGroupExists
	KindPermissionNotFound
	KindPermissionExists
	KindPolicyExists
	KindValidation
	KindRateLimit
	KindAuthorization
	KindProviderInternal
	KindServiceUnavailable
	KindCleanupFailed
	KindAdapterInteraction
)

func (k Kind) String() string {
	switch k {
	case KindUserNotFound:
		return "user_not_found"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindGroupExists:
		return "group_exists"
	case KindPermissionNotFound:
		return "permission_not_found"
	case KindPermissionExists:
		return "permission_exists"
	case KindPolicyExists:
		return "policy_exists"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate_limit"
	case KindAuthorization:
		return "authorization"
	case KindProviderInternal:
		return "provider_internal"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindCleanupFailed:
		return "cleanup_failed"
	case KindAdapterInteraction:
		return "adapter_interaction"
	default:
		return "unknown"
	}
}

// Error is the single error type used across service boundaries.
type Error struct {
	Kind    Kind
	Op      string // logical operation, e.g. "directory.CreateUser"
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return e.Op + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so that
// errors.Is(err, &Error{Kind: KindValidation}) works for callers that
// only care about classification.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a classified error without a cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// OpOf extracts the operation name from any error in the chain.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Retryable reports whether the caller may usefully retry after backoff.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindServiceUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the status code the admin API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUserNotFound, KindResourceNotFound, KindPermissionNotFound:
		return http.StatusNotFound
	case KindGroupExists, KindPermissionExists, KindPolicyExists:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindAuthorization:
		return http.StatusForbidden
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
