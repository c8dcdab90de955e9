package directory

import (
	"errors"

	"idgate.org/internal/apperr"
	"idgate.org/internal/breaker"
)

// mapError translates a breaker rejection or provider failure into the
// domain taxonomy. It is total: whatever comes back from the remote
// call ends up classified, never re-raised raw.
func mapError(op, target string, err error) error {
	if errors.Is(err, breaker.ErrOpen) {
		return apperr.Wrap(apperr.KindServiceUnavailable, op, err, "directory temporarily unavailable")
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		return apperr.Wrap(apperr.KindAdapterInteraction, op, err, "directory call failed: %v", err)
	}

	switch pe.Code {
	case CodeUserNotFound:
		return apperr.Wrap(apperr.KindUserNotFound, op, err, "user %s not found", target)
	case CodeResourceNotFound:
		return apperr.Wrap(apperr.KindResourceNotFound, op, err, "resource %s not found", target)
	case CodeGroupExists:
		return apperr.Wrap(apperr.KindGroupExists, op, err, "group %s already exists", target)
	case CodeUsernameExists, CodeInvalidPassword, CodeInvalidParameter:
		// Provider messages for these are caller-actionable; pass them
		// through verbatim.
		return apperr.Wrap(apperr.KindValidation, op, err, "%s", pe.Message)
	case CodeTooManyRequests:
		return apperr.Wrap(apperr.KindRateLimit, op, err, "directory throttled the request")
	case CodeNotAuthorized:
		return apperr.Wrap(apperr.KindAuthorization, op, err, "directory rejected service credentials")
	case CodeInternal:
		return apperr.Wrap(apperr.KindProviderInternal, op, err, "directory internal fault")
	default:
		return apperr.Wrap(apperr.KindAdapterInteraction, op, err, "unrecognized directory failure: %s", pe.Error())
	}
}

// absent reports whether a mapped error is the not-found condition that
// GetUser/GetGroup convert into an empty result.
func absent(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindUserNotFound, apperr.KindResourceNotFound:
		return true
	default:
		return false
	}
}
