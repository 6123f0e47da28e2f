package zapplus

import (
	"errors"
	"fmt"
)

// Sentinel errors mapping the ZapPlus API failure modes.
// Callers branch with errors.Is, never by parsing messages.
var (
	// ErrRateLimited indicates the API signaled rate-exceeded (HTTP 429).
	// Retryable after a larger backoff.
	ErrRateLimited = errors.New("zapplus: rate limit exceeded")

	// ErrNotFound indicates the group or session no longer exists (HTTP 404). Not retryable.
	ErrNotFound = errors.New("zapplus: not found")

	// ErrForbidden indicates the session lacks permission, usually a
	// non-admin calling an admin-only operation (HTTP 403). Not retryable.
	ErrForbidden = errors.New("zapplus: forbidden")

	// ErrUnavailable indicates a server-side or transport failure. Retryable.
	ErrUnavailable = errors.New("zapplus: service unavailable")
)

// classifyStatus maps an HTTP status code to the error taxonomy
func classifyStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status == 404:
		return ErrNotFound
	case status == 401 || status == 403:
		return ErrForbidden
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	default:
		return fmt.Errorf("zapplus: API returned status %d", status)
	}
}

// IsTransient reports whether the error is worth retrying.
// Only rate limits, 5xx and transport failures (timeouts included) qualify;
// anything else, unclassified 4xx included, is permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
