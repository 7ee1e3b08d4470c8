package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx reply from an upstream provider.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s response status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the provider signalled rate limiting or unavailability.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusPaymentRequired, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// UpstreamStatus extracts a forwardable provider status from err.
func UpstreamStatus(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Transient() {
		return se.StatusCode, true
	}
	return 0, false
}
