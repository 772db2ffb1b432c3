package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TransportError reports a failure to reach or converse with a backend:
// refused connections, DNS failures, malformed responses, and any HTTP
// status not covered by a more specific class.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend %s: transport: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports rejected credentials (HTTP 401 or 403).
type AuthError struct {
	Backend string
	Status  int
	Detail  string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend %s: auth rejected (http %d)", e.Backend, e.Status)
	}
	return fmt.Sprintf("backend %s: auth rejected (http %d): %s", e.Backend, e.Status, e.Detail)
}

// TimeoutError reports a request that exceeded the backend deadline.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %s: timed out after %s: %v", e.Backend, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// classifyError maps a request error onto the error taxonomy. Deadline and
// network timeouts become TimeoutError; everything else is transport.
func classifyError(backend string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Backend: backend, Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Backend: backend, Timeout: timeout, Err: err}
	}
	return &TransportError{Backend: backend, Err: err}
}

// classifyStatus maps a non-2xx HTTP status onto the error taxonomy.
func classifyStatus(backend string, status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Backend: backend, Status: status, Detail: snippet(body)}
	}
	return &TransportError{
		Backend: backend,
		Err:     fmt.Errorf("http %d: %s", status, snippet(body)),
	}
}
