package eduapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorKind is the normalized category of a request failure.
type ErrorKind string

const (
	// KindNetwork means the transport failed before any response arrived.
	KindNetwork ErrorKind = "NetworkError"
	// KindTimeout means the attempt exceeded its deadline.
	KindTimeout ErrorKind = "Timeout"
	// KindSessionExpired means a 401 could not be recovered by refresh.
	KindSessionExpired ErrorKind = "SessionExpired"
	// KindForbidden maps 403 responses.
	KindForbidden ErrorKind = "Forbidden"
	// KindNotFound maps 404 responses.
	KindNotFound ErrorKind = "NotFound"
	// KindValidation maps 422 responses; the backend message is preserved.
	KindValidation ErrorKind = "ValidationError"
	// KindServer maps 5xx responses.
	KindServer ErrorKind = "ServerError"
	// KindCircuitOpen means the breaker rejected the call without a network
	// round trip.
	KindCircuitOpen ErrorKind = "CircuitOpenError"
	// KindRateLimited means the local rate limiter rejected the call.
	KindRateLimited ErrorKind = "RateLimited"
	// KindUnknown is the fallback for anything else.
	KindUnknown ErrorKind = "UnknownError"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrNoCredential is returned by refresh when no refresh token exists.
	ErrNoCredential = errors.New("eduapi: no refresh credential")
)

// APIError is the error type surfaced by the client. Kind is the normalized
// taxonomy category; the remaining fields carry request diagnostics.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Attempt    int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// Kind extracts the normalized category of err, or KindUnknown when err is
// not an *APIError.
func Kind(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Network errors, timeouts and 5xx responses are
// transient; everything else, including circuit-open rejections, is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch Kind(err) {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// isTimeoutErr reports whether a transport error was a deadline overrun
// rather than a generic network failure.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// backendMessage extracts a human-readable message from a JSON error body.
// The backend is inconsistent about the field name, so a few are tried.
func backendMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	default:
		return payload.Detail
	}
}
