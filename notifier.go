package eduapi

import "errors"

// Severity grades a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message about the final outcome of a
// request. The retry executor guarantees at most one per logical request;
// successful first attempts produce none.
type Notification struct {
	Severity Severity
	Kind     ErrorKind
	Message  string
}

// Notifier delivers notifications to the host application, typically a
// toast or banner in the UI layer. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// UserMessage maps an error to user-facing wording. Raw transport detail
// never reaches end users; validation errors keep the backend message
// because it names the offending field.
func UserMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "Something went wrong. Please try again."
	}

	switch apiErr.Kind {
	case KindNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case KindTimeout:
		return "The request timed out. Please try again."
	case KindSessionExpired:
		return "Your session has expired. Please log in again."
	case KindForbidden:
		return "You don't have permission to perform this action."
	case KindNotFound:
		return "The requested resource was not found."
	case KindValidation:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "The submitted data is invalid."
	case KindServer:
		return "The server encountered an error. Please try again later."
	case KindCircuitOpen:
		return "The service is temporarily unavailable. Please try again shortly."
	case KindRateLimited:
		return "Too many requests. Please slow down and try again."
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Something went wrong. Please try again."
	}
}
