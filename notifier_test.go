package eduapi

import (
	"errors"
	"strings"
	"testing"
)

func TestUserMessagePerKind(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindNetwork, "Unable to reach the server"},
		{KindTimeout, "timed out"},
		{KindSessionExpired, "session has expired"},
		{KindForbidden, "permission"},
		{KindNotFound, "not found"},
		{KindServer, "server encountered an error"},
		{KindCircuitOpen, "temporarily unavailable"},
		{KindRateLimited, "Too many requests"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msg := UserMessage(&APIError{Kind: tt.kind, Message: "internal detail"})
			if !strings.Contains(msg, tt.want) {
				t.Errorf("UserMessage(%s) = %q, want substring %q", tt.kind, msg, tt.want)
			}
			if strings.Contains(msg, "internal detail") {
				t.Errorf("UserMessage(%s) leaked internal detail: %q", tt.kind, msg)
			}
		})
	}
}

func TestUserMessageValidationKeepsBackendText(t *testing.T) {
	msg := UserMessage(&APIError{Kind: KindValidation, Message: "Nama wajib diisi"})
	if msg != "Nama wajib diisi" {
		t.Errorf("UserMessage = %q, want the backend message", msg)
	}

	msg = UserMessage(&APIError{Kind: KindValidation})
	if !strings.Contains(msg, "invalid") {
		t.Errorf("UserMessage = %q, want generic validation wording", msg)
	}
}

func TestUserMessagePlainError(t *testing.T) {
	msg := UserMessage(errors.New("dial tcp 10.0.0.1: connection refused"))
	if strings.Contains(msg, "dial tcp") {
		t.Errorf("UserMessage leaked transport detail: %q", msg)
	}
}

func TestUserMessageUnknownUsesMessage(t *testing.T) {
	msg := UserMessage(&APIError{Kind: KindUnknown, Message: "Terjadi kesalahan."})
	if msg != "Terjadi kesalahan." {
		t.Errorf("UserMessage = %q, want the carried message", msg)
	}
}

func TestNotifierFunc(t *testing.T) {
	var got Notification
	n := NotifierFunc(func(notification Notification) { got = notification })
	n.Notify(Notification{Severity: SeverityError, Kind: KindServer, Message: "boom"})
	if got.Kind != KindServer || got.Severity != SeverityError {
		t.Errorf("NotifierFunc did not forward notification: %+v", got)
	}
}

func TestNopNotifier(t *testing.T) {
	NopNotifier{}.Notify(Notification{Severity: SeverityError})
}
