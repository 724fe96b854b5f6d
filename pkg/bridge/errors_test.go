// Copyright 2024-2026 Aiku AI

package bridge

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "none"},
		{err: ErrChannelNotFound, want: "channel-not-found"},
		{err: fmt.Errorf("wrapped: %w", ErrChatNotFound), want: "chat-not-found"},
		{err: ErrMessageNotFound, want: "message-not-found"},
		{err: ErrMessageTypeNotSupported, want: "message-type-not-supported"},
		{err: ErrOperationNotSupported, want: "operation-not-supported"},
		{err: ErrMissingDestination, want: "missing-destination"},
		{err: &MessageError{Reason: "downstream timeout"}, want: "message-error"},
		{err: errors.New("anything else"), want: "message-error"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v): got %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDispatchErrorWrapping(t *testing.T) {
	t.Parallel()
	err := newDispatchError("delivery", "tests.slave.MockSlave", ErrChatNotFound)
	if !errors.Is(err, ErrChatNotFound) {
		t.Error("DispatchError does not unwrap to its cause")
	}
	if err.CorrelationID == "" || len(err.CorrelationID) != 8 {
		t.Errorf("correlation id: got %q", err.CorrelationID)
	}
	if !strings.Contains(err.Error(), "tests.slave.MockSlave") {
		t.Errorf("Error() does not name the module: %q", err.Error())
	}
}

func TestUserFacingError(t *testing.T) {
	t.Parallel()
	err := newDispatchError("middleware", "tests.mw.X", ErrMessageTypeNotSupported)
	token := UserFacingError(err)
	if !strings.HasPrefix(token, "message-type-not-supported (corr ") {
		t.Errorf("UserFacingError: got %q", token)
	}
	if got := UserFacingError(ErrChatNotFound); got != "chat-not-found" {
		t.Errorf("UserFacingError without correlation: got %q", got)
	}
	if got := UserFacingError(nil); got != "" {
		t.Errorf("UserFacingError(nil): got %q", got)
	}
}

func TestMessageErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("socket closed")
	err := &MessageError{Reason: "delivery failed", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("MessageError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "delivery failed") {
		t.Errorf("Error(): %q", err.Error())
	}
}
