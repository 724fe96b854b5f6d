// Copyright 2024-2026 Aiku AI

package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aiku/chatbridge/pkg/ids"
)

// Typed dispatch failures. Destination channels wrap these so the source
// channel can match with errors.Is and decide what to tell its user.
var (
	// ErrChannelNotFound: a message names a DeliverTo that is not
	// registered with the coordinator.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChatNotFound: the destination chat is unknown to the channel.
	ErrChatNotFound = errors.New("chat not found")
	// ErrMessageNotFound: an edit or reply targets an unknown prior
	// message.
	ErrMessageNotFound = errors.New("message not found")
	// ErrMessageTypeNotSupported: the message type is outside the
	// channel's supported set.
	ErrMessageTypeNotSupported = errors.New("message type not supported")
	// ErrOperationNotSupported: the destination cannot perform the
	// implied action (edit, delete, picture fetch).
	ErrOperationNotSupported = errors.New("operation not supported")
	// ErrMissingDestination: dispatch was called with no DeliverTo set.
	// This is a programming error in the source channel.
	ErrMissingDestination = errors.New("message has no destination")
)

// MessageError is the catch-all for downstream delivery failures that do
// not match a more specific kind.
type MessageError struct {
	Reason string
	Cause  error
}

func (e *MessageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("message error: %s: %v", e.Reason, e.Cause)
	}
	return "message error: " + e.Reason
}

func (e *MessageError) Unwrap() error { return e.Cause }

// DispatchError wraps a failure that occurred while threading an item
// through the pipeline. It records where the failure happened and an opaque
// correlation id the source channel can show to its user.
type DispatchError struct {
	// Stage is "middleware" or "delivery".
	Stage string
	// Module is the middleware or channel that failed.
	Module ids.ModuleID
	// CorrelationID is an opaque token for log correlation.
	CorrelationID string
	Cause         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s %s failed (corr %s): %v", e.Stage, e.Module, e.CorrelationID, e.Cause)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

// newDispatchError stamps a fresh correlation id onto a pipeline failure.
func newDispatchError(stage string, module ids.ModuleID, cause error) *DispatchError {
	return &DispatchError{
		Stage:         stage,
		Module:        module,
		CorrelationID: uuid.NewString()[:8],
		Cause:         cause,
	}
}

// ErrorKind names the taxonomy bucket of err for user-facing tokens and
// metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrChannelNotFound):
		return "channel-not-found"
	case errors.Is(err, ErrChatNotFound):
		return "chat-not-found"
	case errors.Is(err, ErrMessageNotFound):
		return "message-not-found"
	case errors.Is(err, ErrMessageTypeNotSupported):
		return "message-type-not-supported"
	case errors.Is(err, ErrOperationNotSupported):
		return "operation-not-supported"
	case errors.Is(err, ErrMissingDestination):
		return "missing-destination"
	default:
		return "message-error"
	}
}

// UserFacingError renders the short explanatory token a source channel
// shows its user: the error kind plus the correlation id when one exists.
func UserFacingError(err error) string {
	if err == nil {
		return ""
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return fmt.Sprintf("%s (corr %s)", ErrorKind(err), de.CorrelationID)
	}
	return ErrorKind(err)
}
