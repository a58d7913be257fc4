// Package messaging provides a pluggable message delivery abstraction.
//
// It supports sending messages with optional inline controls, editing the
// controls of a previously sent message, acknowledging control presses,
// and a channel of inbound reviewer events.
package messaging

import (
	"context"
	"log/slog"
	"time"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound event channel
	DefaultChannelBufferSize = 100
	// DefaultSendAttempts is the bounded retry count for idempotent sends
	DefaultSendAttempts = 3
	// DefaultRetryBackoff is the base delay between send retries
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Control is one actionable button: a label shown to the reviewer and an
// opaque callback token returned when pressed.
type Control struct {
	Label string
	Data  string
}

// MessageRef identifies a previously delivered message so its controls can
// be edited later.
type MessageRef struct {
	ChatID    string
	MessageID int
}

// EventKind discriminates inbound reviewer events.
type EventKind string

const (
	// EventCallback is an inline control press.
	EventCallback EventKind = "callback"
	// EventText is a free-text reply.
	EventText EventKind = "text"
	// EventCommand is a slash command.
	EventCommand EventKind = "command"
	// EventContact is a shared phone number (identity verification).
	EventContact EventKind = "contact"
)

// Event is one inbound reviewer action.
type Event struct {
	Kind       EventKind
	ChatID     string
	Text       string     // text body, or raw command text
	Command    string     // command name without slash, for EventCommand
	Data       string     // opaque callback token, for EventCallback
	CallbackID string     // transport ref used to acknowledge the press
	Ref        MessageRef // message carrying the pressed control
	Phone      string     // shared phone number, for EventContact
	Time       int64
}

// Service defines the transport consumed by the workflow. Implementations
// must never block arbitration: delivery failures are returned, not retried
// internally.
type Service interface {
	// Deliver sends a message, optionally with rows of inline controls.
	Deliver(ctx context.Context, chatID, text string, controls [][]Control) (MessageRef, error)

	// UpdateControls replaces the controls on a previously sent message.
	// An empty controls slice removes them.
	UpdateControls(ctx context.Context, ref MessageRef, controls [][]Control) error

	// Acknowledge answers an inbound control press. Must always be called,
	// even on error paths, so the control does not stay stuck in the UI.
	Acknowledge(ctx context.Context, callbackID, text string) error

	// RequestContact prompts the reviewer to share their phone number.
	RequestContact(ctx context.Context, chatID, text string) error

	// Events returns the channel of inbound reviewer events.
	Events() <-chan Event

	// Start begins background processing (e.g., long-polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// DeliverWithRetry sends a fresh message with bounded retries. Sending a
// new message is idempotent from the workflow's point of view, so a
// bounded retry is safe; edits and acknowledgements are never retried.
func DeliverWithRetry(ctx context.Context, svc Service, chatID, text string, controls [][]Control) (MessageRef, error) {
	var ref MessageRef
	var err error
	for attempt := 1; attempt <= DefaultSendAttempts; attempt++ {
		ref, err = svc.Deliver(ctx, chatID, text, controls)
		if err == nil {
			return ref, nil
		}
		slog.Warn("Deliver attempt failed", "chatID", chatID, "attempt", attempt, "error", err)
		if attempt < DefaultSendAttempts {
			select {
			case <-ctx.Done():
				return MessageRef{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * DefaultRetryBackoff):
			}
		}
	}
	return ref, err
}
