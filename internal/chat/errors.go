// Package chat implements the buyer-seller conversation core: identity
// resolution, the store adapter, the live subscription channel, and the
// per-view session controller.
package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for chat operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyMessage indicates a message text that is empty after trimming.
	// Never retried; surfaced to the user directly.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNotParticipant indicates a sender that is not one of the
	// conversation's two participants.
	ErrNotParticipant = errors.New("sender is not a conversation participant")

	// ErrMissingParticipant indicates an empty participant identifier
	// handed to the identity resolver.
	ErrMissingParticipant = errors.New("participant identifier is empty")

	// ErrMissingProduct indicates an empty product identifier.
	ErrMissingProduct = errors.New("product identifier is empty")

	// ErrSelfConversation indicates an attempt to open a conversation with
	// oneself. Rejected by the session controller before identity
	// resolution.
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")

	// ErrNoCurrentUser indicates Open was called without an authenticated
	// user id.
	ErrNoCurrentUser = errors.New("no current user")

	// ErrPermissionDenied indicates the store rejected the subscription or
	// query under its access rules. Never retried automatically.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTransientFailure indicates a network or store hiccup on the live
	// channel. Surfaced once; the caller decides whether to resubscribe.
	ErrTransientFailure = errors.New("transient store failure")

	// ErrSessionInit wraps any failure while opening a chat session.
	ErrSessionInit = errors.New("chat session initialization failed")

	// ErrSessionClosed indicates a send on a session that is closed or was
	// never opened.
	ErrSessionClosed = errors.New("chat session closed")
)

// SendError wraps an append failure and carries the original text so the
// UI can restore it to the input field.
type SendError struct {
	Text string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// classifyFeedError maps a live-channel failure onto the two categories
// callers handle: access-rule rejections become ErrPermissionDenied,
// everything else is ErrTransientFailure.
func classifyFeedError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrTransientFailure) {
		return err
	}

	msg := err.Error()
	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg = queryErr.Message
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "not allowed") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	}
	return fmt.Errorf("%w: %v", ErrTransientFailure, err)
}
