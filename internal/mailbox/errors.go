package mailbox

import (
	"errors"
	"fmt"
)

// ErrLabelExists is wrapped by a mail store when creating a label that is
// already present in the mailbox.
var ErrLabelExists = errors.New("label already exists")

// ErrNoSender is wrapped by MalformedSenderError when the sender header is absent.
var ErrNoSender = errors.New("sender header missing")

// AuthError reports a failed credential exchange or refresh.
type AuthError struct {
	Mailbox string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed for %s: %v", e.Mailbox, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError reports a failed mail store call.
type ProviderError struct {
	Op        string
	MessageID string
	ThreadID  string
	Err       error
}

func (e *ProviderError) Error() string {
	msg := "provider " + e.Op
	if e.MessageID != "" {
		msg += " message=" + e.MessageID
	}
	if e.ThreadID != "" {
		msg += " thread=" + e.ThreadID
	}
	return msg + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MailerError reports a failed reply send.
type MailerError struct {
	Recipient string
	Err       error
}

func (e *MailerError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Recipient, e.Err)
}

func (e *MailerError) Unwrap() error { return e.Err }

// MalformedSenderError reports a sender header that yields no usable address.
type MalformedSenderError struct {
	MessageID string
	Header    string
	Err       error
}

func (e *MalformedSenderError) Error() string {
	return fmt.Sprintf("malformed sender %q on message %s: %v", e.Header, e.MessageID, e.Err)
}

func (e *MalformedSenderError) Unwrap() error { return e.Err }
