package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys shared by every component.
const (
	KeyService    = "service"
	KeyMailbox    = "mailbox"
	KeyMessageID  = "message_id"
	KeyThreadID   = "thread_id"
	KeySenderHash = "sender_hash"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyReason     = "reason"
)

// WithService tags logger with the remote service it talks to.
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// WithMailbox tags logger with the hashed mailbox address.
func WithMailbox(logger *slog.Logger, mailbox string) *slog.Logger {
	return logger.With(Mailbox(mailbox))
}

// WithMessage tags logger with a message and its thread.
func WithMessage(logger *slog.Logger, messageID, threadID string) *slog.Logger {
	return logger.With(MessageID(messageID), ThreadID(threadID))
}

// Mailbox is the hashed mailbox address.
func Mailbox(mailbox string) slog.Attr {
	return slog.String(KeyMailbox, AnonymizeEmail(mailbox))
}

func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

func ThreadID(id string) slog.Attr {
	return slog.String(KeyThreadID, id)
}

// Reason says why a message was skipped.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// SenderHash is the hashed sender address of a message being answered.
func SenderHash(email string) slog.Attr {
	return slog.String(KeySenderHash, AnonymizeEmail(email))
}

// Err formats err under KeyError. A nil err yields an empty group, which
// slog drops, so Err(maybeNil) is safe to pass unconditionally.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail maps an address to a stable "user:<hex>" token so log lines
// about the same correspondent can be correlated. Case is ignored.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(sum[:8])
}

// SanitizeToken reports only the length of a secret.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain returns the lowercased part after the last "@", or "" when
// address has no usable domain.
func ExtractDomain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
