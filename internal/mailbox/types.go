package mailbox

import (
	"slices"

	"golang.org/x/oauth2"
)

// Well-known system label IDs.
const (
	LabelSent  = "SENT"
	LabelInbox = "INBOX"
)

// DefaultHandledLabel marks threads that already received an automatic reply.
const DefaultHandledLabel = "AutoReplied"

// MessageSummary is a snapshot of one listed message taken at listing time.
type MessageSummary struct {
	ID       string
	ThreadID string
	LabelIDs []string
}

// HasLabel reports whether the summary carries any of the given label IDs or names.
// Empty values are ignored.
func (s MessageSummary) HasLabel(labels ...string) bool {
	for _, l := range labels {
		if l == "" {
			continue
		}
		if slices.Contains(s.LabelIDs, l) {
			return true
		}
	}
	return false
}

// MessageDetail carries the headers needed to compose a reply.
type MessageDetail struct {
	SenderAddress string
	Subject       string

	// MessageID is the RFC 5322 Message-ID without angle brackets, and
	// References the msg-ids of its References header. Either may be empty.
	MessageID  string
	References []string
}

// Label is a mailbox label.
type Label struct {
	ID   string
	Name string
}

// FindLabel returns the label whose name matches exactly (case-sensitive).
func FindLabel(labels []Label, name string) (Label, bool) {
	for _, l := range labels {
		if l.Name == name {
			return l, true
		}
	}
	return Label{}, false
}

// Credential is an opaque token bundle produced by an authenticator and
// consumed by a mail store. The engine only passes it through.
type Credential struct {
	token *oauth2.Token
}

// NewCredential wraps an OAuth token.
func NewCredential(token *oauth2.Token) Credential {
	return Credential{token: token}
}

// Token returns the wrapped OAuth token.
func (c Credential) Token() *oauth2.Token {
	return c.token
}

// Valid reports whether the credential holds a non-expired access token.
func (c Credential) Valid() bool {
	return c.token.Valid()
}

// Message is an outgoing plain-text reply.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string

	// InReplyTo and References thread the reply with the original.
	InReplyTo  string
	References []string
}

// ReplyReferences returns the References of a reply to d: the original's
// references followed by its own Message-ID.
func (d MessageDetail) ReplyReferences() []string {
	if d.MessageID == "" {
		return slices.Clone(d.References)
	}
	return append(slices.Clone(d.References), d.MessageID)
}
