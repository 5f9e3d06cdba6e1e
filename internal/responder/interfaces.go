package responder

import (
	"context"

	"github.com/teemow/autoreplier/internal/mailbox"
)

// Authenticator yields a credential that is valid for at least the next call.
// Failures are reported as *mailbox.AuthError.
type Authenticator interface {
	Credential(ctx context.Context) (mailbox.Credential, error)
}

// MailStore is the mail provider surface the engine needs. Implementations
// must be safe for concurrent use and report failures as
// *mailbox.ProviderError.
type MailStore interface {
	ListMessages(ctx context.Context, cred mailbox.Credential, mb string) ([]mailbox.MessageSummary, error)
	GetMessage(ctx context.Context, cred mailbox.Credential, mb, id string) (mailbox.MessageDetail, error)
	ListLabels(ctx context.Context, cred mailbox.Credential, mb string) ([]mailbox.Label, error)
	// CreateLabel returns the new label's ID. It wraps mailbox.ErrLabelExists
	// when a label with that name is already present.
	CreateLabel(ctx context.Context, cred mailbox.Credential, mb, name string) (string, error)
	AddLabelToThread(ctx context.Context, cred mailbox.Credential, mb, threadID, labelID string) error
}

// Mailer sends a reply. Failures are reported as *mailbox.MailerError.
type Mailer interface {
	Send(ctx context.Context, msg mailbox.Message) error
}
