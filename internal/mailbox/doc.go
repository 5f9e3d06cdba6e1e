// Package mailbox holds the data model shared by the auto-reply engine and
// the capability implementations it drives.
//
// It defines the listing snapshot (MessageSummary), the per-message detail
// needed to compose a reply (MessageDetail), labels, the opaque Credential
// handed from an authenticator to the mail store, and the error taxonomy
// used across the module:
//
//   - AuthError: credential exchange or refresh failed
//   - ProviderError: a mail store call failed
//   - MailerError: sending a reply failed
//   - MalformedSenderError: the sender header could not be parsed
//
// None of these errors is fatal to the engine; each is logged and the
// affected message is reconsidered on the next cycle.
package mailbox
