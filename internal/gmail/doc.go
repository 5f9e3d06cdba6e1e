// Package gmail implements the responder's MailStore on the Gmail REST API.
//
// Every call is throttled by a shared token bucket, bounded by a per-call
// timeout, traced as google.gmail.<operation> and counted in
// google_api_operations_total. Failures are returned as
// *mailbox.ProviderError.
//
// Listing returns one summary per message. Its LabelIDs hold the message's
// own labels plus the user labels found on any message of the same
// thread, so a thread labeled once is recognized even when new messages
// arrive in it later.
//
//	store := gmail.New(gmail.Config{Query: "in:inbox", MaxResults: 100})
//	summaries, err := store.ListMessages(ctx, cred, "me@example.com")
package gmail
