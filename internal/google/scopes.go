package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the scopes requested during consent.
//
// gmail.modify covers reading messages and creating and applying labels.
// Replies go out over SMTP with an app password, so no send scope is needed.
var DefaultOAuthScopes = []string{
	gmail.GmailModifyScope,
}
