// Package google handles OAuth2 for the Gmail API: loading client secrets,
// the interactive consent flow, durable token storage and an Authenticator
// that refreshes tokens and writes every new token back to its store.
//
// Tokens are kept per mailbox, either as JSON files under the user cache
// directory or in Valkey.
package google
