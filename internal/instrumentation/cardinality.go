package instrumentation

import "strings"

// ExtractUserDomain returns the domain part of an email address, or
// "unknown". Metric labels use it instead of full addresses.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "unknown"
	}
	return strings.ToLower(email[at+1:])
}

// Operation names for Google API metrics and spans.
const (
	OperationListMessages = "list_messages"
	OperationGetMessage   = "get_message"
	OperationGetThread    = "get_thread"
	OperationListLabels   = "list_labels"
	OperationCreateLabel  = "create_label"
	OperationModifyThread = "modify_thread"
)

// Skip reasons for RecordSkip.
const (
	SkipHandled         = "handled"
	SkipSent            = "sent"
	SkipDuplicateThread = "duplicate_thread"
	SkipMalformed       = "malformed_sender"
	SkipSelf            = "self"
	SkipFetchError      = "fetch_error"
)
