// Package logging provides structured logging utilities for autoreplier.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Text or JSON slog handlers selected by configuration
//   - PII sanitization (sender addresses are hashed)
//   - Consistent attribute naming for mailbox, message and thread identifiers
//
// # Usage Patterns
//
// Create a logger scoped to one message:
//
//	logger := logging.WithMessage(slog.Default(), msg.ID, msg.ThreadID)
//	logger.Info("reply sent", logging.SenderHash(sender))
//
// # Security Considerations
//
//   - Sender addresses are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly
package logging
