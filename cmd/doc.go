// Package cmd implements the command-line interface for autoreplier.
//
// This package provides the following commands:
//   - run: Poll the mailbox and answer new threads (default)
//   - auth: Authorize Gmail access and store the OAuth token
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
