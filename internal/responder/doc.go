// Package responder runs the poll, reply and label cycle for one mailbox.
//
// An Engine lists candidate messages through a MailStore, replies to each
// unhandled thread through a Mailer and then tags the thread with the
// handled label so later cycles pass it over. Credentials come from an
// Authenticator and are handed to the MailStore untouched.
//
// A thread is labeled only after its reply was sent. If labeling fails the
// thread is answered again on a later cycle; the engine accepts that
// duplicate rather than risk never replying.
package responder
