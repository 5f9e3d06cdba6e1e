// Package mailer sends automatic replies over SMTP.
//
// Gmail accepts app-password logins on smtp.gmail.com:465 with implicit TLS,
// which is the default. STARTTLS on port 587 and plain connections (for local
// relays and tests) are also supported.
package mailer
