// Package config assembles the runtime configuration from the environment,
// optionally seeded from a .env file, and maps it onto the settings of the
// engine, the Gmail store, the mailer and the token store.
package config
