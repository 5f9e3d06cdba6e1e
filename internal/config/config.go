package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/joho/godotenv"

	"github.com/teemow/autoreplier/internal/gmail"
	"github.com/teemow/autoreplier/internal/google"
	"github.com/teemow/autoreplier/internal/mailbox"
	"github.com/teemow/autoreplier/internal/mailer"
	"github.com/teemow/autoreplier/internal/responder"
)

// Token store backends.
const (
	TokenStoreFile   = "file"
	TokenStoreValkey = "valkey"
)

const (
	DefaultCredentialsFile = "credentials.json"
	DefaultMetricsAddr     = ":9090"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config is the complete runtime configuration.
type Config struct {
	User        string
	AppPassword string

	CredentialsFile string
	TokenStore      string
	TokenDir        string
	Valkey          google.ValkeyConfig

	ReplyText      string
	HandledLabel   string
	Query          string
	ExcludeHandled bool
	MaxResults     int64
	MinInterval    time.Duration
	MaxInterval    time.Duration
	DryRun         bool

	SMTPAddr string
	SMTPTLS  string

	Concurrency                int
	APIRate                    float64
	CallTimeout                time.Duration
	LabelCacheTTL              time.Duration
	MalformedSenderMaxAttempts int

	LogLevel  string
	LogFormat string

	MetricsEnabled bool
	MetricsAddr    string
}

// LoadDotEnv loads variables from the given files, or from ./.env. Missing
// files are ignored and variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv reads the configuration from environment variables. Values that
// fail to parse are reported together.
func FromEnv() (Config, error) {
	e := &env{}

	cfg := Config{
		User:            strings.TrimSpace(os.Getenv("GMAIL_USER")),
		AppPassword:     strings.ReplaceAll(os.Getenv("GMAIL_APP_PASSWORD"), " ", ""),
		CredentialsFile: e.str("GOOGLE_CREDENTIALS_FILE", DefaultCredentialsFile),
		TokenStore:      strings.ToLower(e.str("TOKEN_STORE", TokenStoreFile)),
		TokenDir:        os.Getenv("TOKEN_DIR"),
		Valkey: google.ValkeyConfig{
			URL:        os.Getenv("VALKEY_URL"),
			Password:   os.Getenv("VALKEY_PASSWORD"),
			DB:         e.int("VALKEY_DB", 0),
			TLSEnabled: e.bool("VALKEY_TLS_ENABLED", false),
			KeyPrefix:  e.str("VALKEY_KEY_PREFIX", google.DefaultValkeyKeyPrefix),
		},

		ReplyText:      e.str("REPLY_TEXT", responder.DefaultReplyText),
		HandledLabel:   e.str("HANDLED_LABEL", mailbox.DefaultHandledLabel),
		Query:          e.str("LIST_QUERY", gmail.DefaultQuery),
		ExcludeHandled: e.bool("LIST_EXCLUDE_HANDLED", false),
		MaxResults:     int64(e.int("LIST_MAX_RESULTS", gmail.DefaultMaxResults)),
		MinInterval:    e.duration("POLL_MIN_INTERVAL", responder.DefaultMinInterval),
		MaxInterval:    e.duration("POLL_MAX_INTERVAL", responder.DefaultMaxInterval),
		DryRun:         e.bool("DRY_RUN", false),

		SMTPAddr: e.str("SMTP_ADDR", mailer.DefaultAddr),
		SMTPTLS:  strings.ToLower(e.str("SMTP_TLS", mailer.TLSImplicit)),

		Concurrency:                e.int("CONCURRENCY", responder.DefaultConcurrency),
		APIRate:                    e.float("API_RATE", gmail.DefaultAPIRate),
		CallTimeout:                e.duration("CALL_TIMEOUT", gmail.DefaultCallTimeout),
		LabelCacheTTL:              e.duration("LABEL_CACHE_TTL", 0),
		MalformedSenderMaxAttempts: e.int("MALFORMED_SENDER_MAX_ATTEMPTS", responder.DefaultMalformedSenderMaxAttempts),

		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", DefaultLogLevel)),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", DefaultLogFormat)),

		MetricsEnabled: e.bool("METRICS_ENABLED", true),
		MetricsAddr:    e.str("METRICS_ADDR", DefaultMetricsAddr),
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.User == "" {
		errs = append(errs, errors.New("GMAIL_USER is required"))
	} else if _, err := mail.ParseAddress(c.User); err != nil {
		errs = append(errs, fmt.Errorf("GMAIL_USER: %w", err))
	}
	if c.AppPassword == "" && !c.DryRun {
		errs = append(errs, errors.New("GMAIL_APP_PASSWORD is required unless running in dry-run mode"))
	}
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE must not be empty"))
	}
	if err := c.validateTokenStore(); err != nil {
		errs = append(errs, err)
	}

	if c.HandledLabel == "" {
		errs = append(errs, errors.New("HANDLED_LABEL must not be empty"))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("LIST_MAX_RESULTS must be positive, got %d", c.MaxResults))
	}
	if c.MinInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_MIN_INTERVAL must be positive, got %s", c.MinInterval))
	}
	if c.MinInterval > c.MaxInterval {
		errs = append(errs, fmt.Errorf("POLL_MIN_INTERVAL (%s) exceeds POLL_MAX_INTERVAL (%s)", c.MinInterval, c.MaxInterval))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("CONCURRENCY must be positive, got %d", c.Concurrency))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CALL_TIMEOUT must be positive, got %s", c.CallTimeout))
	}
	if c.LabelCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("LABEL_CACHE_TTL must not be negative, got %s", c.LabelCacheTTL))
	}
	if err := c.SMTPConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT %q (valid: text, json)", c.LogFormat))
	}
	if c.MetricsEnabled && c.MetricsAddr == "" {
		errs = append(errs, errors.New("METRICS_ADDR must be set when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// ValidateAuth checks only the settings the interactive consent flow needs.
func (c Config) ValidateAuth() error {
	var errs []error
	if c.User == "" {
		errs = append(errs, errors.New("GMAIL_USER is required"))
	}
	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE must not be empty"))
	}
	if err := c.validateTokenStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) validateTokenStore() error {
	switch c.TokenStore {
	case TokenStoreFile:
		return nil
	case TokenStoreValkey:
		if c.Valkey.URL == "" {
			return errors.New("VALKEY_URL is required when TOKEN_STORE=valkey")
		}
		return nil
	default:
		return fmt.Errorf("unsupported TOKEN_STORE %q (valid: file, valkey)", c.TokenStore)
	}
}

// EngineOptions maps the configuration onto responder.Options.
func (c Config) EngineOptions() responder.Options {
	return responder.Options{
		Mailbox:                    c.User,
		ReplyText:                  c.ReplyText,
		HandledLabel:               c.HandledLabel,
		MinInterval:                c.MinInterval,
		MaxInterval:                c.MaxInterval,
		Concurrency:                c.Concurrency,
		LabelCacheTTL:              c.LabelCacheTTL,
		MalformedSenderMaxAttempts: c.MalformedSenderMaxAttempts,
		DryRun:                     c.DryRun,
	}
}

// GmailConfig maps the configuration onto gmail.Config.
func (c Config) GmailConfig() gmail.Config {
	cfg := gmail.Config{
		Query:       c.Query,
		MaxResults:  c.MaxResults,
		APIRate:     c.APIRate,
		CallTimeout: c.CallTimeout,
	}
	if c.ExcludeHandled {
		cfg.ExcludeLabel = c.HandledLabel
	}
	return cfg
}

// SMTPConfig maps the configuration onto mailer.Config. The mailbox
// address doubles as the SMTP login.
func (c Config) SMTPConfig() mailer.Config {
	return mailer.Config{
		Addr:     c.SMTPAddr,
		Username: c.User,
		Password: c.AppPassword,
		TLSMode:  c.SMTPTLS,
		Timeout:  c.CallTimeout,
	}
}

type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

// duration accepts Go durations ("90s", "2m") and bare seconds ("45").
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
