package responder

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/autoreplier/internal/instrumentation"
	"github.com/teemow/autoreplier/internal/mailbox"
)

// Defaults applied by New to zero-valued Options fields.
const (
	DefaultReplyText   = "Thank you for your email!"
	DefaultMinInterval = 45 * time.Second
	DefaultMaxInterval = 120 * time.Second
	DefaultConcurrency = 4

	DefaultMalformedSenderMaxAttempts = 3
)

// Options configures an Engine.
type Options struct {
	// Mailbox is the account being answered. It is also the From address.
	Mailbox string

	// ReplyText is the plain-text body of every reply.
	ReplyText string

	// HandledLabel names the label that marks a thread as answered.
	HandledLabel string

	// MinInterval and MaxInterval bound the pause between cycles.
	MinInterval time.Duration
	MaxInterval time.Duration

	// Concurrency caps the number of messages processed at once.
	Concurrency int

	// LabelCacheTTL keeps the handled label ID across cycles. Zero
	// resolves it again every cycle.
	LabelCacheTTL time.Duration

	// MalformedSenderMaxAttempts stops re-fetching a message whose sender
	// never parses. Zero retries forever; negative values mean the default.
	MalformedSenderMaxAttempts int

	// DryRun logs the replies that would be sent and changes nothing.
	DryRun bool
}

func (o *Options) applyDefaults() {
	if o.ReplyText == "" {
		o.ReplyText = DefaultReplyText
	}
	if o.HandledLabel == "" {
		o.HandledLabel = mailbox.DefaultHandledLabel
	}
	if o.MinInterval == 0 && o.MaxInterval == 0 {
		o.MinInterval = DefaultMinInterval
		o.MaxInterval = DefaultMaxInterval
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MalformedSenderMaxAttempts < 0 {
		o.MalformedSenderMaxAttempts = DefaultMalformedSenderMaxAttempts
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	if o.Mailbox == "" {
		return errors.New("mailbox is required")
	}
	if o.MinInterval <= 0 {
		return fmt.Errorf("min interval must be positive, got %s", o.MinInterval)
	}
	if o.MinInterval > o.MaxInterval {
		return fmt.Errorf("min interval %s exceeds max interval %s", o.MinInterval, o.MaxInterval)
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.LabelCacheTTL < 0 {
		return fmt.Errorf("label cache TTL must not be negative, got %s", o.LabelCacheTTL)
	}
	return nil
}

// Option customizes an Engine beyond its Options.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records cycle, reply and skip metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditLogger writes a ReplyAudit record for every reply attempt.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(e *Engine) { e.audit = al }
}

// WithCycleObserver registers fn to receive every CycleReport.
func WithCycleObserver(fn func(CycleReport)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// WithDelayFunc replaces the random inter-cycle delay.
func WithDelayFunc(fn func() time.Duration) Option {
	return func(e *Engine) {
		if fn != nil {
			e.delay = fn
		}
	}
}

// WithClock replaces time.Now for the label cache and reports.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
