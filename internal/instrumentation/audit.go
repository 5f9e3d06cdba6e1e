package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ReplyAudit captures one reply attempt for the audit log.
//
// # Privacy Considerations
//
// Recipient is a full email address. Attrs only writes it when the
// AuditLogger was configured with IncludePII; otherwise the recipient's
// domain is logged.
type ReplyAudit struct {
	MessageID string
	ThreadID  string
	Recipient string
	Subject   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	DryRun    bool
	Labeled   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewReplyAudit creates a ReplyAudit with timing started.
func NewReplyAudit(messageID, threadID, recipient string) *ReplyAudit {
	return &ReplyAudit{
		MessageID: messageID,
		ThreadID:  threadID,
		Recipient: recipient,
		StartTime: time.Now(),
	}
}

// WithSubject sets the reply subject.
func (ra *ReplyAudit) WithSubject(subject string) *ReplyAudit {
	ra.Subject = subject
	return ra
}

// WithSpanContext copies trace identifiers from the span in ctx.
func (ra *ReplyAudit) WithSpanContext(ctx context.Context) *ReplyAudit {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		ra.TraceID = sc.TraceID().String()
		ra.SpanID = sc.SpanID().String()
	}
	return ra
}

// Complete stamps the duration and outcome.
func (ra *ReplyAudit) Complete(err error) *ReplyAudit {
	ra.Duration = time.Since(ra.StartTime)
	ra.Success = err == nil
	if err != nil {
		ra.Error = err.Error()
	}
	return ra
}

// Status returns "dry_run", "success" or "error".
func (ra *ReplyAudit) Status() string {
	switch {
	case ra.DryRun && ra.Success:
		return StatusDryRun
	case ra.Success:
		return StatusSuccess
	default:
		return StatusError
	}
}

// RecipientDomain returns the recipient's domain for lower-cardinality logs.
func (ra *ReplyAudit) RecipientDomain() string {
	return ExtractUserDomain(ra.Recipient)
}

// Attrs returns the slog attributes for the record. includePII selects
// between the full recipient and its domain.
func (ra *ReplyAudit) Attrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("message_id", ra.MessageID),
		slog.String("thread_id", ra.ThreadID),
		slog.String("status", ra.Status()),
		slog.Bool("labeled", ra.Labeled),
		slog.Duration("duration", ra.Duration),
	}

	if includePII {
		attrs = append(attrs, slog.String("recipient", ra.Recipient))
		if ra.Subject != "" {
			attrs = append(attrs, slog.String("subject", ra.Subject))
		}
	} else {
		attrs = append(attrs, slog.String("recipient_domain", ra.RecipientDomain()))
	}

	if ra.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ra.TraceID))
	}
	if ra.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ra.SpanID))
	}
	if ra.Error != "" {
		attrs = append(attrs, slog.String("error", ra.Error))
	}

	return attrs
}

// AuditLogger writes ReplyAudit records. A nil *AuditLogger discards them.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from config. A nil logger falls
// back to slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogReply writes one record: info on success, warn on failure.
func (al *AuditLogger) LogReply(ctx context.Context, ra *ReplyAudit) {
	if al == nil || !al.enabled || ra == nil {
		return
	}

	level := slog.LevelInfo
	if !ra.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "reply_audit", ra.Attrs(al.includePII)...)
}
