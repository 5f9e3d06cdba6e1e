package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrReason    = "reason"
	attrDomain    = "sender_domain"
)

// Metrics records the engine's counters and histograms. A nil *Metrics
// and a zero Metrics are both valid and record nothing.
type Metrics struct {
	cyclesTotal   metric.Int64Counter
	cycleDuration metric.Float64Histogram
	cycleMessages metric.Int64Histogram

	repliesTotal    metric.Int64Counter
	skippedTotal    metric.Int64Counter
	smtpSendLatency metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthTokenRefreshTotal metric.Int64Counter

	// detailedLabels adds sender_domain to reply counters
	detailedLabels bool
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.cyclesTotal, err = meter.Int64Counter(
		"autoreply_cycles_total",
		metric.WithDescription("Total number of polling cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autoreply_cycles_total counter: %w", err)
	}

	m.cycleDuration, err = meter.Float64Histogram(
		"autoreply_cycle_duration_seconds",
		metric.WithDescription("Wall time of one polling cycle in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autoreply_cycle_duration_seconds histogram: %w", err)
	}

	m.cycleMessages, err = meter.Int64Histogram(
		"autoreply_cycle_messages",
		metric.WithDescription("Messages returned by the listing for one cycle"),
		metric.WithUnit("{message}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100, 250, 500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autoreply_cycle_messages histogram: %w", err)
	}

	m.repliesTotal, err = meter.Int64Counter(
		"autoreply_replies_total",
		metric.WithDescription("Total number of reply attempts"),
		metric.WithUnit("{reply}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autoreply_replies_total counter: %w", err)
	}

	m.skippedTotal, err = meter.Int64Counter(
		"autoreply_messages_skipped_total",
		metric.WithDescription("Messages skipped without a reply, by reason"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create autoreply_messages_skipped_total counter: %w", err)
	}

	m.smtpSendLatency, err = meter.Float64Histogram(
		"smtp_send_duration_seconds",
		metric.WithDescription("SMTP submission duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp_send_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordCycle records one finished polling cycle.
func (m *Metrics) RecordCycle(ctx context.Context, status string, listed int, duration time.Duration) {
	if m == nil || m.cyclesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	m.cyclesTotal.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, duration.Seconds(), attrs)
	m.cycleMessages.Record(ctx, int64(listed), attrs)
}

// RecordReply records a reply attempt. status is one of StatusSuccess,
// StatusError or StatusDryRun. domain is only attached with detailed labels.
func (m *Metrics) RecordReply(ctx context.Context, status, domain string) {
	if m == nil || m.repliesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrStatus, status)}
	if m.detailedLabels && domain != "" {
		attrs = append(attrs, attribute.String(attrDomain, domain))
	}

	m.repliesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSkip records a message that was passed over, e.g. "handled",
// "sent", "malformed_sender" or "self".
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil || m.skippedTotal == nil {
		return
	}

	m.skippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordSMTPSend records the latency of one SMTP submission.
func (m *Metrics) RecordSMTPSend(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.smtpSendLatency == nil {
		return
	}

	m.smtpSendLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordGoogleAPIOperation records a Google API operation.
//
// Parameters:
//   - service: Google service name (gmail)
//   - operation: Operation type (list_messages, get_message, create_label, ...)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
