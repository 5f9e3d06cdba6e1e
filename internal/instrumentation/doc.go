// Package instrumentation provides OpenTelemetry metrics, tracing and
// reply audit logging for autoreplier.
//
// # Metrics
//
//   - autoreply_cycles_total, autoreply_cycle_duration_seconds and
//     autoreply_cycle_messages, by cycle status
//   - autoreply_replies_total by status (success, error, dry_run)
//   - autoreply_messages_skipped_total by reason
//   - smtp_send_duration_seconds
//   - google_api_operations_total and google_api_operation_duration_seconds
//     by service, operation and status
//   - oauth_token_refresh_total by result
//
// # Tracing
//
// Spans are started for each cycle, each message, every Gmail call
// (google.gmail.<operation>) and every SMTP submission (smtp.send).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: autoreplier)
//   - OTEL_METRIC_EXPORT_INTERVAL: Push interval in milliseconds (default: 10000)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
//
// # Example Usage
//
//	config, err := instrumentation.ConfigFromEnv()
//	if err != nil {
//		return err
//	}
//	provider, err := instrumentation.NewProvider(ctx, config)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail,
//		instrumentation.OperationListMessages, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
