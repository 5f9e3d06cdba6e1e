package instrumentation

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// Config selects exporters and sampling for a Provider.
type Config struct {
	ServiceName       string
	ServiceVersion    string
	ServiceInstanceID string // defaults to the hostname

	// Enabled turns metrics and tracing on. A disabled Provider still hands
	// out a usable no-op Metrics.
	Enabled bool

	MetricsExporter string // prometheus, otlp or stdout
	TracingExporter string // otlp, stdout or none

	// OTLPEndpoint is host:port of the collector, e.g. "localhost:4318".
	OTLPEndpoint string
	OTLPInsecure bool

	// MetricInterval is the push interval of the otlp and stdout metric
	// exporters. Prometheus is scraped and ignores it.
	MetricInterval time.Duration

	TraceSamplingRate float64

	// DetailedLabels adds the sender domain to reply metrics.
	// Keep disabled unless the set of correspondents is small.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the per-reply audit log.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII writes full recipient addresses instead of hashes.
	IncludePII bool
}

// Environment variables read by ConfigFromEnv.
const (
	EnvServiceName       = "OTEL_SERVICE_NAME"
	EnvServiceInstanceID = "OTEL_SERVICE_INSTANCE_ID"
	EnvEnabled           = "INSTRUMENTATION_ENABLED"
	EnvMetricsExporter   = "METRICS_EXPORTER"
	EnvTracingExporter   = "TRACING_EXPORTER"
	EnvOTLPEndpoint      = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure      = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvMetricInterval    = "OTEL_METRIC_EXPORT_INTERVAL"
	EnvTraceSamplingRate = "OTEL_TRACES_SAMPLER_ARG"
	EnvDetailedLabels    = "METRICS_DETAILED_LABELS"
	EnvAuditEnabled      = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePII   = "AUDIT_LOGGING_INCLUDE_PII"
)

const (
	defaultServiceName    = "autoreplier"
	defaultServiceVersion = "unknown"
	defaultSamplingRate   = 0.1
)

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// DefaultConfig returns the built-in defaults: prometheus metrics, no
// tracing, audit log on without PII.
func DefaultConfig() Config {
	return Config{
		ServiceName:       defaultServiceName,
		ServiceVersion:    defaultServiceVersion,
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		MetricInterval:    DefaultMetricInterval,
		TraceSamplingRate: defaultSamplingRate,
		AuditLogging:      AuditLoggingConfig{Enabled: true},
	}
}

// ConfigFromEnv overlays the environment on DefaultConfig. Unparseable
// values are reported together and leave the default in place.
func ConfigFromEnv() (Config, error) {
	c := DefaultConfig()
	var errs []error

	setString(&c.ServiceName, EnvServiceName)
	setString(&c.ServiceInstanceID, EnvServiceInstanceID)
	setString(&c.MetricsExporter, EnvMetricsExporter)
	setString(&c.TracingExporter, EnvTracingExporter)
	setString(&c.OTLPEndpoint, EnvOTLPEndpoint)

	errs = append(errs,
		setParsed(&c.Enabled, EnvEnabled, strconv.ParseBool),
		setParsed(&c.OTLPInsecure, EnvOTLPInsecure, strconv.ParseBool),
		setParsed(&c.DetailedLabels, EnvDetailedLabels, strconv.ParseBool),
		setParsed(&c.AuditLogging.Enabled, EnvAuditEnabled, strconv.ParseBool),
		setParsed(&c.AuditLogging.IncludePII, EnvAuditIncludePII, strconv.ParseBool),
		setParsed(&c.TraceSamplingRate, EnvTraceSamplingRate, parseFloat),
		setParsed(&c.MetricInterval, EnvMetricInterval, parseMillis),
	)

	return c, errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setParsed[T any](dst *T, key string, parse func(string) (T, error)) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid value %q", key, raw)
	}
	*dst = v
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parseMillis follows the OTel convention of a bare millisecond count and
// also accepts Go durations.
func parseMillis(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Validate checks exporter names, the sampling rate and that OTLP export has
// somewhere to go.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, want one of %v", c.MetricsExporter, metricsExporters))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, want one of %v", c.TracingExporter, tracingExporters))
	}
	if c.MetricInterval < 0 {
		errs = append(errs, fmt.Errorf("metric interval must not be negative, got %s", c.MetricInterval))
	}
	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		errs = append(errs, fmt.Errorf("OTLP endpoint is required when using an OTLP exporter; set %s", EnvOTLPEndpoint))
	}

	return errors.Join(errs...)
}

// Metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDryRun  = "dry_run"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"

	ServiceGmail = "gmail"
	ServiceSMTP  = "smtp"
)

// Exporter names.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// DefaultMetricInterval is the push interval when none is configured.
const DefaultMetricInterval = 10 * time.Second
