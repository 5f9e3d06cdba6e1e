package instrumentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearInstrumentationEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvServiceName, EnvServiceInstanceID, EnvEnabled, EnvMetricsExporter,
		EnvTracingExporter, EnvOTLPEndpoint, EnvOTLPInsecure, EnvMetricInterval,
		EnvTraceSamplingRate, EnvDetailedLabels, EnvAuditEnabled, EnvAuditIncludePII,
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "autoreplier", config.ServiceName)
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, ExporterNone, config.TracingExporter)
	assert.Equal(t, DefaultMetricInterval, config.MetricInterval)
	assert.InDelta(t, 0.1, config.TraceSamplingRate, 1e-9)
	assert.True(t, config.AuditLogging.Enabled)
	assert.False(t, config.AuditLogging.IncludePII)
	assert.NoError(t, config.Validate())
}

func TestConfigFromEnv_Unset(t *testing.T) {
	clearInstrumentationEnv(t)

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	clearInstrumentationEnv(t)
	t.Setenv(EnvServiceName, "replier-test")
	t.Setenv(EnvEnabled, "false")
	t.Setenv(EnvMetricsExporter, "stdout")
	t.Setenv(EnvTracingExporter, "stdout")
	t.Setenv(EnvTraceSamplingRate, "0.5")
	t.Setenv(EnvDetailedLabels, "true")
	t.Setenv(EnvAuditIncludePII, "1")

	config, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "replier-test", config.ServiceName)
	assert.False(t, config.Enabled)
	assert.Equal(t, ExporterStdout, config.MetricsExporter)
	assert.Equal(t, ExporterStdout, config.TracingExporter)
	assert.InDelta(t, 0.5, config.TraceSamplingRate, 1e-9)
	assert.True(t, config.DetailedLabels)
	assert.True(t, config.AuditLogging.IncludePII)
}

func TestConfigFromEnv_MetricInterval(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "5000", want: 5 * time.Second},
		{raw: "1m", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			clearInstrumentationEnv(t)
			t.Setenv(EnvMetricInterval, tt.raw)

			config, err := ConfigFromEnv()
			require.NoError(t, err)
			assert.Equal(t, tt.want, config.MetricInterval)
		})
	}
}

func TestConfigFromEnv_InvalidValues(t *testing.T) {
	clearInstrumentationEnv(t)
	t.Setenv(EnvEnabled, "maybe")
	t.Setenv(EnvTraceSamplingRate, "lots")
	t.Setenv(EnvMetricInterval, "soon")

	config, err := ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvEnabled)
	assert.Contains(t, err.Error(), EnvTraceSamplingRate)
	assert.Contains(t, err.Error(), EnvMetricInterval)

	// Bad values keep their defaults.
	assert.True(t, config.Enabled)
	assert.InDelta(t, 0.1, config.TraceSamplingRate, 1e-9)
	assert.Equal(t, DefaultMetricInterval, config.MetricInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		errContains string
	}{
		{
			name:   "prometheus without tracing",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone},
		},
		{
			name:   "otlp tracing with endpoint",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
		{
			name:        "negative sampling rate",
			config:      Config{TraceSamplingRate: -0.5},
			errContains: "sampling rate",
		},
		{
			name:        "sampling rate above one",
			config:      Config{TraceSamplingRate: 1.5},
			errContains: "sampling rate",
		},
		{
			name:        "unknown metrics exporter",
			config:      Config{MetricsExporter: "statsd"},
			errContains: "invalid metrics exporter",
		},
		{
			name:        "unknown tracing exporter",
			config:      Config{TracingExporter: "zipkin"},
			errContains: "invalid tracing exporter",
		},
		{
			name:        "negative metric interval",
			config:      Config{MetricInterval: -time.Second},
			errContains: "metric interval",
		},
		{
			name:        "otlp metrics without endpoint",
			config:      Config{MetricsExporter: ExporterOTLP},
			errContains: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
