// Package otelmcp wires OpenTelemetry tracing and metrics into the MCP
// request/session/stream domain: a span per JSON-RPC request, a span per
// GET SSE connection's lifetime, and counters/histograms for request
// latency, broadcaster fan-out, and active streams. It is grounded on
// the teacher's internal/otel package (tracer.go, metrics.go,
// middleware.go), generalized from mcpdrill's worker/run/VU domain
// (run_id, stage_id, worker_id, vu_id) to this module's request/session
// domain (mcp.method, mcp.session_id).
package otelmcp

import "time"

// ExporterType selects which exporter backs a Tracer or Metrics
// instance, mirroring the teacher's otel.ExporterType.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Config configures tracing, mirroring the teacher's otel.Config.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
	Attributes     map[string]string
}

// DefaultConfig returns tracing disabled (no-op tracer).
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		ServiceName:  "mcpgo",
		ExporterType: ExporterNone,
		SampleRate:   1.0,
	}
}

// MetricsConfig configures metrics, mirroring the teacher's otel.MetricsConfig.
type MetricsConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	ExporterType   ExporterType
	OTLPEndpoint   string
	OTLPInsecure   bool
	Attributes     map[string]string

	// HostMetricsInterval defaults to 15s but is not read by
	// Metrics.RunHostMetricsReporter: its CPU/RSS gauges are sampled
	// whenever the meter's reader collects, on no timer of their own.
	HostMetricsInterval time.Duration
}

// DefaultMetricsConfig returns metrics disabled (no-op meter).
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:             false,
		ServiceName:         "mcpgo",
		ExporterType:        ExporterNone,
		HostMetricsInterval: 15 * time.Second,
	}
}
