package otelmcp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Metrics wraps OpenTelemetry metrics with MCP-specific instruments,
// grounded on the teacher's otel.Metrics (exporter/resource/meter
// construction) but with request/broadcast/stream instruments in place
// of mcpdrill's load-generator instruments.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.RWMutex

	requestLatency     metric.Float64Histogram
	requestErrors      metric.Int64Counter
	activeStreams      metric.Int64UpDownCounter
	broadcastLatency   metric.Float64Histogram
	broadcastDelivered metric.Int64Counter
	processCPUPercent  metric.Float64ObservableGauge
	processRSSBytes    metric.Int64ObservableGauge
}

// NewMetrics creates a Metrics instance per cfg. A nil or disabled cfg
// yields a no-op meter so callers never need a nil check before use.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otelmcp: create metrics exporter: %w", err)
	}

	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("otelmcp: create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("otelmcp: register instruments: %w", err)
	}

	return m, nil
}

func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes("", attrs...))
}

func (m *Metrics) registerInstruments() error {
	var err error

	m.requestLatency, err = m.meter.Float64Histogram(
		"mcp.request.latency",
		metric.WithDescription("Latency of JSON-RPC request handling"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("request latency histogram: %w", err)
	}

	m.requestErrors, err = m.meter.Int64Counter(
		"mcp.request.errors",
		metric.WithDescription("Count of JSON-RPC requests that returned an error"),
	)
	if err != nil {
		return fmt.Errorf("request error counter: %w", err)
	}

	m.activeStreams, err = m.meter.Int64UpDownCounter(
		"mcp.streams.active",
		metric.WithDescription("Number of open GET SSE connections"),
	)
	if err != nil {
		return fmt.Errorf("active streams counter: %w", err)
	}

	m.broadcastLatency, err = m.meter.Float64Histogram(
		"mcp.broadcast.latency",
		metric.WithDescription("Latency of notification storage+fan-out"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("broadcast latency histogram: %w", err)
	}

	m.broadcastDelivered, err = m.meter.Int64Counter(
		"mcp.broadcast.delivered",
		metric.WithDescription("Count of live subscribers a broadcast notification reached"),
	)
	if err != nil {
		return fmt.Errorf("broadcast delivered counter: %w", err)
	}

	return nil
}

// RecordRequest satisfies streamtransport.RequestMetrics.
func (m *Metrics) RecordRequest(ctx context.Context, method, sessionID string, latency time.Duration, success bool) {
	if m.requestLatency != nil {
		m.requestLatency.Record(ctx, float64(latency.Milliseconds()),
			metric.WithAttributes(attribute.String("method", method), attribute.Bool("success", success)))
	}
	if !success && m.requestErrors != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	}
}

// RecordBroadcast satisfies broadcast.MetricsRecorder.
func (m *Metrics) RecordBroadcast(ctx context.Context, delivered int, latency time.Duration) {
	if m.broadcastLatency != nil {
		m.broadcastLatency.Record(ctx, float64(latency.Milliseconds()))
	}
	if m.broadcastDelivered != nil {
		m.broadcastDelivered.Add(ctx, int64(delivered))
	}
}

// RecordStreamOpen increments the active-streams gauge.
func (m *Metrics) RecordStreamOpen(ctx context.Context) {
	if m.activeStreams != nil {
		m.activeStreams.Add(ctx, 1)
	}
}

// RecordStreamClose decrements the active-streams gauge.
func (m *Metrics) RecordStreamClose(ctx context.Context) {
	if m.activeStreams != nil {
		m.activeStreams.Add(ctx, -1)
	}
}

// RunHostMetricsReporter periodically samples this process's CPU/RSS
// via gopsutil and emits them as OTel observable gauges, generalizing
// the teacher's internal/vu health reporter (WorkerHealth's CPU/memory
// sampling) from per-VU worker health to this server process's own
// health. It blocks until ctx is cancelled.
func (m *Metrics) RunHostMetricsReporter(ctx context.Context) error {
	if m.meter == nil {
		return nil
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("otelmcp: host metrics: %w", err)
	}

	cpuGauge, err := m.meter.Float64ObservableGauge(
		"mcp.process.cpu_percent",
		metric.WithDescription("Process CPU utilization percentage"),
	)
	if err != nil {
		return fmt.Errorf("otelmcp: cpu gauge: %w", err)
	}
	rssGauge, err := m.meter.Int64ObservableGauge(
		"mcp.process.rss_bytes",
		metric.WithDescription("Process resident set size in bytes"),
	)
	if err != nil {
		return fmt.Errorf("otelmcp: rss gauge: %w", err)
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if pct, err := proc.CPUPercent(); err == nil {
			o.ObserveFloat64(cpuGauge, pct)
		}
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			o.ObserveInt64(rssGauge, int64(info.RSS))
		}
		return nil
	}, cpuGauge, rssGauge)
	if err != nil {
		return fmt.Errorf("otelmcp: register host metrics callback: %w", err)
	}
	defer reg.Unregister()

	<-ctx.Done()
	return nil
}

// Shutdown flushes and stops the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// NoopMetrics returns a Metrics instance that records nothing, for
// tests and callers that haven't configured telemetry.
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	m := &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
	_ = m.registerInstruments()
	return m
}
