package otelmcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bc-dunia/mcpgo/internal/broadcast"
	"github.com/bc-dunia/mcpgo/internal/streamtransport"
)

// Compile-time assertions that Tracer/Metrics satisfy the consumer-side
// interfaces streamtransport and broadcast define for their optional
// telemetry hooks.
var (
	_ streamtransport.RequestTracer  = (*Tracer)(nil)
	_ streamtransport.StreamTracer   = (*Tracer)(nil)
	_ streamtransport.RequestMetrics = (*Metrics)(nil)
	_ broadcast.MetricsRecorder      = (*Metrics)(nil)
)

func TestNoopTracerStartRequestSpan(t *testing.T) {
	tr := NoopTracer()
	ctx, finish := tr.StartRequestSpan(context.Background(), "tools/call", "sess-1")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	finish(nil)
	finish(errors.New("boom")) // must not panic even if called twice
}

func TestNoopTracerStartStreamSpan(t *testing.T) {
	tr := NoopTracer()
	ctx, finish := tr.StartStreamSpan(context.Background(), "sess-1")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	finish()
}

func TestNoopMetricsRecordRequest(t *testing.T) {
	m := NoopMetrics()
	m.RecordRequest(context.Background(), "ping", "sess-1", 5*time.Millisecond, true)
	m.RecordRequest(context.Background(), "tools/call", "sess-1", 12*time.Millisecond, false)
}

func TestNoopMetricsRecordBroadcast(t *testing.T) {
	m := NoopMetrics()
	m.RecordBroadcast(context.Background(), 3, 2*time.Millisecond)
}

func TestNoopMetricsStreamGauge(t *testing.T) {
	m := NoopMetrics()
	m.RecordStreamOpen(context.Background())
	m.RecordStreamClose(context.Background())
}

func TestNewTracerDisabledIsNoop(t *testing.T) {
	tr, err := NewTracer(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("new tracer: %v", err)
	}
	if tr.Enabled() {
		t.Fatal("expected a disabled config to yield a disabled tracer")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(context.Background(), &MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
