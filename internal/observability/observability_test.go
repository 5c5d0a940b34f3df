package observability

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
)

func TestSyncCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSyncCollector(reg)
	if err != nil {
		t.Fatalf("NewSyncCollector: %v", err)
	}
	c.ObserveAttempt("Waypoint", "acked", 0.02)
	c.ObserveAttempt("Waypoint", "timeout", 0.5)
	c.ObserveOperation("push", "success", 1.2)
	c.SetRows("waypoints", 7)

	if got := testutil.ToFloat64(c.Attempts.WithLabelValues("Waypoint", "acked")); got != 1 {
		t.Fatalf("acked attempts = %v", got)
	}
	if got := testutil.ToFloat64(c.Operations.WithLabelValues("push", "success")); got != 1 {
		t.Fatalf("operations = %v", got)
	}
	if got := testutil.ToFloat64(c.Rows.WithLabelValues("waypoints")); got != 7 {
		t.Fatalf("rows = %v", got)
	}
	if n := testutil.CollectAndCount(c.AckLatency); n != 1 {
		t.Fatalf("latency series = %d", n)
	}
}

func TestSyncCollectorReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewSyncCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewSyncCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Operations != b.Operations {
		t.Fatalf("expected existing collector to be reused")
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *SyncCollector
	c.ObserveAttempt("Waypoint", "acked", 1)
	c.ObserveOperation("push", "success", 1)
	c.SetRows("waypoints", 1)
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := NewSyncCollector(reg)
	c.ObserveOperation("pull", "success", 0.1)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "pathplanner_sync_operations_total") {
		t.Fatalf("metrics body missing counter: %s", body)
	}
}

func TestInitTracingStdout(t *testing.T) {
	buf := &bytes.Buffer{}
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "stdout", Output: buf}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "push")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "\"push\"") {
		t.Fatalf("span not exported: %s", buf.String())
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error")
	}
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("disabled: %v", err)
	}
	_ = shutdown(context.Background())
}
