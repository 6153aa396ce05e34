package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/config"
)

func TestStartSpan_Nesting(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "request")
	_, child := StartSpan(ctx, "panel top-products")

	if len(parent.SpanID) != 16 || len(parent.TraceID) != 16 {
		t.Errorf("ids = %q/%q, want 16 hex chars", parent.SpanID, parent.TraceID)
	}
	if child.TraceID != parent.TraceID {
		t.Errorf("child trace = %q, want %q", child.TraceID, parent.TraceID)
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child parent = %q, want %q", child.ParentID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child and parent share a span id")
	}
	if GetSpan(ctx) != parent {
		t.Error("GetSpan should return the span stored in the context")
	}
}

func TestSpan_FinishAndLog(t *testing.T) {
	_, span := StartSpan(context.Background(), "load")
	span.SetTag("rows", "42")
	span.SetError(errors.New("boom"))
	time.Sleep(time.Millisecond)

	d := span.Finish()
	if d <= 0 || span.Duration == nil || *span.Duration != d {
		t.Errorf("Finish() = %v, Duration = %v", d, span.Duration)
	}

	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "info", Format: "json"})
	logger.Info("span", "span", span)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "sales-dashboard" {
		t.Errorf("service = %v", entry["service"])
	}
	group, ok := entry["span"].(map[string]any)
	if !ok {
		t.Fatalf("span attribute = %T, want a group", entry["span"])
	}
	if group["status"] != string(SpanStatusError) || group["error"] != "boom" || group["rows"] != "42" {
		t.Errorf("span group = %v", group)
	}
}

func TestNewLoggerTo_Level(t *testing.T) {
	tests := []struct {
		level     string
		format    string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", format: "text", wantDebug: true, wantInfo: true},
		{level: "info", format: "json", wantInfo: true},
		{level: "error", format: "json"},
		{level: "bogus", format: "bogus", wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(&buf, config.LoggerConfig{Level: tt.level, Format: tt.format})

			logger.Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			logger.Info("info line")
			if got := strings.Contains(buf.String(), "info line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want req-1", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	ObserveHTTPRequest("GET", "200", 3*time.Millisecond)
	ObservePanelQuery("top-products", time.Millisecond, nil)
	ObservePanelQuery("top-products", time.Millisecond, errors.New("failed"))
	RecordDatasetLoad(1234, 2*time.Second, map[string]int{"sales": 3})

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)

	for _, want := range []string{
		`sales_dashboard_http_requests_total{method="GET",status="200"}`,
		`sales_dashboard_panel_query_errors_total{panel="top-products"} 1`,
		`sales_dashboard_dataset_rows 1234`,
		`sales_dashboard_dataset_bad_cells{column="sales"} 3`,
		`sales_dashboard_panel_query_duration_seconds_count{panel="top-products"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
