package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/janus/pkg/config"
)

func newTestCollector() *Collector {
	cfg := &config.MetricsConfig{Enabled: true}
	return NewCollector(cfg, nil)
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading metrics body: %v", err)
	}
	return string(body)
}

func TestRecordRequest(t *testing.T) {
	c := newTestCollector()

	c.RecordRequest("alice", "authorized", 120*time.Millisecond)
	c.RecordRequest("alice", "authorized", 80*time.Millisecond)
	c.RecordRequest("", "denied", 5*time.Millisecond)

	body := scrape(t, c)

	if !strings.Contains(body, `janus_requests_total{identity="alice",outcome="authorized"} 2`) {
		t.Errorf("missing authorized counter for alice:\n%s", body)
	}
	if !strings.Contains(body, `janus_requests_total{identity="unknown",outcome="denied"} 1`) {
		t.Errorf("empty identity should be labeled unknown:\n%s", body)
	}
	if !strings.Contains(body, "janus_request_duration_seconds_bucket") {
		t.Error("missing duration histogram")
	}
}

func TestRecordUpstreamError(t *testing.T) {
	c := newTestCollector()

	c.RecordUpstreamError("timeout")
	c.RecordUpstreamError("unreachable")
	c.RecordUpstreamError("unreachable")

	body := scrape(t, c)

	if !strings.Contains(body, `janus_upstream_errors_total{kind="unreachable"} 2`) {
		t.Errorf("missing unreachable counter:\n%s", body)
	}
	if !strings.Contains(body, `janus_upstream_errors_total{kind="timeout"} 1`) {
		t.Errorf("missing timeout counter:\n%s", body)
	}
}

func TestRecordDroppedUsage(t *testing.T) {
	c := newTestCollector()

	c.RecordDroppedUsage()

	if !strings.Contains(scrape(t, c), "janus_usage_records_dropped_total 1") {
		t.Error("missing dropped records counter")
	}
}

func TestDisabledCollectorIsInert(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: false}
	c := NewCollector(cfg, nil)

	c.RecordRequest("alice", "authorized", time.Millisecond)
	c.RecordUpstreamError("timeout")
	c.RecordDroppedUsage()

	body := scrape(t, c)
	if strings.Contains(body, `identity="alice"`) {
		t.Error("disabled collector recorded a request")
	}
}

func TestCustomNamespace(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true, Namespace: "edge"}
	c := NewCollector(cfg, nil)

	c.RecordRequest("bob", "authorized", time.Millisecond)

	if !strings.Contains(scrape(t, c), "edge_requests_total") {
		t.Error("custom namespace not applied")
	}
}
