package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Publish(OutcomePublished)
	m.Publish(OutcomePublished)
	m.Publish(OutcomeConflict)
	m.PublishRetry()
	m.AuditFailure()
	m.ArchiveFailure("s3")

	if got := testutil.ToFloat64(m.publishes.WithLabelValues(OutcomePublished)); got != 2 {
		t.Errorf("published = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues(OutcomeConflict)); got != 1 {
		t.Errorf("conflict = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.auditFailures); got != 1 {
		t.Errorf("audit failures = %v", got)
	}
	if got := testutil.ToFloat64(m.archiveFailures.WithLabelValues("s3")); got != 1 {
		t.Errorf("archive failures = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Publish(OutcomeError)
	m.AuditFailure()
	m.ObserveHTTP("/x", "GET", 200, time.Millisecond)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/v1/templates", "GET", 200, 5*time.Millisecond)
	m.Evaluation("weighted", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`scorecard_http_requests_total{method="GET",route="/api/v1/templates",status="200"} 1`,
		`scorecard_evaluations_total{method="weighted",passed="true"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
