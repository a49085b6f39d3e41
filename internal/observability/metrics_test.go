package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Second)
	m.ObserveGeneration("pdf", "manual", "completed", time.Second)
	m.ObserveAudit("manual", true, false, time.Second, nil)
	m.IncAuditSkipped()

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503 from disabled metrics, got %d", rec.Code)
	}
}

func TestAuditIssueGaugeReplacedOnSuccess(t *testing.T) {
	m := newMetrics()
	m.ObserveAudit("scheduled", false, false, 2*time.Second, []IssueCount{
		{Severity: "critical", Type: "missing_track", Count: 1},
		{Severity: "warning", Type: "missing_pdf_url", Count: 3},
	})
	m.ObserveAudit("manual", true, false, time.Second, []IssueCount{
		{Severity: "warning", Type: "missing_pdf_url", Count: 2},
	})
	// A failed run keeps the last counts.
	m.ObserveAudit("manual", false, true, time.Second, nil)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `type="missing_track"`) {
		t.Fatalf("stale issue series still exported:\n%s", out)
	}
	if !strings.Contains(out, `diveops_integrity_issues{severity="warning",type="missing_pdf_url"} 2`) {
		t.Fatalf("missing issue gauge:\n%s", out)
	}
	for _, want := range []string{
		`diveops_integrity_audits_total{trigger="scheduled",result="blocking_issues"} 1`,
		`diveops_integrity_audits_total{trigger="manual",result="ok"} 1`,
		`diveops_integrity_audits_total{trigger="manual",result="error"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHistogramExposition(t *testing.T) {
	h := NewHistogramVec("x_seconds", "x", []string{"k"}, []float64{1, 5})
	h.Observe(0.5, "a")
	h.Observe(3, "a")

	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`x_seconds_bucket{k="a",le="1"} 1`,
		`x_seconds_bucket{k="a",le="5"} 2`,
		`x_seconds_bucket{k="a",le="+Inf"} 2`,
		`x_seconds_count{k="a"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
