package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

func TestAuditTracerEmitsOneSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := NewAuditTracer(logger.Nop(), tp)

	tracer.Record(context.Background(), AuditRecord{
		Trigger:        "scheduled",
		Duration:       time.Second,
		TracksChecked:  2,
		LessonsChecked: 24,
		OK:             true,
		WarningIssues:  1,
	})

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["audit.input.lessons"].AsInt64() != 24 || !attrs["audit.output.ok"].AsBool() {
		t.Fatalf("unexpected attributes: %v", spans[0].Attributes())
	}
	if attrs["audit.trigger"].AsString() != "scheduled" {
		t.Fatalf("missing trigger attribute")
	}
}

func TestAuditTracerRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	NewAuditTracer(logger.Nop(), tp).Record(context.Background(), AuditRecord{Err: errors.New("db down")})
	if len(rec.Ended()) != 1 || len(rec.Ended()[0].Events()) == 0 {
		t.Fatalf("expected error event on span")
	}
}

func TestAlertSenderPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAlertSender(logger.Nop(), srv.URL)
	if !a.Send(context.Background(), map[string]any{"ok": false, "blockingIssues": 2}) {
		t.Fatalf("expected delivery")
	}
	if got["blockingIssues"].(float64) != 2 {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestAlertSenderSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if NewAlertSender(logger.Nop(), srv.URL).Send(context.Background(), map[string]any{}) {
		t.Fatalf("5xx must report not delivered")
	}
	var disabled *AlertSender = NewAlertSender(logger.Nop(), "")
	if disabled.Send(context.Background(), map[string]any{}) {
		t.Fatalf("disabled sender must drop")
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("x-api-key=abc, bad, empty= ,k=v")
	if len(h) != 2 || h["x-api-key"] != "abc" || h["k"] != "v" {
		t.Fatalf("unexpected headers %v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
