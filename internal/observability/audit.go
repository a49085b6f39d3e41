package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

const auditTracerName = "github.com/yungbote/diveops-backend/integrity"

// AuditRecord is what one integrity run reports to the trace sink.
type AuditRecord struct {
	Trigger          string
	StartedAt        time.Time
	Duration         time.Duration
	TracksChecked    int
	LessonsChecked   int
	QuizzesChecked   int
	ArtifactsChecked int
	OK               bool
	BlockingIssues   int
	WarningIssues    int
	TracksRestored   int
	QuizzesRebuilt   int
	MediaRegenerated int
	Err              error
}

// AuditTracer emits one span per audit. Recording never fails the caller.
type AuditTracer struct {
	log    *logger.Logger
	tracer trace.Tracer
}

// NewAuditTracer uses tp, or the global provider when tp is nil.
func NewAuditTracer(log *logger.Logger, tp trace.TracerProvider) *AuditTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &AuditTracer{
		log:    log.With("service", "AuditTracer"),
		tracer: tp.Tracer(auditTracerName),
	}
}

func (t *AuditTracer) Record(ctx context.Context, rec AuditRecord) {
	if t == nil || t.tracer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn("audit trace dropped", "panic", r)
		}
	}()

	start := rec.StartedAt
	if start.IsZero() {
		start = time.Now().Add(-rec.Duration)
	}
	_, span := t.tracer.Start(ctx, "integrity.audit", trace.WithTimestamp(start))
	span.SetAttributes(
		attribute.String("audit.trigger", rec.Trigger),
		attribute.Int("audit.input.tracks", rec.TracksChecked),
		attribute.Int("audit.input.lessons", rec.LessonsChecked),
		attribute.Int("audit.input.quizzes", rec.QuizzesChecked),
		attribute.Int("audit.input.artifacts", rec.ArtifactsChecked),
		attribute.Bool("audit.output.ok", rec.OK),
		attribute.Int("audit.output.blocking_issues", rec.BlockingIssues),
		attribute.Int("audit.output.warning_issues", rec.WarningIssues),
		attribute.Int("audit.repair.tracks_restored", rec.TracksRestored),
		attribute.Int("audit.repair.quizzes_rebuilt", rec.QuizzesRebuilt),
		attribute.Int("audit.repair.media_regenerated", rec.MediaRegenerated),
	)
	if rec.Err != nil {
		span.RecordError(rec.Err)
		span.SetStatus(codes.Error, rec.Err.Error())
	} else if !rec.OK {
		span.SetStatus(codes.Error, "blocking issues found")
	}
	span.End(trace.WithTimestamp(start.Add(rec.Duration)))
}
