package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/diveops-backend/internal/pkg/logger"
	"github.com/yungbote/diveops-backend/internal/platform/envutil"
)

// Metrics holds the process-wide series. A nil *Metrics is valid and records
// nothing, so callers never check Enabled themselves.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	generationRuns    *CounterVec
	generationLatency *HistogramVec
	speechChunks      *CounterVec

	auditRuns      *CounterVec
	auditLatency   *HistogramVec
	auditSkipped   *Counter
	auditIssues    *GaugeVec
	auditRepairs   *CounterVec
	alertsDelivery *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

// Init installs the process metrics when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("diveops_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"diveops_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		),
		apiInflight: NewGauge("diveops_api_inflight_requests", "In-flight API requests."),

		generationRuns: NewCounterVec("diveops_generation_runs_total", "Content generation runs by content type/source/status.", []string{"content_type", "source", "status"}),
		generationLatency: NewHistogramVec(
			"diveops_generation_duration_seconds",
			"Content generation latency in seconds by content type/status.",
			[]string{"content_type", "status"},
			[]float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		),
		speechChunks: NewCounterVec("diveops_speech_chunks_total", "Speech chunks synthesized by status.", []string{"status"}),

		auditRuns: NewCounterVec("diveops_integrity_audits_total", "Integrity audits by trigger/result.", []string{"trigger", "result"}),
		auditLatency: NewHistogramVec(
			"diveops_integrity_audit_duration_seconds",
			"Integrity audit latency in seconds by trigger.",
			[]string{"trigger"},
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300},
		),
		auditSkipped:   NewCounter("diveops_integrity_audits_skipped_total", "Scheduled audits skipped because one was already running."),
		auditIssues:    NewGaugeVec("diveops_integrity_issues", "Issues found by the last completed audit by severity/type.", []string{"severity", "type"}),
		auditRepairs:   NewCounterVec("diveops_integrity_repairs_total", "Repairs applied by the auditor by kind.", []string{"kind"}),
		alertsDelivery: NewCounterVec("diveops_integrity_alerts_total", "Alert webhook deliveries by result.", []string{"result"}),

		pgStats:   NewGaugeVec("diveops_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:   NewGauge("diveops_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("diveops_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

// Handler serves the exposition format; 503 when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(m.WriteHTTP)
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.generationRuns, m.generationLatency, m.speechChunks,
		m.auditRuns, m.auditLatency, m.auditSkipped, m.auditIssues, m.auditRepairs, m.alertsDelivery,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orDefault(method, "UNKNOWN")
	route = orDefault(route, "unknown")
	status = orDefault(status, "0")
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveGeneration(contentType, source, status string, dur time.Duration) {
	if m == nil {
		return
	}
	contentType = orDefault(contentType, "unknown")
	status = orDefault(status, "unknown")
	m.generationRuns.Inc(contentType, orDefault(source, "unknown"), status)
	m.generationLatency.Observe(dur.Seconds(), contentType, status)
}

func (m *Metrics) IncSpeechChunk(ok bool) {
	if m == nil {
		return
	}
	m.speechChunks.Inc(resultLabel(ok))
}

// IssueCount is one (severity, type) bucket of an audit result.
type IssueCount struct {
	Severity string
	Type     string
	Count    int
}

// ObserveAudit records a finished audit. On success the issue gauges are
// replaced with counts; a failed run leaves the previous counts in place.
func (m *Metrics) ObserveAudit(trigger string, ok bool, failed bool, dur time.Duration, issues []IssueCount) {
	if m == nil {
		return
	}
	trigger = orDefault(trigger, "unknown")
	result := "ok"
	switch {
	case failed:
		result = "error"
	case !ok:
		result = "blocking_issues"
	}
	m.auditRuns.Inc(trigger, result)
	m.auditLatency.Observe(dur.Seconds(), trigger)
	if failed {
		return
	}
	m.auditIssues.Reset()
	for _, ic := range issues {
		m.auditIssues.Set(float64(ic.Count), ic.Severity, ic.Type)
	}
}

func (m *Metrics) IncAuditSkipped() {
	if m == nil {
		return
	}
	m.auditSkipped.Inc()
}

func (m *Metrics) AddRepairs(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.auditRepairs.Add(float64(n), orDefault(kind, "unknown"))
}

func (m *Metrics) IncAlert(delivered bool) {
	if m == nil {
		return
	}
	m.alertsDelivery.Inc(resultLabel(delivered))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
