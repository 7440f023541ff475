package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/reconcile"
	"github.com/yuqie6/Folio/internal/subscription"
)

// Metrics 视图同步相关指标。每个实例持有独立的 registry。
type Metrics struct {
	Registry *prometheus.Registry

	loads        *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	coalesced    *prometheus.CounterVec
	stale        *prometheus.CounterVec
	subsActive   prometheus.Gauge
	subsFailures prometheus.Counter
	changes      *prometheus.CounterVec
	delivered    prometheus.Counter
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

var (
	_ reconcile.Observer    = (*Metrics)(nil)
	_ subscription.Observer = (*Metrics)(nil)
)

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "reconcile", Name: "loads_total",
			Help: "View loads by result.",
		}, []string{"view", "result"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "folio", Subsystem: "reconcile", Name: "load_seconds",
			Help:    "Duration of view loads.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"view"}),
		coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "reconcile", Name: "coalesced_total",
			Help: "Reload triggers merged into a pending follow-up load.",
		}, []string{"view"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "reconcile", Name: "stale_total",
			Help: "Load results discarded because a newer load superseded them.",
		}, []string{"view"}),
		subsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "folio", Subsystem: "subscriptions", Name: "active",
			Help: "Open change subscriptions.",
		}),
		subsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "subscription", Name: "failures_total",
			Help: "Subscriptions that could not be opened and fell back to single-load mode.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "change", Name: "events_total",
			Help: "Record changes published to the in-process hub.",
		}, []string{"entity"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "subscription", Name: "deliveries_total",
			Help: "Change signals delivered to views.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio", Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "folio", Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "folio", Subsystem: "http", Name: "inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		}),
	}
	m.Registry.MustRegister(
		m.loads, m.loadDuration, m.coalesced, m.stale,
		m.subsActive, m.subsFailures, m.changes, m.delivered,
		m.httpRequests, m.httpDuration, m.httpInFlight,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) LoadFinished(view, result string, elapsed time.Duration) {
	m.loads.WithLabelValues(view, result).Inc()
	m.loadDuration.WithLabelValues(view).Observe(elapsed.Seconds())
}

func (m *Metrics) Coalesced(view string) { m.coalesced.WithLabelValues(view).Inc() }

func (m *Metrics) Stale(view string) { m.stale.WithLabelValues(view).Inc() }

func (m *Metrics) SubscriptionOpened() { m.subsActive.Inc() }

func (m *Metrics) SubscriptionClosed() { m.subsActive.Dec() }

func (m *Metrics) SubscriptionFailed() { m.subsFailures.Inc() }

// ChangeDelivered owner 不作为标签，避免基数膨胀
func (m *Metrics) ChangeDelivered(string) { m.delivered.Inc() }

// ObserveHub 统计经过 hub 的变更事件
func (m *Metrics) ObserveHub(h *eventbus.Hub) {
	h.SetOnPublish(func(evt eventbus.Event) {
		m.changes.WithLabelValues(string(evt.Entity)).Inc()
	})
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler HTTP 请求计数与耗时
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush SSE 需要
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// canonicalPath 把成就 ID 折叠成占位符
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "achievements" {
		parts[2] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}
