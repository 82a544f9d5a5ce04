package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector methods are no-ops on a nil receiver.
type MetricsCollector struct {
	registry              *prometheus.Registry
	transactionsScored    *prometheus.CounterVec
	transactionsRejected  prometheus.Counter
	analysisDuration      prometheus.Histogram
	riskScoreDistribution prometheus.Histogram
	analyzerFallbacks     *prometheus.CounterVec
	alerts                *prometheus.CounterVec
	alertQueueDepth       prometheus.Gauge
	publishFailures       *prometheus.CounterVec
	httpRequests          *prometheus.CounterVec
	logger                *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		transactionsScored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudmon_transactions_scored_total",
			Help: "Transactions scored, by risk level",
		}, []string{"risk_level", "source"}),
		transactionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "fraudmon_transactions_rejected_total",
			Help: "Transactions rejected before scoring",
		}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudmon_analysis_duration_seconds",
			Help:    "Time taken to score a transaction end to end",
			Buckets: prometheus.DefBuckets,
		}),
		riskScoreDistribution: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudmon_risk_score_distribution",
			Help:    "Distribution of transaction risk scores",
			Buckets: []float64{0, 20, 30, 40, 60, 80, 100},
		}),
		analyzerFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudmon_analyzer_fallbacks_total",
			Help: "Model analyses replaced by the heuristic scorer",
		}, []string{"reason"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudmon_alerts_total",
			Help: "Alerts reaching a terminal status",
		}, []string{"channel", "status"}),
		alertQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fraudmon_alert_queue_depth",
			Help: "Alerts waiting for a dispatcher worker",
		}),
		publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudmon_event_publish_failures_total",
			Help: "Domain events that could not be published",
		}, []string{"event_type"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudmon_http_requests_total",
			Help: "HTTP requests by route pattern and status",
		}, []string{"route", "status"}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordScored(level, source string, riskScore int, duration time.Duration) {
	if m == nil {
		return
	}
	m.transactionsScored.WithLabelValues(level, source).Inc()
	m.riskScoreDistribution.Observe(float64(riskScore))
	m.analysisDuration.Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordRejected() {
	if m == nil {
		return
	}
	m.transactionsRejected.Inc()
}

func (m *MetricsCollector) RecordAnalyzerFallback(reason string) {
	if m == nil {
		return
	}
	m.analyzerFallbacks.WithLabelValues(reason).Inc()
}

func (m *MetricsCollector) RecordAlert(channel, status string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(channel, status).Inc()
}

func (m *MetricsCollector) SetAlertQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.alertQueueDepth.Set(float64(depth))
}

func (m *MetricsCollector) RecordPublishFailure(eventType string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(eventType).Inc()
}

func (m *MetricsCollector) RecordHTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}

// Registry exposes the private registry, mainly for tests.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
