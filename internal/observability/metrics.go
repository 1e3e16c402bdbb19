package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service collectors; /metrics serves only this registry.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lendcore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	qrisConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "qris",
			Name:      "confirmations_total",
			Help:      "QRIS transaction confirmations by result.",
		},
		[]string{"result"},
	)

	otpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "otp",
			Name:      "requests_total",
			Help:      "OTP requests by delivery channel and result.",
		},
		[]string{"channel", "result"},
	)

	outboxJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "outbox",
			Name:      "jobs_total",
			Help:      "Outbox jobs processed by topic and result.",
		},
		[]string{"topic", "result"},
	)

	dbsWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "dbs",
			Name:      "webhooks_total",
			Help:      "DBS loan status callbacks by result.",
		},
		[]string{"result"},
	)

	wsSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lendcore",
			Subsystem: "ws",
			Name:      "subscriptions",
			Help:      "Open websocket channel subscriptions.",
		},
	)

	wsDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lendcore",
			Subsystem: "ws",
			Name:      "deliveries_total",
			Help:      "Realtime messages handed to websocket clients.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		qrisConfirmations,
		otpRequests,
		outboxJobs,
		dbsWebhooks,
		wsSubscriptions,
		wsDeliveries,
		prometheus.NewGoCollector(),
	)
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordQRISConfirmation(result string) {
	qrisConfirmations.WithLabelValues(result).Inc()
}

func RecordOTPRequest(channel, result string) {
	otpRequests.WithLabelValues(channel, result).Inc()
}

func RecordOutboxJob(topic, result string) {
	outboxJobs.WithLabelValues(topic, result).Inc()
}

func RecordDBSWebhook(result string) {
	dbsWebhooks.WithLabelValues(result).Inc()
}

func AddWSSubscriptions(delta int) {
	wsSubscriptions.Add(float64(delta))
}

func RecordWSDeliveries(n int) {
	wsDeliveries.Add(float64(n))
}
