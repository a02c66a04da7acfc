package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ingestion
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Total inbound webhook deliveries",
		},
		[]string{"result"}, // recorded|rejected|failed
	)
	DecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_decode_failures_total",
			Help: "Total payloads whose token segment could not be decoded",
		},
	)

	// Storage
	StoreMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_mode",
			Help: "Active storage mode (1 durable, 0 ephemeral)",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(WebhooksTotal)
	prometheus.MustRegister(DecodeFailures)
	prometheus.MustRegister(StoreMode)
	prometheus.MustRegister(WorkerQueueDepth)
}
