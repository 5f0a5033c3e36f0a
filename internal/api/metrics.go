package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway client metrics, served by the HTTP adapter on /metrics
var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_files_gateway_requests_total",
			Help: "Gateway calls by operation and HTTP status.",
		},
		[]string{"operation", "status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_files_gateway_request_duration_seconds",
			Help:    "Gateway call latency including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	gatewayThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "record_files_gateway_throttled_total",
		Help: "Responses rejected with 429 Too Many Requests.",
	})

	gatewayTransferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_files_gateway_transfer_bytes_total",
			Help: "Bytes moved through upload and download calls.",
		},
		[]string{"direction"},
	)
)
