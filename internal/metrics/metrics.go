package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: Namespace + "_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: Namespace + "_build_info",
			Help: "Always 1, labelled with the running version",
		},
		[]string{"version", "commit"},
	)

	ActiveBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: Namespace + "_active_blocks",
			Help: "Current number of ACTIVE block entries",
		},
	)

	BlockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_block_operations_total",
			Help: "Total number of block state transitions attempted, by operation and result",
		},
		[]string{"operation", "result"},
	)

	FirewallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_firewall_errors_total",
			Help: "Total number of failed firewall operations, by error kind",
		},
		[]string{"kind"},
	)

	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_persistence_errors_total",
			Help: "Total number of failed store writes",
		},
		[]string{"operation"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    Namespace + "_expiry_sweep_duration_seconds",
			Help:    "Time to complete an expiry sweep",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ExpiredBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: Namespace + "_expired_blocks_total",
			Help: "Total number of blocks removed by the expiry sweep",
		},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_job_runs_total",
			Help: "Total number of background job runs, by job and result",
		},
		[]string{"job", "result"},
	)
)
