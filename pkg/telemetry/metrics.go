package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "omniversal"

var (
	registerOnce sync.Once

	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "phase_duration_seconds",
			Help:      "Kernel phase duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase", "success"},
	)
	deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployment",
			Name:      "deployments_total",
			Help:      "Layer deployments recorded.",
		},
		[]string{"layer"},
	)
	artifactsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "artifacts_delivered_total",
			Help:      "Artifacts delivered.",
		},
		[]string{"layer"},
	)
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layer",
			Name:      "operations_total",
			Help:      "Layer domain operations.",
		},
		[]string{"layer", "success"},
	)
	snapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "snapshots_total",
			Help:      "Dashboard snapshots taken.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// RegisterMetrics registers the collectors with the default registry. It is
// safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(phaseDuration, deployments, artifactsDelivered, operations, snapshots, httpRequests, httpDuration)
	})
}

func RecordPhase(phase string, duration time.Duration, success bool) {
	RegisterMetrics()
	phaseDuration.WithLabelValues(phase, strconv.FormatBool(success)).Observe(duration.Seconds())
}

func RecordDeployment(layer string) {
	RegisterMetrics()
	deployments.WithLabelValues(layer).Inc()
}

func RecordArtifactDelivered(layer string) {
	RegisterMetrics()
	artifactsDelivered.WithLabelValues(layer).Inc()
}

func RecordOperation(layer string, success bool) {
	RegisterMetrics()
	operations.WithLabelValues(layer, strconv.FormatBool(success)).Inc()
}

func RecordSnapshot() {
	RegisterMetrics()
	snapshots.Inc()
}

func RecordHTTPRequest(method string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, statusLabel).Inc()
	httpDuration.WithLabelValues(method, statusLabel).Observe(duration.Seconds())
}
