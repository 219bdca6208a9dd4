// internal/metrics/prometheus.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchtower_probe_duration_seconds",
			Help:    "Time spent executing probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state", "outcome"},
	)

	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_probes_total",
			Help: "Total number of probes executed",
		},
		[]string{"state", "outcome"},
	)

	CheckState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchtower_check_state",
			Help: "Current state of checks (1=up, 0=down)",
		},
		[]string{"check"},
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_check_validation_failures_total",
			Help: "Stored check records skipped because they failed validation",
		},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_alerts_total",
			Help: "Alert delivery attempts",
		},
		[]string{"status"},
	)

	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_log_rotations_total",
			Help: "Log compress-and-rotate attempts",
		},
		[]string{"status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordProbe(state, outcome string, duration time.Duration) {
	ProbeDuration.WithLabelValues(state, outcome).Observe(duration.Seconds())
	ProbeTotal.WithLabelValues(state, outcome).Inc()
}

func (c *Collector) UpdateCheckState(checkID, state string) {
	value := 0.0
	if state == "up" {
		value = 1.0
	}
	CheckState.WithLabelValues(checkID).Set(value)
}

// RemoveCheckState drops the per-check gauge series when a check is
// deleted, so the exporter stops reporting state for ids that no longer
// exist.
func (c *Collector) RemoveCheckState(checkID string) {
	CheckState.DeleteLabelValues(checkID)
}

func (c *Collector) RecordValidationFailure() {
	ValidationFailures.Inc()
}

func (c *Collector) RecordAlert(delivered bool) {
	if delivered {
		AlertsTotal.WithLabelValues("sent").Inc()
	} else {
		AlertsTotal.WithLabelValues("failed").Inc()
	}
}

func (c *Collector) RecordRotation(success bool) {
	if success {
		RotationsTotal.WithLabelValues("success").Inc()
	} else {
		RotationsTotal.WithLabelValues("failed").Inc()
	}
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}
