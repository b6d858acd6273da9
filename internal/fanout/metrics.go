// internal/fanout/metrics.go
package fanout

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the processor's Prometheus instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	BatchesEnqueued  *prometheus.CounterVec
	BatchesDropped   *prometheus.CounterVec
	BatchesPersisted *prometheus.CounterVec
	BatchesFailed    *prometheus.CounterVec
	BatchesPanicked  *prometheus.CounterVec
	BatchDuration    *prometheus.HistogramVec
	PendingBatches   prometheus.Gauge
	Notifications    *prometheus.CounterVec
}

// NewMetrics creates the fan-out metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_batches_enqueued_total",
				Help: "Total number of event batches accepted by the fan-out queue",
			},
			[]string{"collection"},
		),
		BatchesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_batches_dropped_total",
				Help: "Total number of event batches rejected or abandoned",
			},
			[]string{"reason"},
		),
		BatchesPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_batches_persisted_total",
				Help: "Total number of event batches written to the event store",
			},
			[]string{"collection"},
		),
		BatchesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_batches_failed_total",
				Help: "Total number of event batches that failed to persist",
			},
			[]string{"collection"},
		),
		BatchesPanicked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_batches_panicked_total",
				Help: "Total number of event batches that panicked, by stage",
			},
			[]string{"collection", "stage"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lockity_fanout_batch_duration_seconds",
				Help:    "Time spent persisting and notifying one batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		PendingBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lockity_fanout_pending_batches",
				Help: "Number of batches waiting in the fan-out queue",
			},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lockity_fanout_notifications_total",
				Help: "Total number of notification fan-outs by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.BatchesEnqueued,
		m.BatchesDropped,
		m.BatchesPersisted,
		m.BatchesFailed,
		m.BatchesPanicked,
		m.BatchDuration,
		m.PendingBatches,
		m.Notifications,
	)
	return m
}

func (m *Metrics) enqueued(collection string, pending int) {
	if m == nil {
		return
	}
	m.BatchesEnqueued.WithLabelValues(collection).Inc()
	m.PendingBatches.Set(float64(pending))
}

func (m *Metrics) dropped(reason string, n int) {
	if m == nil {
		return
	}
	m.BatchesDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) pending(n int) {
	if m == nil {
		return
	}
	m.PendingBatches.Set(float64(n))
}

func (m *Metrics) persisted(collection string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.BatchesFailed.WithLabelValues(collection).Inc()
	} else {
		m.BatchesPersisted.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) panicked(collection, stage string) {
	if m == nil {
		return
	}
	m.BatchesPanicked.WithLabelValues(collection, stage).Inc()
}

func (m *Metrics) processed(collection string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
}

func (m *Metrics) notified(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Notifications.WithLabelValues(result).Inc()
}
