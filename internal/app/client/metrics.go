package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics - метрики отправки очереди.
type SyncMetrics struct {
	Submissions   *prometheus.CounterVec
	SubmitLatency prometheus.Histogram
	DrainLatency  prometheus.Histogram
	QueueDepth    *prometheus.GaugeVec
}

// NewSyncMetrics регистрирует метрики в reg. Nil - prometheus.DefaultRegisterer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &SyncMetrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "punchclock_sync_submissions_total",
			Help: "Queue submissions by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: synced, deduplicated, failed, requeued, dead_letter, unauthorized

		SubmitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchclock_sync_submit_duration_seconds",
			Help:    "Duration of a single remote submission",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		DrainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchclock_sync_drain_duration_seconds",
			Help:    "Duration of a full drain cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "punchclock_queue_actions",
			Help: "Queued actions by state after the last drain",
		}, []string{"state"}),
	}
}

func (m *SyncMetrics) IncrementSubmission(kind, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *SyncMetrics) ObserveSubmit(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

func (m *SyncMetrics) ObserveDrain(d time.Duration) {
	if m != nil {
		m.DrainLatency.Observe(d.Seconds())
	}
}

func (m *SyncMetrics) SetDepth(state string, n int) {
	if m != nil {
		m.QueueDepth.WithLabelValues(state).Set(float64(n))
	}
}
