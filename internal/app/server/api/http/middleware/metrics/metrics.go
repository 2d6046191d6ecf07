package metrics

import (
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - счетчики HTTP API и результатов приема отметок.
type Metrics struct {
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	Punches        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punchclock_http_requests_total",
			Help: "HTTP requests by operation and status code",
		}, []string{"operation", "status"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "punchclock_http_request_duration_seconds",
			Help:    "HTTP request latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		Punches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punchclock_server_punches_total",
			Help: "Submitted punches by outcome: accepted, deduplicated, rejected",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementPunch(outcome string) {
	if m == nil {
		return
	}
	m.Punches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		op := "unknown"
		if o := ctx.Operation(); o != nil {
			op = o.OperationID
		}
		m.Requests.WithLabelValues(op, strconv.Itoa(ctx.Status())).Inc()
		m.RequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
