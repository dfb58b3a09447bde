// internal/txflow/metrics.go
package txflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts transactions by lifecycle stage. A nil *Metrics records nothing.
type Metrics struct {
	sent              prometheus.Counter
	sendFailed        prometheus.Counter
	confirmed         prometheus.Counter
	failed            prometheus.Counter
	durationHistogram prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. With a nil reg nothing is registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "txflow_tx_sent_total",
			Help: "Total number of transactions accepted by the RPC node",
		}),
		sendFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txflow_tx_send_failure_total",
			Help: "Total number of transactions that failed to submit",
		}),
		confirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txflow_tx_success_total",
			Help: "Total number of confirmed successful transactions",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txflow_tx_failure_total",
			Help: "Total number of transactions confirmed with an error",
		}),
		durationHistogram: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txflow_invocation_duration_seconds",
			Help:    "Time from invocation start to the aggregate result",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}

func (m *Metrics) txSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) txSendFailed() {
	if m != nil {
		m.sendFailed.Inc()
	}
}

func (m *Metrics) txConfirmed(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failed.Inc()
		return
	}
	m.confirmed.Inc()
}

// TrackInvocation records the duration of one invocation.
func (m *Metrics) TrackInvocation(start time.Time) {
	if m != nil {
		m.durationHistogram.Observe(time.Since(start).Seconds())
	}
}
