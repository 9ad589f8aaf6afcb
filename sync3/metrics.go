package sync3

import "github.com/prometheus/client_golang/prometheus"

// engineMetrics are registered into a caller-supplied prometheus.Registerer
// (or a private registry if none is given, so constructing several engines
// in the same test binary never panics on double-registration). They mirror
// the way the teacher repo wraps its pubsub Notifier with a
// prometheus.CounterVec: metrics are a thin side-car on top of the
// functional path, never load-bearing for correctness.
type engineMetrics struct {
	requestDuration prometheus.Histogram
	outstandingTxns prometheus.Gauge
	listWindowSize  *prometheus.GaugeVec
	opReplayTotal   *prometheus.CounterVec
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	m := &engineMetrics{
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sliding_sync_client",
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Duration of a single sliding sync long-poll round trip.",
			Buckets:   prometheus.DefBuckets,
		}),
		outstandingTxns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sliding_sync_client",
			Subsystem: "engine",
			Name:      "outstanding_transactions",
			Help:      "Number of transactions issued but not yet acknowledged or superseded.",
		}),
		listWindowSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sliding_sync_client",
			Subsystem: "engine",
			Name:      "list_window_size",
			Help:      "Number of index->room_id mappings currently tracked for a list.",
		}, []string{"list"}),
		opReplayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sliding_sync_client",
			Subsystem: "engine",
			Name:      "op_replay_total",
			Help:      "Number of list operations replayed, by op kind.",
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(m.requestDuration, m.outstandingTxns, m.listWindowSize, m.opReplayTotal)
	return m
}

func (m *engineMetrics) countOps(ops []ResponseOp) {
	if m == nil {
		return
	}
	for _, op := range ops {
		m.opReplayTotal.WithLabelValues(op.Op()).Inc()
	}
}
