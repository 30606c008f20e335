package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat resolution flow.
type ChatMetrics struct {
	outcomesTotal   *prometheus.CounterVec
	ledgerOpsTotal  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "chat",
			Name:      "outcomes_total",
			Help:      "Chat utterances by final resolution state and reason",
		}, []string{"state", "reason"}),
		ledgerOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Appointment ledger operations by result",
		}, []string{"operation", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of understanding provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomesTotal, m.ledgerOpsTotal, m.providerLatency)
	return m
}

func (m *ChatMetrics) ObserveOutcome(state, reason string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(state, reason).Inc()
}

func (m *ChatMetrics) ObserveLedger(operation, result string) {
	if m == nil {
		return
	}
	m.ledgerOpsTotal.WithLabelValues(operation, result).Inc()
}

func (m *ChatMetrics) ObserveProviderLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(status).Observe(seconds)
}
