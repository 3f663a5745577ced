package delivery

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the delivery layer's queue depths and counters, following
// the pack's convention of wiring client_golang gauges/counters directly
// into the component that owns the state they describe.
type Metrics struct {
	Outstanding  prometheus.Gauge
	Reassembling prometheus.Gauge
	Retransmits  prometheus.Counter
	AcksReceived prometheus.Counter
	MessagesIn   prometheus.Counter
}

// NewMetrics builds the gauge/counter set and registers it with reg if
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stealthy", Subsystem: "delivery", Name: "outstanding_fragments",
			Help: "Fragments transmitted but not yet acknowledged.",
		}),
		Reassembling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stealthy", Subsystem: "delivery", Name: "reassembly_buffers_open",
			Help: "Logical messages currently being reassembled.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stealthy", Subsystem: "delivery", Name: "retransmits_total",
			Help: "Fragments retransmitted after the 15s retry timeout.",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stealthy", Subsystem: "delivery", Name: "acks_received_total",
			Help: "Per-fragment acks received.",
		}),
		MessagesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stealthy", Subsystem: "delivery", Name: "messages_received_total",
			Help: "Complete logical messages reassembled from inbound fragments.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Outstanding, m.Reassembling, m.Retransmits, m.AcksReceived, m.MessagesIn)
	}
	return m
}
