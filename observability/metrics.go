package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat_relay"

// Metrics groups the relay's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Connections     prometheus.Gauge
	Rooms           prometheus.Gauge
	MessagesPosted  prometheus.Counter
	ReceiptsStamped prometheus.Counter
	Signals         *prometheus.CounterVec
	SignalsDropped  *prometheus.CounterVec
	InboundRejected *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	ProcessRSS      prometheus.Gauge
	ProcessCPU      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Live WebSocket connections.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms",
			Help: "Rooms with at least one live member.",
		}),
		MessagesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_posted_total",
			Help: "Messages persisted and broadcast.",
		}),
		ReceiptsStamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "receipts_stamped_total",
			Help: "Seen receipts created.",
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_relayed_total",
			Help: "Call signaling events delivered to a peer.",
		}, []string{"event"}),
		SignalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_dropped_total",
			Help: "Call signaling events dropped.",
		}, []string{"reason"}),
		InboundRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbound_rejected_total",
			Help: "Inbound events answered with an error.",
		}, []string{"reason"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "domain_events_dropped_total",
			Help: "Domain events lost because the fanout queue was full.",
		}, []string{"type"}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory reported by the heartbeat.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage reported by the heartbeat.",
		}),
	}
	reg.MustRegister(
		m.Connections, m.Rooms, m.MessagesPosted, m.ReceiptsStamped,
		m.Signals, m.SignalsDropped, m.InboundRejected, m.EventsDropped,
		m.ProcessRSS, m.ProcessCPU,
	)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.Rooms.Set(float64(n))
	}
}

func (m *Metrics) MessagePosted() {
	if m != nil {
		m.MessagesPosted.Inc()
	}
}

func (m *Metrics) ReceiptsAdded(n int) {
	if m != nil && n > 0 {
		m.ReceiptsStamped.Add(float64(n))
	}
}

func (m *Metrics) SignalRelayed(event string) {
	if m != nil {
		m.Signals.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) SignalDropped(reason string) {
	if m != nil {
		m.SignalsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.InboundRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) EventDropped(eventType string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) SetProcess(rss uint64, cpu float64) {
	if m != nil {
		m.ProcessRSS.Set(float64(rss))
		m.ProcessCPU.Set(cpu)
	}
}
