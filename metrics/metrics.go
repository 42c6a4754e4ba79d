// Package metrics exposes Prometheus collectors for the bridge.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bachmcp"

type Metrics struct {
	CommandsSent     prometheus.Counter
	SendFailures     prometheus.Counter
	Dials            *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	MessagesEvicted  prometheus.Counter
	MessagesFlushed  prometheus.Counter
	QueueDepth       prometheus.Gauge
	WaitTimeouts     prometheus.Counter
	WaitDuration     prometheus.Histogram
	InboundConns     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// returns nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{
		CommandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbound", Name: "commands_sent_total",
			Help: "Command lines written to the engine",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbound", Name: "send_failures_total",
			Help: "Sends that failed to connect or write",
		}),
		Dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbound", Name: "dials_total",
			Help: "Connection attempts to the engine by result",
		}, []string{"result"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inbound", Name: "messages_received_total",
			Help: "Inbound lines classified and queued, by kind",
		}, []string{"kind"}),
		MessagesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inbound", Name: "messages_evicted_total",
			Help: "Oldest messages dropped because the queue was full",
		}),
		MessagesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inbound", Name: "messages_flushed_total",
			Help: "Messages discarded by flush",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "inbound", Name: "queue_depth",
			Help: "Messages currently queued",
		}),
		WaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "wait_timeouts_total",
			Help: "Waits that expired without a matching message",
		}),
		WaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "wait_duration_seconds",
			Help:    "Time spent blocked in send-and-wait",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		InboundConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "inbound", Name: "connections",
			Help: "Engine connections currently open on the listener",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.CommandsSent, m.SendFailures, m.Dials, m.MessagesReceived, m.MessagesEvicted,
		m.MessagesFlushed, m.QueueDepth, m.WaitTimeouts, m.WaitDuration, m.InboundConns,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Sent() {
	if m != nil {
		m.CommandsSent.Inc()
	}
}

func (m *Metrics) SendFailed() {
	if m != nil {
		m.SendFailures.Inc()
	}
}

func (m *Metrics) Dialed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Dials.WithLabelValues(result).Inc()
}

func (m *Metrics) Received(kind string, depth int) {
	if m != nil {
		m.MessagesReceived.WithLabelValues(kind).Inc()
		m.QueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) Evicted() {
	if m != nil {
		m.MessagesEvicted.Inc()
	}
}

func (m *Metrics) Flushed(n, depth int) {
	if m != nil {
		m.MessagesFlushed.Add(float64(n))
		m.QueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) Depth(depth int) {
	if m != nil {
		m.QueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) Waited(seconds float64, timedOut bool) {
	if m == nil {
		return
	}
	m.WaitDuration.Observe(seconds)
	if timedOut {
		m.WaitTimeouts.Inc()
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.InboundConns.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.InboundConns.Dec()
	}
}
