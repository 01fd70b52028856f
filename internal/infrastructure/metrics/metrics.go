// Package metrics exposes Prometheus collectors for the devtools client.
//
// Every method is safe to call on a nil *Metrics so components can take an
// optional metrics dependency without guarding each call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "cdp"

// Command outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeRemoteError  = "remote_error"
	OutcomeTimeout      = "timeout"
	OutcomeCancelled    = "cancelled"
	OutcomeNotConnected = "not_connected"
	OutcomeSendError    = "send_error"
)

// Metrics holds the client collectors.
type Metrics struct {
	CommandsTotal      *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	PendingCommands    prometheus.Gauge
	EventsReceived     *prometheus.CounterVec
	HandlerFailures    *prometheus.CounterVec
	ProtocolErrors     prometheus.Counter
	DiscardedResponses prometheus.Counter
	DroppedMessages    prometheus.Counter
	Connections        *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "total",
				Help:      "Commands completed, by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "duration_seconds",
				Help:      "Time from send to response, by method",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		PendingCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "pending",
				Help:      "Commands awaiting a response",
			},
		),
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Events received, by domain",
			},
			[]string{"domain"},
		),
		HandlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "handler_failures_total",
				Help:      "Event handlers that returned an error or panicked, by domain",
			},
			[]string{"domain"},
		),
		ProtocolErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reader",
				Name:      "protocol_errors_total",
				Help:      "Inbound payloads that could not be classified",
			},
		),
		DiscardedResponses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reader",
				Name:      "discarded_responses_total",
				Help:      "Responses whose correlation id had no waiting command",
			},
		),
		DroppedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "dropped_total",
				Help:      "Queued messages evicted because the queue was full",
			},
		),
		Connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "connections_total",
				Help:      "Connection attempts, by result",
			},
			[]string{"result"},
		),
	}
}

// NewRegistered creates the collectors and registers them with reg.
func NewRegistered(reg prometheus.Registerer) (*Metrics, error) {
	m := New()
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

// Collectors returns every collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CommandsTotal,
		m.CommandDuration,
		m.PendingCommands,
		m.EventsReceived,
		m.HandlerFailures,
		m.ProtocolErrors,
		m.DiscardedResponses,
		m.DroppedMessages,
		m.Connections,
	}
}

// Register registers every collector, returning all registration errors.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var err error
	for _, c := range m.Collectors() {
		err = multierr.Append(err, reg.Register(c))
	}
	return err
}

// CommandStarted records a new pending command.
func (m *Metrics) CommandStarted() {
	if m == nil {
		return
	}
	m.PendingCommands.Inc()
}

// CommandFinished records a command leaving the pending table.
func (m *Metrics) CommandFinished(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PendingCommands.Dec()
	m.CommandsTotal.WithLabelValues(method, outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeRemoteError {
		m.CommandDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

// EventReceived records one inbound event.
func (m *Metrics) EventReceived(domain string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(domain).Inc()
}

// HandlerFailed records a failed event handler for an event of domain.
func (m *Metrics) HandlerFailed(domain string) {
	if m == nil {
		return
	}
	m.HandlerFailures.WithLabelValues(domain).Inc()
}

// ProtocolError records an unparsable payload.
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

// ResponseDiscarded records a response with an unknown id.
func (m *Metrics) ResponseDiscarded() {
	if m == nil {
		return
	}
	m.DiscardedResponses.Inc()
}

// MessageDropped records a queue eviction.
func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.DroppedMessages.Inc()
}

// ConnectAttempt records a connection attempt result ("ok" or "error").
func (m *Metrics) ConnectAttempt(result string) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues(result).Inc()
}
