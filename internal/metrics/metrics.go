// Package metrics holds the Prometheus collectors of the engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightplan"

// Machine states in gauge order.
var machineStates = []string{
	"machineStarted", "initialized", "editable", "resumable", "startedNotFlying", "flying", "end",
}

type Metrics struct {
	registry *prometheus.Registry

	Transitions        *prometheus.CounterVec
	CommandsRefused    *prometheus.CounterVec
	ActivationTimeouts prometheus.Counter
	MavlinkFailures    *prometheus.CounterVec
	MachineState       *prometheus.GaugeVec
	BusMessages        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "machine",
				Name:      "transitions_total",
				Help:      "State transitions of the flight plan machine",
			},
			[]string{"from", "to"},
		),
		CommandsRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "machine",
				Name:      "commands_refused_total",
				Help:      "Commands ignored because they are invalid in the current state",
			},
			[]string{"command"},
		),
		ActivationTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "activation_timeouts_total",
				Help:      "Flight plan activations that did not reach playing in time",
			},
		),
		MavlinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mavlink",
				Name:      "failures_total",
				Help:      "MAVLink generation and upload failures",
			},
			[]string{"phase"},
		),
		MachineState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "machine",
				Name:      "state",
				Help:      "1 for the currently published machine state, 0 otherwise",
			},
			[]string{"state"},
		),
		BusMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "messages_total",
				Help:      "Bus messages handled by the engine",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		m.Transitions,
		m.CommandsRefused,
		m.ActivationTimeouts,
		m.MavlinkFailures,
		m.MachineState,
		m.BusMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Transition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) CommandRefused(command string) {
	if m != nil {
		m.CommandsRefused.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) ActivationTimeout() {
	if m != nil {
		m.ActivationTimeouts.Inc()
	}
}

func (m *Metrics) MavlinkFailure(phase string) {
	if m != nil {
		m.MavlinkFailures.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) SetState(name string) {
	if m == nil {
		return
	}
	for _, s := range machineStates {
		v := 0.0
		if s == name {
			v = 1
		}
		m.MachineState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) BusMessage(messageType string) {
	if m != nil {
		m.BusMessages.WithLabelValues(messageType).Inc()
	}
}
