package avsession

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the controller's prometheus collectors. Collectors are
// always created so increments are cheap no-ops against unregistered
// metrics; registration happens only when the caller supplies a
// Registerer.
type metrics struct {
	callsStarted     prometheus.Counter
	callsAnswered    prometheus.Counter
	controlsSent     prometheus.Counter
	bitrateChanges   *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	groupFramesSent  prometheus.Counter
	iterations       prometheus.Counter
	eventsDispatched *prometheus.CounterVec
	observerFaults   *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		callsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "calls",
			Name:      "started_total",
			Help:      "Total number of outgoing calls placed",
		}),
		callsAnswered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "calls",
			Name:      "answered_total",
			Help:      "Total number of incoming calls answered",
		}),
		controlsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "calls",
			Name:      "control_signals_total",
			Help:      "Total number of call control signals sent",
		}),
		bitrateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "calls",
			Name:      "bitrate_changes_total",
			Help:      "Total number of requested bit rate changes",
		}, []string{"media"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "media",
			Name:      "frames_sent_total",
			Help:      "Total number of media frames handed to the engine",
		}, []string{"media"}),
		groupFramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "group",
			Name:      "frames_sent_total",
			Help:      "Total number of group audio frames broadcast",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "scheduler",
			Name:      "iterations_total",
			Help:      "Total number of engine iteration steps",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Total number of native notifications dispatched",
		}, []string{"capability"}),
		observerFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avsession",
			Subsystem: "dispatch",
			Name:      "observer_faults_total",
			Help:      "Total number of observer panics isolated during dispatch",
		}, []string{"capability"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avsession",
			Subsystem: "calls",
			Name:      "sessions_active",
			Help:      "Number of sessions currently ringing or active",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.callsStarted,
			m.callsAnswered,
			m.controlsSent,
			m.bitrateChanges,
			m.framesSent,
			m.groupFramesSent,
			m.iterations,
			m.eventsDispatched,
			m.observerFaults,
			m.sessionsActive,
		)
	}
	return m
}
