// Package metrics provides Prometheus metrics for input handling and LED broadcasts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taikolights"

var (
	inputEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "input",
		Name:      "events_total",
		Help:      "Input events received, by kind and category",
	}, []string{"kind", "category"})

	broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lighting",
		Name:      "broadcasts_total",
		Help:      "Color broadcasts applied, by color",
	}, []string{"color"})

	setFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lighting",
		Name:      "set_failures_total",
		Help:      "Per-device LED color submissions rejected by the host",
	})

	flushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lighting",
		Name:      "flushes_total",
		Help:      "Host flushes completed, by result",
	}, []string{"result"})

	devices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lighting",
		Name:      "devices",
		Help:      "Devices discovered at startup",
	})

	leds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lighting",
		Name:      "leds",
		Help:      "Addressable LEDs in the address cache",
	})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "session_state",
		Help:      "1 for the current lighting host session state, 0 otherwise",
	}, []string{"state"})

	discoveryAttempts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "discovery_attempts",
		Help:      "Device enumeration attempts made before the host was ready",
	})

	eventsDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "eventbus",
		Name:      "dropped_events",
		Help:      "Event deliveries dropped because the bus queue was full",
	})
)

// RecordInput counts one input event.
func RecordInput(kind, category string) {
	inputEvents.WithLabelValues(kind, category).Inc()
}

// RecordBroadcast counts one broadcast and the devices that rejected it.
func RecordBroadcast(color string, failed int) {
	broadcasts.WithLabelValues(color).Inc()
	if failed > 0 {
		setFailures.Add(float64(failed))
	}
}

// RecordFlush counts a completed flush.
func RecordFlush(err error) {
	if err != nil {
		flushes.WithLabelValues("error").Inc()
		return
	}
	flushes.WithLabelValues("ok").Inc()
}

// SetTopology records the discovered device and LED counts.
func SetTopology(deviceCount, ledCount int) {
	devices.Set(float64(deviceCount))
	leds.Set(float64(ledCount))
}

// SetDiscoveryAttempts records how many enumeration attempts discovery took.
func SetDiscoveryAttempts(n int) {
	discoveryAttempts.Set(float64(n))
}

// SetSessionState marks state as the current session state.
func SetSessionState(state string, all []string) {
	for _, s := range all {
		sessionState.WithLabelValues(s).Set(0)
	}
	sessionState.WithLabelValues(state).Set(1)
}

// SetEventsDropped records the event bus drop count.
func SetEventsDropped(n int64) {
	eventsDropped.Set(float64(n))
}

// HTTPHandler returns the Prometheus metrics HTTP handler.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
