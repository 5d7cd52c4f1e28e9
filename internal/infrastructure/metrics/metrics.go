// Package metrics exposes bridge counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every bridge metric
const Namespace = "chatbridge"

// BridgeMetrics holds the bridge's Prometheus collectors on a private
// registry. A nil *BridgeMetrics is valid and records nothing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type BridgeMetrics struct {
	registry *prometheus.Registry

	messagesTotal    *prometheus.CounterVec
	sendAttempts     *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	pollErrors       *prometheus.CounterVec
	bufferDepth      prometheus.Gauge
	bufferDrops      prometheus.Counter
	workersRunning   *prometheus.GaugeVec
}

// New creates the collectors and registers them
func New() *BridgeMetrics {
	m := &BridgeMetrics{
		registry: prometheus.NewRegistry(),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_total",
			Help:      "Messages that reached a terminal stage, by origin side and outcome.",
		}, []string{"source", "outcome"}),
		sendAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "send_attempts_total",
			Help:      "Adapter send attempts, by target side and result.",
		}, []string{"target", "result"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time from drain to terminal outcome, including retries.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"target"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poll_errors_total",
			Help:      "Failed adapter fetches, by side.",
		}, []string{"side"}),
		bufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "buffer_depth",
			Help:      "Messages waiting in the session buffer.",
		}),
		bufferDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "buffer_overflow_total",
			Help:      "Messages evicted from a full session buffer.",
		}),
		workersRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "workers_running",
			Help:      "1 while the named worker loop is running.",
		}, []string{"worker"}),
	}

	m.registry.MustRegister(
		m.messagesTotal,
		m.sendAttempts,
		m.deliveryDuration,
		m.pollErrors,
		m.bufferDepth,
		m.bufferDrops,
		m.workersRunning,
	)
	return m
}

// Registry returns the private registry
func (m *BridgeMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *BridgeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BridgeMetrics) RecordOutcome(source, outcome string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(source, outcome).Inc()
}

func (m *BridgeMetrics) RecordSendAttempt(target string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sendAttempts.WithLabelValues(target, result).Inc()
}

func (m *BridgeMetrics) ObserveDelivery(target string, d time.Duration) {
	if m == nil {
		return
	}
	m.deliveryDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (m *BridgeMetrics) RecordPollError(side string) {
	if m == nil {
		return
	}
	m.pollErrors.WithLabelValues(side).Inc()
}

func (m *BridgeMetrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.bufferDepth.Set(float64(n))
}

func (m *BridgeMetrics) RecordBufferOverflow() {
	if m == nil {
		return
	}
	m.bufferDrops.Inc()
}

func (m *BridgeMetrics) SetWorkerRunning(worker string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.workersRunning.WithLabelValues(worker).Set(v)
}
