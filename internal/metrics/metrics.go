// Package metrics exposes Prometheus counters for lifecycle transitions,
// effect application, outbox delivery and websocket sessions.
//
// Exposed on a separate port at /metrics:
//
//	marketplace_transitions_total{entity,to}
//	marketplace_transition_errors_total{entity,kind}
//	marketplace_effects_applied_total{effect}
//	marketplace_outbox_delivered_total / _failed_total / _dead_total
//	marketplace_outbox_pending
//	marketplace_outbox_delivery_latency_seconds
//	marketplace_ws_clients
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics.
type Collector struct {
	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	effectsApplied   *prometheus.CounterVec

	outboxDelivered prometheus.Counter
	outboxFailed    prometheus.Counter
	outboxDead      prometheus.Counter
	outboxPending   prometheus.Gauge
	deliveryLatency prometheus.Histogram

	wsClients prometheus.Gauge
}

// NewCollector creates the collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_transitions_total",
			Help: "Total number of successful lifecycle transitions",
		}, []string{"entity", "to"}),
		transitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_transition_errors_total",
			Help: "Total number of rejected lifecycle transitions",
		}, []string{"entity", "kind"}),
		effectsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_effects_applied_total",
			Help: "Total number of transition effects applied",
		}, []string{"effect"}),
		outboxDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_outbox_delivered_total",
			Help: "Total number of outbox events delivered",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_outbox_failed_total",
			Help: "Total number of failed outbox delivery attempts",
		}),
		outboxDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_outbox_dead_total",
			Help: "Total number of outbox events that exhausted their retries",
		}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_outbox_pending",
			Help: "Outbox events due or waiting for retry",
		}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketplace_outbox_delivery_latency_seconds",
			Help:    "Time from outbox insert to delivery",
			Buckets: prometheus.DefBuckets,
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_ws_clients",
			Help: "Currently connected websocket clients",
		}),
	}

	reg.MustRegister(
		c.transitions,
		c.transitionErrors,
		c.effectsApplied,
		c.outboxDelivered,
		c.outboxFailed,
		c.outboxDead,
		c.outboxPending,
		c.deliveryLatency,
		c.wsClients,
	)
	return c
}

func (c *Collector) RecordTransition(entity, to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(entity, to).Inc()
}

func (c *Collector) RecordTransitionError(entity, kind string) {
	if c == nil {
		return
	}
	c.transitionErrors.WithLabelValues(entity, kind).Inc()
}

func (c *Collector) RecordEffect(name string) {
	if c == nil {
		return
	}
	c.effectsApplied.WithLabelValues(name).Inc()
}

// RecordDelivered records a delivered outbox event and how long it waited.
func (c *Collector) RecordDelivered(latencySeconds float64) {
	if c == nil {
		return
	}
	c.outboxDelivered.Inc()
	c.deliveryLatency.Observe(latencySeconds)
}

func (c *Collector) RecordDeliveryFailed() {
	if c == nil {
		return
	}
	c.outboxFailed.Inc()
}

func (c *Collector) RecordDead() {
	if c == nil {
		return
	}
	c.outboxDead.Inc()
}

func (c *Collector) SetOutboxPending(n int64) {
	if c == nil {
		return
	}
	c.outboxPending.Set(float64(n))
}

func (c *Collector) SetWSClients(n int) {
	if c == nil {
		return
	}
	c.wsClients.Set(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own port. It blocks like http.ListenAndServe.
func StartServer(port int, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
