package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every counter exported by the API. A nil *Collectors records nothing
type Collectors struct {
	registry       *prometheus.Registry
	guardDecisions *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	engineRequests *prometheus.CounterVec
}

// New registers the collectors with registry, along with the Go runtime and process collectors
func New(registry *prometheus.Registry) *Collectors {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collectors{
		registry: registry,
		guardDecisions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_decisions_total",
				Help: "Access guard decisions by decision and subscription state",
			},
			[]string{"decision", "state"},
		),
		webhookEvents: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Billing webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
		engineRequests: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_requests_total",
				Help: "Trading engine calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// ObserveDecision counts one access guard decision
func (c *Collectors) ObserveDecision(decision, state string) {
	if c == nil {
		return
	}
	c.guardDecisions.WithLabelValues(decision, state).Inc()
}

// ObserveWebhook counts one billing webhook delivery
func (c *Collectors) ObserveWebhook(eventType, outcome string) {
	if c == nil {
		return
	}
	c.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// ObserveEngine counts one trading engine call
func (c *Collectors) ObserveEngine(operation, outcome string) {
	if c == nil {
		return
	}
	c.engineRequests.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
