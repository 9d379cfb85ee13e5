package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal       prometheus.Counter
	eventsFiredTotal prometheus.Counter
	tickDuration     prometheus.Histogram

	// Webhook verification metrics
	verificationsTotal *prometheus.CounterVec

	// Dispatch metrics
	dispatchesTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triggerd_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.eventsFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triggerd_scheduler_events_fired_total",
		Help: "Total number of scheduled events fired.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triggerd_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triggerd_webhook_verifications_total",
		Help: "Total number of webhook deliveries processed, by outcome.",
	}, []string{"outcome"})
	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triggerd_dispatches_total",
		Help: "Total number of downstream dispatches, by action kind and result.",
	}, []string{"kind", "result"})

	s.register(reg, s.ticksTotal, "triggerd_scheduler_ticks_total")
	s.register(reg, s.eventsFiredTotal, "triggerd_scheduler_events_fired_total")
	s.register(reg, s.tickDuration, "triggerd_scheduler_tick_duration_seconds")
	s.register(reg, s.verificationsTotal, "triggerd_webhook_verifications_total")
	s.register(reg, s.dispatchesTotal, "triggerd_dispatches_total")
	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, fired int) {
	s.ticksTotal.Inc()
	s.tickDuration.Observe(duration.Seconds())
	s.eventsFiredTotal.Add(float64(fired))
}

func (s *PrometheusSink) VerificationCompleted(outcome string) {
	s.verificationsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) DispatchCompleted(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.dispatchesTotal.WithLabelValues(kind, result).Inc()
}
