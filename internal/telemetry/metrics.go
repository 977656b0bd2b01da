// Package telemetry holds the Prometheus collectors and the OpenTelemetry
// tracer provider shared by the assistant's components.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "almond"

// Metrics groups every collector the assistant exports. A nil *Metrics is
// valid and records nothing, so components can take one optionally.
type Metrics struct {
	MessagesEnqueued   prometheus.Counter
	MessagesDuplicate  prometheus.Counter
	MessagesProcessed  *prometheus.CounterVec
	ActiveLanes        prometheus.Gauge
	DelegateLatency    *prometheus.HistogramVec
	DelegateErrors     *prometheus.CounterVec
	FragmentsStored    *prometheus.CounterVec
	FragmentsDropped   prometheus.Counter
	Retrievals         *prometheus.CounterVec
	Compressions       *prometheus.CounterVec
	ForgetSweeps       prometheus.Counter
	FragmentsForgotten prometheus.Counter
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics registers the assistant collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_enqueued_total",
			Help:      "Inbound messages accepted into a conversation queue.",
		}),
		MessagesDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_duplicate_total",
			Help:      "Inbound messages dropped because their ID was already seen.",
		}),
		MessagesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_processed_total",
			Help:      "Messages handled by the pipeline, by outcome.",
		}, []string{"outcome"}),
		ActiveLanes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "active_lanes",
			Help:      "Conversations currently holding queue state.",
		}),
		DelegateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delegate",
			Name:      "request_duration_seconds",
			Help:      "Language-model request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 7, 10, 20},
		}, []string{"provider"}),
		DelegateErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delegate",
			Name:      "errors_total",
			Help:      "Language-model requests that returned an error.",
		}, []string{"provider"}),
		FragmentsStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "fragments_stored_total",
			Help:      "Memory fragments written, by tier.",
		}, []string{"tier"}),
		FragmentsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "fragments_dropped_total",
			Help:      "Store requests dropped for empty content.",
		}),
		Retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "retrievals_total",
			Help:      "Retrieval attempts, by the stage that produced the result.",
		}, []string{"stage"}),
		Compressions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "compressions_total",
			Help:      "History compressions, by outcome.",
		}, []string{"outcome"}),
		ForgetSweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "forget_sweeps_total",
			Help:      "Completed forgetting sweeps.",
		}),
		FragmentsForgotten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "fragments_forgotten_total",
			Help:      "Fragments removed by forgetting sweeps.",
		}),
	}
}

// Enqueued records an accepted inbound message.
func (m *Metrics) Enqueued() {
	if m == nil {
		return
	}
	m.MessagesEnqueued.Inc()
}

// Duplicate records a de-duplicated inbound message.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.MessagesDuplicate.Inc()
}

// Processed records a pipeline outcome ("ok" or "error").
func (m *Metrics) Processed(outcome string) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(outcome).Inc()
}

// SetActiveLanes reports the number of live conversation lanes.
func (m *Metrics) SetActiveLanes(n int) {
	if m == nil {
		return
	}
	m.ActiveLanes.Set(float64(n))
}

// ObserveDelegate records one language-model call.
func (m *Metrics) ObserveDelegate(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DelegateLatency.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.DelegateErrors.WithLabelValues(provider).Inc()
	}
}

// Stored records a fragment written to tier.
func (m *Metrics) Stored(tier string) {
	if m == nil {
		return
	}
	m.FragmentsStored.WithLabelValues(tier).Inc()
}

// Dropped records a rejected empty fragment.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.FragmentsDropped.Inc()
}

// Retrieved records which retrieval stage answered ("long", "short",
// "rewrite" or "miss").
func (m *Metrics) Retrieved(stage string) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(stage).Inc()
}

// Compressed records a compression outcome ("ok", "skipped" or "failed").
func (m *Metrics) Compressed(outcome string) {
	if m == nil {
		return
	}
	m.Compressions.WithLabelValues(outcome).Inc()
}

// Swept records a finished forgetting sweep that removed n fragments.
func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.ForgetSweeps.Inc()
	m.FragmentsForgotten.Add(float64(n))
}
