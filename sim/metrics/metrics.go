// Package metrics collects optical train telemetry with Prometheus collectors:
// effect applications per stage, stage durations, FOV throughput and observations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opticsim/opticsim/sim"
)

// Collector implements sim.Recorder on a private registry.
type Collector struct {
	registry *prometheus.Registry

	effectsApplied *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	fovsProcessed  prometheus.Counter
	observations   prometheus.Counter
}

var _ sim.Recorder = (*Collector)(nil)

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "opticsim"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.effectsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_applied_total",
			Help:      "Total number of effect applications by pipeline stage and effect class",
		},
		[]string{"stage", "class"},
	)

	c.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in one pipeline stage of an observation or readout",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		},
		[]string{"stage"},
	)

	c.fovsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fovs_processed_total",
		Help:      "Total number of fields of view extracted and accumulated",
	})

	c.observations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observations_total",
		Help:      "Total number of completed observations",
	})

	c.registry.MustRegister(c.effectsApplied, c.stageDuration, c.fovsProcessed, c.observations)
	return c
}

// Registry returns the registry holding every collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// EffectApplied counts one application of e at stage.
func (c *Collector) EffectApplied(stage sim.Stage, e sim.Effect) {
	c.effectsApplied.WithLabelValues(stage.String(), e.Base().Class()).Inc()
}

// StageDuration observes the wall time of one stage.
func (c *Collector) StageDuration(stage sim.Stage, d time.Duration) {
	c.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

func (c *Collector) FOVProcessed() {
	c.fovsProcessed.Inc()
}

func (c *Collector) ObservationCompleted() {
	c.observations.Inc()
}

// WriteTextfile writes every metric in the text exposition format, for node-exporter
// style textfile collection after a batch run.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
