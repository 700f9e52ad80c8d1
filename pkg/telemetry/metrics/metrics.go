package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records all engine metrics against a private
// Prometheus registry. All Record methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	assignmentsTotal   *prometheus.CounterVec
	exclusionsTotal    *prometheus.CounterVec
	unassignedTotal    *prometheus.CounterVec
	assignmentDuration prometheus.Histogram

	syncAppliesTotal    *prometheus.CounterVec
	syncViolationsTotal *prometheus.CounterVec

	srmTestsTotal   prometheus.Counter
	srmFlaggedTotal *prometheus.CounterVec
}

// NewCollector creates a collector with all metrics registered. If registry
// is nil a fresh private registry is used. namespace prefixes every metric
// name; pass "" for the default "avos".
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "avos"
	}

	c := &Collector{
		registry: registry,
		assignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Assignments produced, by layer, experiment, and variant.",
		}, []string{"layer", "experiment", "variant"}),
		exclusionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exclusions_total",
			Help:      "Splitter exclusions, by layer and reason.",
		}, []string{"layer", "reason"}),
		unassignedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unassigned_total",
			Help:      "Units that matched no experiment in the layer.",
		}, []string{"layer"}),
		assignmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_duration_seconds",
			Help:      "Time spent computing one layer assignment.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		syncAppliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_applies_total",
			Help:      "Sync outcomes per layer change set.",
		}, []string{"layer", "outcome"}),
		syncViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_violations_total",
			Help:      "Sync rule violations, by layer and rule.",
		}, []string{"layer", "rule"}),
		srmTestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "srm_tests_total",
			Help:      "Sample-ratio-mismatch tests performed.",
		}),
		srmFlaggedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "srm_flagged_total",
			Help:      "SRM tests that flagged a mismatch, by experiment.",
		}, []string{"experiment"}),
	}

	registry.MustRegister(
		c.assignmentsTotal,
		c.exclusionsTotal,
		c.unassignedTotal,
		c.assignmentDuration,
		c.syncAppliesTotal,
		c.syncViolationsTotal,
		c.srmTestsTotal,
		c.srmFlaggedTotal,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordAssignment counts a produced assignment.
func (c *Collector) RecordAssignment(layer, experiment, variant string) {
	if c == nil {
		return
	}
	c.assignmentsTotal.WithLabelValues(layer, experiment, variant).Inc()
}

// RecordExclusion counts a splitter exclusion.
func (c *Collector) RecordExclusion(layer, reason string) {
	if c == nil {
		return
	}
	c.exclusionsTotal.WithLabelValues(layer, reason).Inc()
}

// RecordUnassigned counts a unit that matched no experiment.
func (c *Collector) RecordUnassigned(layer string) {
	if c == nil {
		return
	}
	c.unassignedTotal.WithLabelValues(layer).Inc()
}

// RecordAssignmentDuration observes the time spent on one assignment.
func (c *Collector) RecordAssignmentDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.assignmentDuration.Observe(d.Seconds())
}

// RecordSyncApply counts a sync outcome ("applied" or "rejected").
func (c *Collector) RecordSyncApply(layer, outcome string) {
	if c == nil {
		return
	}
	c.syncAppliesTotal.WithLabelValues(layer, outcome).Inc()
}

// RecordSyncViolation counts one sync rule violation.
func (c *Collector) RecordSyncViolation(layer, rule string) {
	if c == nil {
		return
	}
	c.syncViolationsTotal.WithLabelValues(layer, rule).Inc()
}

// RecordSRMTest counts an SRM test and its verdict.
func (c *Collector) RecordSRMTest(experiment string, flagged bool) {
	if c == nil {
		return
	}
	c.srmTestsTotal.Inc()
	if flagged {
		c.srmFlaggedTotal.WithLabelValues(experiment).Inc()
	}
}
