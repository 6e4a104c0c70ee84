// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package promsink exports samples as Prometheus metrics.
package promsink

import (
	"github.com/joeycumines/go-monitoredloop"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets are the histogram buckets, in seconds, used unless
// [WithBuckets] is provided. They span a microsecond through to a callback
// that blocks the loop for seconds.
var DefaultBuckets = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 2, 4}

// Sink records samples as Prometheus metrics:
//
//   - <namespace>_callback_wall_time_seconds (histogram)
//   - <namespace>_loop_lag_seconds (histogram)
//   - <namespace>_loop_handles_count (gauge, the most recent value)
//   - <namespace>_callbacks_total (counter)
//
// If [WithNameLabel] is set, the histograms and counter carry a `callback`
// label, set to the (possibly mapped) pretty name.
type Sink struct {
	wallTime  *prometheus.HistogramVec
	loopLag   *prometheus.HistogramVec
	callbacks *prometheus.CounterVec
	pending   prometheus.Gauge
	name      func(string) string
}

type config struct {
	namespace string
	subsystem string
	buckets   []float64
	name      func(string) string
	labels    prometheus.Labels
}

// Option configures a [Sink].
type Option func(c *config)

// WithNamespace overrides the metric namespace, which defaults to
// `monitoredloop`.
func WithNamespace(namespace string) Option {
	return func(c *config) { c.namespace = namespace }
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *config) { c.subsystem = subsystem }
}

// WithBuckets overrides [DefaultBuckets].
func WithBuckets(buckets []float64) Option {
	return func(c *config) { c.buckets = buckets }
}

// WithConstLabels attaches constant labels to every metric, e.g. to
// distinguish multiple loops in one process.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *config) { c.labels = labels }
}

// WithNameLabel enables the `callback` label. Pretty names may have
// unbounded cardinality (e.g. task names derived from request paths), so
// name should map them to a bounded set. A nil name uses the pretty name
// as-is.
func WithNameLabel(name func(prettyName string) string) Option {
	return func(c *config) {
		if name == nil {
			name = func(s string) string { return s }
		}
		c.name = name
	}
}

// New initializes a Sink, registering its metrics with reg, or
// [prometheus.DefaultRegisterer] if reg is nil.
func New(reg prometheus.Registerer, opts ...Option) (*Sink, error) {
	c := config{
		namespace: `monitoredloop`,
		buckets:   DefaultBuckets,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var labelNames []string
	if c.name != nil {
		labelNames = []string{`callback`}
	}

	x := &Sink{
		wallTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   c.namespace,
			Subsystem:   c.subsystem,
			Name:        `callback_wall_time_seconds`,
			Help:        `Wall-clock duration of each callback executed by the event loop.`,
			Buckets:     c.buckets,
			ConstLabels: c.labels,
		}, labelNames),
		loopLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   c.namespace,
			Subsystem:   c.subsystem,
			Name:        `loop_lag_seconds`,
			Help:        `Time between a callback being scheduled and starting to execute.`,
			Buckets:     c.buckets,
			ConstLabels: c.labels,
		}, labelNames),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   c.namespace,
			Subsystem:   c.subsystem,
			Name:        `callbacks_total`,
			Help:        `Total number of callbacks executed by the event loop.`,
			ConstLabels: c.labels,
		}, labelNames),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   c.namespace,
			Subsystem:   c.subsystem,
			Name:        `loop_handles_count`,
			Help:        `Number of callbacks pending, as of the most recently finished callback.`,
			ConstLabels: c.labels,
		}),
		name: c.name,
	}

	for _, collector := range [...]prometheus.Collector{x.wallTime, x.loopLag, x.callbacks, x.pending} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return x, nil
}

// Observe implements [monitoredloop.Sink], as a method value.
func (x *Sink) Observe(sample monitoredloop.Sample) error {
	var labels []string
	if x.name != nil {
		labels = []string{x.name(sample.CallbackPrettyName)}
	}
	x.wallTime.WithLabelValues(labels...).Observe(sample.CallbackWallTime.Seconds())
	x.loopLag.WithLabelValues(labels...).Observe(sample.LoopLag.Seconds())
	x.callbacks.WithLabelValues(labels...).Inc()
	x.pending.Set(float64(sample.LoopHandlesCount))
	return nil
}
