// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package logsink logs warnings for samples exceeding configured thresholds,
// e.g. callbacks blocking the loop, rate limited per callback.
package logsink

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-monitoredloop"
	"github.com/joeycumines/logiface"
)

// Defaults, see [New].
const (
	DefaultWallTimeThreshold = 100 * time.Millisecond
)

// DefaultRates are used to limit log events, per kind and callback, unless
// [WithRates] is provided.
var DefaultRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 30,
}

// Sink logs samples that exceed thresholds. It does not retain samples.
type Sink struct {
	logger     *logiface.Logger[logiface.Event]
	limiter    *catrate.Limiter
	suppressed atomic.Uint64
	wallTime   time.Duration
	loopLag    time.Duration
	pending    int
}

type config struct {
	rates    map[time.Duration]int
	wallTime time.Duration
	loopLag  time.Duration
	pending  int
}

// Option configures a [Sink].
type Option func(c *config)

// WithWallTimeThreshold sets the callback wall time, above which a warning
// is logged. Defaults to [DefaultWallTimeThreshold]. Zero disables.
func WithWallTimeThreshold(d time.Duration) Option {
	return func(c *config) { c.wallTime = d }
}

// WithLoopLagThreshold sets the loop lag, above which a warning is logged.
// Disabled by default.
func WithLoopLagThreshold(d time.Duration) Option {
	return func(c *config) { c.loopLag = d }
}

// WithPendingThreshold sets the pending callback count, above which a
// warning is logged. Disabled by default.
func WithPendingThreshold(n int) Option {
	return func(c *config) { c.pending = n }
}

// WithRates overrides [DefaultRates], see [catrate.NewLimiter]. An empty map
// disables rate limiting.
func WithRates(rates map[time.Duration]int) Option {
	return func(c *config) { c.rates = rates }
}

type category struct {
	kind string
	name string
}

// New initializes a Sink. A nil logger disables logging. Panics if the
// configured rates are invalid.
func New(logger *logiface.Logger[logiface.Event], opts ...Option) *Sink {
	c := config{
		rates:    DefaultRates,
		wallTime: DefaultWallTimeThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	x := &Sink{
		logger:   logger,
		wallTime: c.wallTime,
		loopLag:  c.loopLag,
		pending:  c.pending,
	}
	if len(c.rates) != 0 {
		x.limiter = catrate.NewLimiter(c.rates)
	}
	return x
}

// Observe implements [monitoredloop.Sink], as a method value.
func (x *Sink) Observe(sample monitoredloop.Sample) error {
	if x.wallTime > 0 && sample.CallbackWallTime > x.wallTime {
		x.warn(`slow_callback`, sample, `monitoredloop: callback blocked the loop`)
	}
	if x.loopLag > 0 && sample.LoopLag > x.loopLag {
		x.warn(`loop_lag`, sample, `monitoredloop: callback started late`)
	}
	if x.pending > 0 && sample.LoopHandlesCount > x.pending {
		x.warn(`loop_handles_count`, sample, `monitoredloop: pending callbacks backlog`)
	}
	return nil
}

// Suppressed returns the number of warnings dropped by rate limiting.
func (x *Sink) Suppressed() uint64 {
	return x.suppressed.Load()
}

func (x *Sink) warn(kind string, sample monitoredloop.Sample, msg string) {
	b := x.logger.Warning()
	if !b.Enabled() {
		return
	}
	if x.limiter != nil {
		if _, ok := x.limiter.Allow(category{kind: kind, name: sample.CallbackPrettyName}); !ok {
			x.suppressed.Add(1)
			b.Release()
			return
		}
	}
	b.Str(`kind`, kind).
		Str(`callback`, sample.CallbackPrettyName).
		Dur(`wall_time`, sample.CallbackWallTime).
		Dur(`loop_lag`, sample.LoopLag).
		Int(`loop_handles_count`, sample.LoopHandlesCount).
		Log(msg)
}
