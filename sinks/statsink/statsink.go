// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package statsink aggregates samples in memory, into streaming quantile
// summaries of callback wall time and loop lag.
package statsink

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-monitoredloop"
)

// Sink accumulates samples. The zero value is not usable, see [New].
// All methods are safe for concurrent use.
type Sink struct {
	wallTime   summary
	loopLag    summary
	slowest    string
	mu         sync.Mutex
	maxPending int
}

// Summary describes a series of durations. Quantiles are estimates.
type Summary struct {
	P50, P90, P95, P99 time.Duration
	Max, Mean          time.Duration
	Count              int
}

// Snapshot is a point-in-time copy of the aggregated statistics.
type Snapshot struct {
	WallTime Summary
	LoopLag  Summary
	// Slowest is the pretty name of the callback with the greatest wall time.
	Slowest string
	// MaxLoopHandlesCount is the greatest reported pending count.
	MaxLoopHandlesCount int
}

type summary struct {
	quantiles [4]estimator
	sum       time.Duration
	max       time.Duration
	count     int
}

var percentiles = [4]float64{0.50, 0.90, 0.95, 0.99}

// New initializes a new Sink.
func New() *Sink {
	x := new(Sink)
	x.wallTime.reset()
	x.loopLag.reset()
	return x
}

// Observe implements [monitoredloop.Sink], as a method value, e.g.
// `monitoredloop.New(stats.Observe)`. It never fails.
func (x *Sink) Observe(sample monitoredloop.Sample) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.wallTime.observe(sample.CallbackWallTime) {
		x.slowest = sample.CallbackPrettyName
	}
	x.loopLag.observe(sample.LoopLag)
	x.maxPending = max(x.maxPending, sample.LoopHandlesCount)
	return nil
}

// Snapshot returns the current statistics.
func (x *Sink) Snapshot() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Snapshot{
		WallTime:            x.wallTime.snapshot(),
		LoopLag:             x.loopLag.snapshot(),
		Slowest:             x.slowest,
		MaxLoopHandlesCount: x.maxPending,
	}
}

// Reset discards all statistics, returning the final snapshot.
func (x *Sink) Reset() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := Snapshot{
		WallTime:            x.wallTime.snapshot(),
		LoopLag:             x.loopLag.snapshot(),
		Slowest:             x.slowest,
		MaxLoopHandlesCount: x.maxPending,
	}
	x.wallTime.reset()
	x.loopLag.reset()
	x.slowest = ``
	x.maxPending = 0
	return s
}

// String implements [fmt.Stringer].
func (x Summary) String() string {
	return fmt.Sprintf(`count=%d mean=%s p50=%s p90=%s p95=%s p99=%s max=%s`,
		x.Count, x.Mean, x.P50, x.P90, x.P95, x.P99, x.Max)
}

// String implements [fmt.Stringer].
func (x Snapshot) String() string {
	return fmt.Sprintf(`wall_time{%s} loop_lag{%s} max_loop_handles_count=%d slowest=%q`,
		x.WallTime, x.LoopLag, x.MaxLoopHandlesCount, x.Slowest)
}

// observe returns true if d is the new maximum.
func (x *summary) observe(d time.Duration) bool {
	for i := range x.quantiles {
		x.quantiles[i].observe(d)
	}
	x.sum += d
	x.count++
	if x.count == 1 || d > x.max {
		x.max = d
		return true
	}
	return false
}

func (x *summary) reset() {
	for i, p := range percentiles {
		x.quantiles[i] = newEstimator(p)
	}
	x.sum, x.max, x.count = 0, 0, 0
}

func (x *summary) snapshot() Summary {
	s := Summary{
		P50:   x.quantiles[0].value(),
		P90:   x.quantiles[1].value(),
		P95:   x.quantiles[2].value(),
		P99:   x.quantiles[3].value(),
		Max:   x.max,
		Count: x.count,
	}
	if x.count != 0 {
		s.Mean = x.sum / time.Duration(x.count)
	}
	return s
}
