// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"fmt"
	"time"
)

// Sample is the telemetry snapshot delivered to a [Sink], once per callback
// invocation.
type Sample struct {
	// CallbackPrettyName is a best-effort human-readable identity of the
	// invoked unit of work, e.g. a [Task] name, or a function name.
	CallbackPrettyName string

	// CallbackWallTime is the wall-clock duration of the invocation.
	//
	// For a [Task], this covers a single turn (step), not the task lifetime.
	CallbackWallTime time.Duration

	// LoopLag is the time between the callback being scheduled and the start
	// of its invocation. For [Loop.CallLater], this includes the delay.
	LoopLag time.Duration

	// LoopHandlesCount is the number of callbacks still pending once this
	// one finished, excluding itself.
	LoopHandlesCount int
}

// Sink receives samples. It is called synchronously, on the loop goroutine,
// so implementations should be fast. Any error (or panic) is logged as a
// warning, then dropped.
type Sink func(sample Sample) error

// String implements [fmt.Stringer].
func (x Sample) String() string {
	return fmt.Sprintf(
		`%s: wall_time=%s loop_lag=%s loop_handles_count=%d`,
		x.CallbackPrettyName,
		x.CallbackWallTime,
		x.LoopLag,
		x.LoopHandlesCount,
	)
}

func discardSample(Sample) error { return nil }
