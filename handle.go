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

// Handle is returned by the [Loop] scheduling methods, and identifies one
// scheduled callback. It is bound to the callback's [Envelope] once the
// submission succeeds.
type Handle struct {
	when     time.Time
	envelope *Envelope
	task     *Task
	timer    *time.Timer
	loop     *Loop
	id       uint64
	timed    bool
}

// ID returns the loop-unique identifier of the handle.
func (h *Handle) ID() uint64 {
	return h.id
}

// Task returns the task this handle runs a step of, or nil.
func (h *Handle) Task() *Task {
	return h.task
}

// Callback returns the original, unwrapped, callback.
func (h *Handle) Callback() func() {
	return h.envelope.Unwrap()
}

// Envelope returns the instrumentation wrapper actually submitted.
func (h *Handle) Envelope() *Envelope {
	return h.envelope
}

// When returns the time a [Loop.CallLater] callback is due, or the zero time.
func (h *Handle) When() time.Time {
	return h.when
}

// Cancel prevents the callback from running, if it has not yet started. The
// pending count is decremented immediately, and no sample is produced. It
// returns false if the callback already started, finished, or was cancelled.
func (h *Handle) Cancel() bool {
	if !h.envelope.Cancel() {
		return false
	}
	if h.timed && h.loop != nil {
		h.loop.forgetTimer(h.envelope)
	}
	return true
}

// Cancelled reports whether the handle was cancelled.
func (h *Handle) Cancelled() bool {
	return h.envelope.Cancelled()
}

// String implements [fmt.Stringer], e.g. `Handle(main.work)`.
func (h *Handle) String() string {
	if h.timed {
		return fmt.Sprintf(`TimerHandle(%s)`, funcName(h.envelope.callback))
	}
	return fmt.Sprintf(`Handle(%s)`, funcName(h.envelope.callback))
}

func (h *Handle) prettyName() string {
	if h.task != nil {
		return h.task.String()
	}
	return h.String()
}
