// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Envelope lifecycle, see Envelope.status.
//
//	envelopePending → envelopeRunning → envelopeFinished  [Run]
//	envelopePending → envelopeCancelled                   [Cancel]
const (
	envelopePending uint32 = iota
	envelopeRunning
	envelopeFinished
	envelopeCancelled
)

// for testing purposes
var timeNow = time.Now

// Envelope wraps exactly one callback, and is the unit actually submitted to
// the underlying [Scheduler]. Creating an Envelope increments the pending
// count of the associated [State], and records the enqueue time. Invoking
// [Envelope.Run] runs the callback, decrements the pending count, then
// delivers exactly one [Sample] to the sink.
//
// An Envelope runs at most once. Callbacks that are rescheduled must be
// wrapped in a new Envelope per attempt.
type Envelope struct {
	enqueued time.Time
	callback func()
	sink     Sink
	state    *State
	logger   *logiface.Logger[logiface.Event]
	// task is set for task steps, so the name resolves even if the step runs
	// before its handle is bound
	task   *Task
	name   string
	handle atomic.Pointer[Handle]
	status atomic.Uint32
}

// NewEnvelope wraps callback, incrementing the pending count of state. The
// sink may be nil, in which case samples are discarded. Panics if state is
// nil.
//
// Most users should schedule callbacks via [Loop], which creates envelopes
// internally. NewEnvelope is provided for integrating other schedulers.
func NewEnvelope(state *State, sink Sink, callback func(), opts ...EnvelopeOption) *Envelope {
	cfg := resolveEnvelopeOptions(opts)
	e := newEnvelope(state, sink, callback, cfg.logger, nil)
	e.name = cfg.name
	return e
}

func newEnvelope(state *State, sink Sink, callback func(), logger *logiface.Logger[logiface.Event], task *Task) *Envelope {
	if state == nil {
		panic(`monitoredloop: nil state`)
	}
	if sink == nil {
		sink = discardSample
	}
	e := &Envelope{
		callback: callback,
		sink:     sink,
		state:    state,
		logger:   logger,
		task:     task,
	}
	state.Increment(1)
	e.enqueued = timeNow()
	return e
}

// Wrap instruments a callback that returns a value. The envelope is created
// (and the pending count incremented) immediately, so Wrap should be called
// at schedule time. The returned function must be called at most once; it
// returns exactly what fn returns, and re-panics if fn panics, regardless of
// the behavior of the sink. Samples are named after fn.
func Wrap[T any](state *State, sink Sink, fn func() T, opts ...EnvelopeOption) func() T {
	var result T
	e := NewEnvelope(state, sink, func() { result = fn() }, opts...)
	if e.name == `` {
		e.name = funcName(fn)
	}
	return func() T {
		e.Run()
		return result
	}
}

// Run invokes the wrapped callback. It must be called at most once, and is
// a no-op if the envelope was cancelled, or has already run.
//
// If the callback panics, the pending count is still decremented, and the
// sample still delivered, before the panic continues, unchanged.
func (e *Envelope) Run() {
	if !e.status.CompareAndSwap(envelopePending, envelopeRunning) {
		return
	}
	start := timeNow()
	defer e.finish(start, start.Sub(e.enqueued))
	e.callback()
}

func (e *Envelope) finish(start time.Time, lag time.Duration) {
	count := e.release()
	wall := timeNow().Sub(start)
	e.status.Store(envelopeFinished)
	e.deliver(Sample{
		CallbackPrettyName: e.PrettyName(),
		CallbackWallTime:   wall,
		LoopLag:            lag,
		LoopHandlesCount:   count,
	})
}

// deliver is the sink failure boundary: nothing escapes it.
func (e *Envelope) deliver(sample Sample) {
	defer func() {
		if r := recover(); r != nil {
			e.sinkFailed(sample, &PanicError{Value: r})
		}
	}()
	if err := e.sink(sample); err != nil {
		e.sinkFailed(sample, err)
	}
}

func (e *Envelope) sinkFailed(sample Sample, cause error) {
	e.logger.Warning().
		Err(&SinkError{Cause: cause, Name: sample.CallbackPrettyName}).
		Str(`callback`, sample.CallbackPrettyName).
		Log(`monitoredloop: sink failed, sample dropped`)
}

// Cancel prevents a pending envelope from running, releasing its slot in
// the pending count. No sample is produced. It returns false if the envelope
// is already running, finished, or cancelled.
func (e *Envelope) Cancel() bool {
	if !e.status.CompareAndSwap(envelopePending, envelopeCancelled) {
		return false
	}
	e.release()
	return true
}

// release decrements the pending count, logging if it would have gone
// negative, which indicates the State was shared with something else.
func (e *Envelope) release() int {
	count, clamped := e.state.decrement(1)
	if clamped {
		e.logger.Warning().
			Str(`callback`, e.PrettyName()).
			Log(`monitoredloop: pending count underflow, clamped to zero`)
	}
	return count
}

// Cancelled reports whether [Envelope.Cancel] succeeded.
func (e *Envelope) Cancelled() bool {
	return e.status.Load() == envelopeCancelled
}

// Finished reports whether the callback has run to completion (or panicked).
func (e *Envelope) Finished() bool {
	return e.status.Load() == envelopeFinished
}

// Bind attaches the handle used to resolve the pretty name. [Loop] binds
// before submitting. It is safe to call concurrently with Run; a sample
// produced before binding falls back to the callback's own identity.
func (e *Envelope) Bind(h *Handle) {
	e.handle.Store(h)
}

// Handle returns the bound handle, or nil.
func (e *Envelope) Handle() *Handle {
	return e.handle.Load()
}

// Unwrap returns the original callback.
func (e *Envelope) Unwrap() func() {
	return e.callback
}

// EnqueuedAt returns the time the envelope was created.
func (e *Envelope) EnqueuedAt() time.Time {
	return e.enqueued
}

// PrettyName resolves the best available name for the wrapped unit of work:
// the task (via the bound handle, or as known at construction), then the
// handle itself, then any configured name, then the raw callback.
func (e *Envelope) PrettyName() string {
	if h := e.handle.Load(); h != nil {
		return h.prettyName()
	}
	if e.task != nil {
		return e.task.String()
	}
	if e.name != `` {
		return e.name
	}
	return funcName(e.callback)
}
