// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// ErrLoopClosed is returned by [Loop.CallLater] after [Loop.Shutdown] or
// [Loop.Close] was called.
var ErrLoopClosed = errors.New("monitoredloop: loop closed")

// Loop is an instrumented scheduler. Every callback scheduled through it is
// wrapped in an [Envelope], sharing one [State], and reporting to one
// [Sink].
//
// All scheduling methods are safe to call from any goroutine, though
// [Loop.CallSoon] is intended for use from the loop goroutine.
type Loop struct {
	scheduler Scheduler
	state     *State
	sink      Sink
	logger    *logiface.Logger[logiface.Event]
	timers    map[*Envelope]*Handle
	handleIDs atomic.Uint64
	taskIDs   atomic.Uint64
	timersMu  sync.Mutex
	closed    bool
}

// New creates a Loop backed by a new [eventloop.Loop]. The sink may be nil.
func New(sink Sink, opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}
	return newLoop(EventLoop(loop), sink, cfg), nil
}

// NewFromScheduler creates a Loop backed by an existing scheduler. The sink
// may be nil. Panics if scheduler is nil.
func NewFromScheduler(scheduler Scheduler, sink Sink, opts ...LoopOption) (*Loop, error) {
	if scheduler == nil {
		panic(`monitoredloop: nil scheduler`)
	}
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return newLoop(scheduler, sink, cfg), nil
}

// Factory returns a constructor equivalent to calling [New] with the given
// arguments, suitable for [RunMain].
func Factory(sink Sink, opts ...LoopOption) func() (*Loop, error) {
	return func() (*Loop, error) {
		return New(sink, opts...)
	}
}

func newLoop(scheduler Scheduler, sink Sink, cfg *loopOptions) *Loop {
	if sink == nil {
		sink = discardSample
	}
	return &Loop{
		scheduler: scheduler,
		state:     NewState(),
		sink:      sink,
		logger:    cfg.logger,
	}
}

// CallSoon schedules fn, with loop priority. On error, nothing is pending.
func (l *Loop) CallSoon(fn func()) (*Handle, error) {
	return l.submit(l.scheduler.SubmitInternal, fn, nil)
}

// CallSoonThreadsafe schedules fn from any goroutine. On error, nothing is
// pending.
func (l *Loop) CallSoonThreadsafe(fn func()) (*Handle, error) {
	return l.submit(l.scheduler.Submit, fn, nil)
}

// CallLater schedules fn to run after delay. The callback is counted as
// pending for the whole delay, and the delay is included in the reported
// loop lag.
func (l *Loop) CallLater(delay time.Duration, fn func()) (*Handle, error) {
	return l.callLater(delay, fn, nil)
}

func (l *Loop) submit(enqueue func(func()) error, fn func(), task *Task) (*Handle, error) {
	envelope := newEnvelope(l.state, l.sink, fn, l.logger, task)
	h := &Handle{
		envelope: envelope,
		task:     task,
		loop:     l,
		id:       l.handleIDs.Add(1),
	}
	// bound before the callback can possibly run, so every sample is named
	// consistently
	envelope.Bind(h)
	if err := enqueue(envelope.Run); err != nil {
		envelope.Cancel()
		return nil, err
	}
	return h, nil
}

func (l *Loop) callLater(delay time.Duration, fn func(), task *Task) (*Handle, error) {
	envelope := newEnvelope(l.state, l.sink, fn, l.logger, task)
	h := &Handle{
		when:     envelope.EnqueuedAt().Add(delay),
		envelope: envelope,
		task:     task,
		loop:     l,
		id:       l.handleIDs.Add(1),
		timed:    true,
	}
	envelope.Bind(h)

	l.timersMu.Lock()
	defer l.timersMu.Unlock()
	if l.closed {
		envelope.Cancel()
		return nil, ErrLoopClosed
	}
	if l.timers == nil {
		l.timers = make(map[*Envelope]*Handle)
	}
	l.timers[envelope] = h
	// fireTimer blocks on timersMu, so h.timer is always set before use
	h.timer = time.AfterFunc(delay, func() { l.fireTimer(envelope) })
	return h, nil
}

func (l *Loop) fireTimer(envelope *Envelope) {
	if !l.forgetTimer(envelope) {
		return
	}
	if err := l.scheduler.SubmitInternal(envelope.Run); err != nil && l.abandon(envelope, err) {
		l.logger.Warning().
			Err(err).
			Str(`callback`, envelope.PrettyName()).
			Log(`monitoredloop: dropped timer callback`)
	}
}

// abandon cancels an envelope that will never be run, finishing its task,
// if any, with err.
func (l *Loop) abandon(envelope *Envelope, err error) bool {
	if !envelope.Cancel() {
		return false
	}
	if envelope.task != nil {
		envelope.task.finish(err)
	}
	return true
}

// forgetTimer returns true if envelope was a tracked timer.
func (l *Loop) forgetTimer(envelope *Envelope) bool {
	l.timersMu.Lock()
	defer l.timersMu.Unlock()
	h, ok := l.timers[envelope]
	if !ok {
		return false
	}
	delete(l.timers, envelope)
	h.timer.Stop()
	return true
}

// cancelTimers prevents further timers, cancelling all that are pending,
// and finishing their tasks with [ErrLoopClosed].
func (l *Loop) cancelTimers() {
	l.timersMu.Lock()
	timers := l.timers
	l.timers = nil
	l.closed = true
	for _, h := range timers {
		h.timer.Stop()
	}
	l.timersMu.Unlock()
	for envelope := range timers {
		l.abandon(envelope, ErrLoopClosed)
	}
}

// Pending returns the number of callbacks scheduled but not yet finished.
func (l *Loop) Pending() int {
	return l.state.Count()
}

// State returns the shared pending-callback counter.
func (l *Loop) State() *State {
	return l.state
}

// Scheduler returns the underlying scheduler.
func (l *Loop) Scheduler() Scheduler {
	return l.scheduler
}

// Run runs the underlying scheduler, blocking until it stops, see
// [eventloop.Loop.Run]. Returns [ErrUnsupported] if the scheduler cannot be
// run.
func (l *Loop) Run(ctx context.Context) error {
	if r, ok := l.scheduler.(runner); ok {
		return r.Run(ctx)
	}
	return ErrUnsupported
}

// Shutdown cancels pending timers, then gracefully stops the underlying
// scheduler, see [eventloop.Loop.Shutdown].
func (l *Loop) Shutdown(ctx context.Context) error {
	l.cancelTimers()
	if s, ok := l.scheduler.(shutdowner); ok {
		return s.Shutdown(ctx)
	}
	return ErrUnsupported
}

// Close cancels pending timers, then immediately stops the underlying
// scheduler, see [eventloop.Loop.Close].
func (l *Loop) Close() error {
	l.cancelTimers()
	if c, ok := l.scheduler.(closer); ok {
		return c.Close()
	}
	return ErrUnsupported
}

// RunMain creates a loop using factory, runs it, and runs main as a [Task]
// on it, returning the task's result once it completes. The loop is stopped
// before RunMain returns. If ctx is cancelled first, the task is cancelled,
// and the run error is returned.
func RunMain(ctx context.Context, factory func() (*Loop, error), main Step) error {
	loop, err := factory()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- loop.Run(runCtx)
	}()

	task, err := loop.CreateTask(ctx, main)
	if err != nil {
		cancel()
		<-runErr
		_ = loop.Close()
		return err
	}

	select {
	case <-task.Done():
	case err := <-runErr:
		task.Cancel()
		_ = loop.Close()
		if err == nil {
			err = ErrTaskCancelled
		}
		return err
	}

	cancel()
	err = <-runErr
	_ = loop.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(task.Err(), err)
	}
	return task.Err()
}
