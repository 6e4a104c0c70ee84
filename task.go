// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errTaskExited = errors.New("monitoredloop: task step exited the goroutine")

// Step is one turn of a [Task]. It runs on the loop goroutine, as a single
// callback, and is measured as one sample. To continue, a step calls
// [Task.Yield] or [Task.Sleep] before returning nil. Returning without
// either completes the task, as does returning an error.
type Step func(t *Task) error

// Task is a cooperative, multi-step unit of work, executed on a [Loop]. Each
// step is scheduled as a separate callback, and every sample it produces is
// named after the task, see [Task.String].
type Task struct {
	ctx    context.Context
	loop   *Loop
	done   chan struct{}
	err    error
	handle *Handle
	name   atomic.Pointer[string]
	// continuation, only accessed on the loop goroutine
	next      Step
	step      string
	nextDelay time.Duration
	cancelErr error
	stopCtx   func() bool
	id        uint64
	mu        sync.Mutex
	nextSet   bool
	finished  bool
}

// CreateTask schedules the first step of a new task, from any goroutine.
// The task is named using [TaskNameFromContext], or `Task-<id>` otherwise.
// If ctx is cancelled, the task is cancelled, finishing with the context's
// error.
func (l *Loop) CreateTask(ctx context.Context, step Step) (*Task, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Task{
		ctx:  ctx,
		loop: l,
		done: make(chan struct{}),
		step: funcName(step),
		id:   l.taskIDs.Add(1),
	}
	name, ok := TaskNameFromContext(ctx)
	if !ok {
		name = fmt.Sprintf(`Task-%d`, t.id)
	}
	t.name.Store(&name)
	if err := t.schedule(step, 0, true); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { t.cancel(ctx.Err()) })
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		stop()
	} else {
		t.stopCtx = stop
		t.mu.Unlock()
	}
	return t, nil
}

func (t *Task) schedule(step Step, delay time.Duration, threadsafe bool) error {
	fn := func() { t.run(step) }
	var (
		h   *Handle
		err error
	)
	switch {
	case delay > 0:
		h, err = t.loop.callLater(delay, fn, t)
	case threadsafe:
		h, err = t.loop.submit(t.loop.scheduler.Submit, fn, t)
	default:
		h, err = t.loop.submit(t.loop.scheduler.SubmitInternal, fn, t)
	}
	if err != nil {
		return err
	}
	t.mu.Lock()
	if !t.finished {
		t.handle = h
	}
	t.mu.Unlock()
	return nil
}

func (t *Task) run(step Step) {
	if err := t.ctx.Err(); err != nil {
		t.finish(err)
		return
	}
	if err := t.cancelled(); err != nil {
		t.finish(err)
		return
	}

	t.next, t.nextDelay, t.nextSet = nil, 0, false

	var ok bool
	defer func() {
		if ok {
			return
		}
		if r := recover(); r != nil {
			t.finish(&PanicError{Value: r})
			panic(r)
		}
		t.finish(errTaskExited)
	}()
	err := step(t)
	ok = true

	if err != nil || !t.nextSet {
		t.finish(err)
		return
	}
	if err := t.cancelled(); err != nil {
		t.finish(err)
		return
	}
	next, delay := t.next, t.nextDelay
	t.next = nil
	if err := t.schedule(next, delay, false); err != nil {
		t.finish(err)
	}
}

// cancelled returns the cancellation error, if any.
func (t *Task) cancelled() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelErr
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.err = err
	t.handle = nil
	stop := t.stopCtx
	t.stopCtx = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
	close(t.done)
}

// Yield schedules next as the following step, to run as soon as possible,
// after other ready callbacks. Must only be called from within a step. The
// last call to Yield or [Task.Sleep] wins.
func (t *Task) Yield(next Step) {
	t.next, t.nextDelay, t.nextSet = next, 0, true
}

// Sleep schedules next as the following step, to run after d. Must only be
// called from within a step. The last call to [Task.Yield] or Sleep wins.
func (t *Task) Sleep(d time.Duration, next Step) {
	t.next, t.nextDelay, t.nextSet = next, d, true
}

// Cancel requests cancellation. A pending step is cancelled immediately,
// otherwise the task finishes with [ErrTaskCancelled] instead of running
// its next step. Returns false if the task already finished, or was already
// cancelled.
func (t *Task) Cancel() bool {
	return t.cancel(ErrTaskCancelled)
}

func (t *Task) cancel(err error) bool {
	t.mu.Lock()
	if t.finished || t.cancelErr != nil {
		t.mu.Unlock()
		return false
	}
	t.cancelErr = err
	h := t.handle
	t.mu.Unlock()
	if h != nil && h.Cancel() {
		t.finish(err)
	}
	return true
}

// Done returns a channel that is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's result, which is nil until it finishes, and nil if
// it completed successfully. A panicking step results in a [*PanicError].
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task finishes, or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context returns the context the task was created with.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Loop returns the loop the task runs on.
func (t *Task) Loop() *Loop {
	return t.loop
}

// ID returns the loop-unique identifier of the task.
func (t *Task) ID() uint64 {
	return t.id
}

// Name returns the task name.
func (t *Task) Name() string {
	return *t.name.Load()
}

// SetName renames the task. Samples produced after the rename use the new
// name.
func (t *Task) SetName(name string) {
	t.name.Store(&name)
}

// String implements [fmt.Stringer], and is the pretty name reported for
// each of the task's steps, e.g. `<Task name="[GET] /ping" step=main.handle>`.
func (t *Task) String() string {
	return fmt.Sprintf(`<Task name=%q step=%s>`, t.Name(), t.step)
}
