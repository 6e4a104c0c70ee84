// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"context"

	"github.com/joeycumines/go-eventloop"
)

// Scheduler is the minimal contract of an underlying event loop, used by
// [Loop] to actually execute callbacks. Both methods must be safe to call
// from any goroutine.
//
// Implementations may additionally implement any of the following, which
// [Loop] will delegate to:
//
//	Run(ctx context.Context) error
//	Shutdown(ctx context.Context) error
//	Close() error
type Scheduler interface {
	// Submit enqueues fn from outside the loop goroutine.
	Submit(fn func()) error

	// SubmitInternal enqueues fn from the loop goroutine, or with loop
	// priority.
	SubmitInternal(fn func()) error
}

type (
	runner interface {
		Run(ctx context.Context) error
	}
	shutdowner interface {
		Shutdown(ctx context.Context) error
	}
	closer interface {
		Close() error
	}
)

// EventLoopScheduler adapts an [eventloop.Loop] to [Scheduler].
type EventLoopScheduler struct {
	loop *eventloop.Loop
}

var (
	_ Scheduler  = (*EventLoopScheduler)(nil)
	_ runner     = (*EventLoopScheduler)(nil)
	_ shutdowner = (*EventLoopScheduler)(nil)
	_ closer     = (*EventLoopScheduler)(nil)
)

// EventLoop adapts loop, which must not be nil.
func EventLoop(loop *eventloop.Loop) *EventLoopScheduler {
	if loop == nil {
		panic(`monitoredloop: nil event loop`)
	}
	return &EventLoopScheduler{loop: loop}
}

// Submit delegates to [eventloop.Loop.Submit].
func (x *EventLoopScheduler) Submit(fn func()) error {
	return x.loop.Submit(fn)
}

// SubmitInternal delegates to [eventloop.Loop.SubmitInternal].
func (x *EventLoopScheduler) SubmitInternal(fn func()) error {
	return x.loop.SubmitInternal(fn)
}

// Run delegates to [eventloop.Loop.Run].
func (x *EventLoopScheduler) Run(ctx context.Context) error {
	return x.loop.Run(ctx)
}

// Shutdown delegates to [eventloop.Loop.Shutdown].
func (x *EventLoopScheduler) Shutdown(ctx context.Context) error {
	return x.loop.Shutdown(ctx)
}

// Close delegates to [eventloop.Loop.Close].
func (x *EventLoopScheduler) Close() error {
	return x.loop.Close()
}

// Unwrap returns the underlying loop, e.g. to register file descriptors.
func (x *EventLoopScheduler) Unwrap() *eventloop.Loop {
	return x.loop
}
