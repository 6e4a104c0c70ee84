// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrUnsupported is returned by lifecycle methods (e.g. [Loop.Run]) when
	// the underlying [Scheduler] does not implement them.
	ErrUnsupported = errors.New("monitoredloop: operation not supported by scheduler")

	// ErrTaskCancelled is the result of a [Task] cancelled via [Task.Cancel].
	ErrTaskCancelled = errors.New("monitoredloop: task cancelled")
)

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("monitoredloop: panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, otherwise nil.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// SinkError is logged when a [Sink] fails to accept a [Sample]. It is never
// returned to, or raised in, the scheduled callback.
type SinkError struct {
	// Cause is the error returned by the sink, or a [*PanicError].
	Cause error
	// Name is the pretty name of the callback the sample described.
	Name string
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("monitoredloop: sink failed for %s: %v", e.Name, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SinkError) Unwrap() error {
	return e.Cause
}
