// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package sinks provides combinators for [monitoredloop.Sink].
//
// Concrete sinks live in the subpackages: promsink (Prometheus), statsink
// (in-memory quantile summaries), and logsink (rate-limited slow callback
// warnings).
package sinks

import (
	"errors"

	"github.com/joeycumines/go-monitoredloop"
)

// Multi returns a sink which delivers each sample to every one of sinks, in
// order. Nil sinks are skipped. Every sink is called, even if an earlier one
// fails or panics, and all failures are joined.
func Multi(sinks ...monitoredloop.Sink) monitoredloop.Sink {
	filtered := make([]monitoredloop.Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return func(sample monitoredloop.Sample) error {
		var errs []error
		for _, sink := range filtered {
			if err := call(sink, sample); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Filter returns a sink which only delivers samples for which keep returns
// true.
func Filter(keep func(sample monitoredloop.Sample) bool, sink monitoredloop.Sink) monitoredloop.Sink {
	if keep == nil {
		panic(`sinks: nil filter`)
	}
	if sink == nil {
		panic(`sinks: nil sink`)
	}
	return func(sample monitoredloop.Sample) error {
		if !keep(sample) {
			return nil
		}
		return sink(sample)
	}
}

// Channel returns a sink which sends samples to ch, without blocking. If ch
// is full, the sample is dropped, and [ErrDropped] is returned.
func Channel(ch chan<- monitoredloop.Sample) monitoredloop.Sink {
	if ch == nil {
		panic(`sinks: nil channel`)
	}
	return func(sample monitoredloop.Sample) error {
		select {
		case ch <- sample:
			return nil
		default:
			return ErrDropped
		}
	}
}

// ErrDropped is returned by a [Channel] sink that is full.
var ErrDropped = errors.New(`sinks: sample dropped`)

func call(sink monitoredloop.Sink, sample monitoredloop.Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &monitoredloop.PanicError{Value: r}
		}
	}()
	return sink(sample)
}
