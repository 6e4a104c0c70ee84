// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// envelopeOptions holds configuration options for Envelope creation.
type envelopeOptions struct {
	logger *logiface.Logger[logiface.Event]
	name   string
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger configures the structured logger used by the Loop, and by every
// Envelope it creates, e.g. to report sink failures. A nil logger (the
// default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Envelope Options ---

// EnvelopeOption configures an Envelope, see [NewEnvelope] and [Wrap].
type EnvelopeOption interface {
	applyEnvelope(*envelopeOptions)
}

// envelopeOptionImpl implements EnvelopeOption.
type envelopeOptionImpl struct {
	applyEnvelopeFunc func(*envelopeOptions)
}

func (e *envelopeOptionImpl) applyEnvelope(opts *envelopeOptions) {
	e.applyEnvelopeFunc(opts)
}

// WithEnvelopeLogger configures the structured logger used to report sink
// failures. A nil logger (the default) disables logging.
func WithEnvelopeLogger(logger *logiface.Logger[logiface.Event]) EnvelopeOption {
	return &envelopeOptionImpl{func(opts *envelopeOptions) {
		opts.logger = logger
	}}
}

// WithEnvelopeName overrides the name reported for the callback, when it is
// not bound to a [Handle]. An empty name restores the default, which, for
// [Wrap], is the name of the wrapped function.
func WithEnvelopeName(name string) EnvelopeOption {
	return &envelopeOptionImpl{func(opts *envelopeOptions) {
		opts.name = name
	}}
}

// resolveEnvelopeOptions applies EnvelopeOption instances to envelopeOptions.
func resolveEnvelopeOptions(opts []EnvelopeOption) envelopeOptions {
	var cfg envelopeOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyEnvelope(&cfg)
		}
	}
	return cfg
}
