// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock replaces timeNow, for the duration of the test.
func fakeClock(t *testing.T) *time.Time {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	old := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = old })
	return &now
}

func namedCallback() {}

func TestEnvelope_countsDown(t *testing.T) {
	const n = 5
	state := NewState()
	var recorder sampleRecorder
	envelopes := make([]*Envelope, n)
	for i := range envelopes {
		envelopes[i] = NewEnvelope(state, recorder.Sink, func() {})
		assert.Equal(t, i+1, state.Count())
	}
	for _, e := range envelopes {
		e.Run()
	}
	samples := recorder.Samples()
	require.Len(t, samples, n)
	for i, sample := range samples {
		assert.Equal(t, n-1-i, sample.LoopHandlesCount)
	}
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_Run_onlyOnce(t *testing.T) {
	state := NewState()
	var recorder sampleRecorder
	var calls int
	e := NewEnvelope(state, recorder.Sink, func() { calls++ })
	e.Run()
	e.Run()
	assert.Equal(t, 1, calls)
	assert.Len(t, recorder.Samples(), 1)
	assert.True(t, e.Finished())
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_timing(t *testing.T) {
	now := fakeClock(t)
	state := NewState()
	var recorder sampleRecorder
	e := NewEnvelope(state, recorder.Sink, func() { *now = now.Add(50 * time.Millisecond) })
	assert.Equal(t, *now, e.EnqueuedAt())
	*now = now.Add(20 * time.Millisecond)
	e.Run()
	samples := recorder.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 50*time.Millisecond, samples[0].CallbackWallTime)
	assert.Equal(t, 20*time.Millisecond, samples[0].LoopLag)
	assert.Equal(t, 0, samples[0].LoopHandlesCount)
}

func TestEnvelope_callbackPanic(t *testing.T) {
	state := NewState()
	var recorder sampleRecorder
	other := NewEnvelope(state, recorder.Sink, func() {})
	e := NewEnvelope(state, recorder.Sink, func() { panic(`boom`) })
	assert.PanicsWithValue(t, `boom`, e.Run)
	assert.Equal(t, 1, state.Count())
	samples := recorder.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 1, samples[0].LoopHandlesCount)
	assert.True(t, e.Finished())
	other.Run()
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_sinkFailure(t *testing.T) {
	for _, tc := range [...]struct {
		Name string
		Sink Sink
		Log  string
	}{
		{
			Name: `error`,
			Sink: func(Sample) error { return errors.New(`sink unavailable`) },
			Log:  `sink unavailable`,
		},
		{
			Name: `panic`,
			Sink: func(Sample) error { panic(`sink exploded`) },
			Log:  `sink exploded`,
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			var buf syncBuffer
			state := NewState()
			fn := Wrap(state, tc.Sink, func() int { return 10 }, WithEnvelopeLogger(newTestLogger(&buf)))
			assert.Equal(t, 1, state.Count())
			assert.Equal(t, 10, fn())
			assert.Equal(t, 0, state.Count())
			out := buf.String()
			assert.Contains(t, out, `"lvl":"warning"`)
			assert.Contains(t, out, `monitoredloop: sink failed, sample dropped`)
			assert.Contains(t, out, tc.Log)
			assert.Contains(t, out, `"callback":"`)
		})
	}
}

func TestEnvelope_sinkFailure_nilLogger(t *testing.T) {
	state := NewState()
	fn := Wrap(state, func(Sample) error { return errors.New(`ignored`) }, func() string { return `ok` })
	assert.Equal(t, `ok`, fn())
}

func TestWrap_callbackPanicWithFailingSink(t *testing.T) {
	state := NewState()
	fn := Wrap(state, func(Sample) error { panic(`sink`) }, func() int { panic(`callback`) })
	assert.PanicsWithValue(t, `callback`, func() { fn() })
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_Cancel(t *testing.T) {
	state := NewState()
	var recorder sampleRecorder
	var ran bool
	e := NewEnvelope(state, recorder.Sink, func() { ran = true })
	assert.Equal(t, 1, state.Count())
	assert.True(t, e.Cancel())
	assert.False(t, e.Cancel())
	assert.True(t, e.Cancelled())
	assert.Equal(t, 0, state.Count())
	e.Run()
	assert.False(t, ran)
	assert.Empty(t, recorder.Samples())
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_Cancel_afterRun(t *testing.T) {
	state := NewState()
	e := NewEnvelope(state, nil, func() {})
	e.Run()
	assert.False(t, e.Cancel())
	assert.False(t, e.Cancelled())
	assert.Equal(t, 0, state.Count())
}

func TestNewEnvelope_nilState(t *testing.T) {
	assert.PanicsWithValue(t, `monitoredloop: nil state`, func() { NewEnvelope(nil, nil, func() {}) })
}

func TestEnvelope_PrettyName(t *testing.T) {
	state := NewState()
	var recorder sampleRecorder

	a := NewEnvelope(state, recorder.Sink, namedCallback)
	b := NewEnvelope(state, recorder.Sink, func() {})
	assert.Equal(t, `github.com/joeycumines/go-monitoredloop.namedCallback`, a.PrettyName())
	assert.NotEqual(t, a.PrettyName(), b.PrettyName())
	assert.NotNil(t, a.Unwrap())

	h := &Handle{envelope: a}
	a.Bind(h)
	assert.Same(t, h, a.Handle())
	assert.Equal(t, `Handle(github.com/joeycumines/go-monitoredloop.namedCallback)`, a.PrettyName())

	a.Run()
	b.Run()
	samples := recorder.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, `Handle(github.com/joeycumines/go-monitoredloop.namedCallback)`, samples[0].CallbackPrettyName)
	assert.True(t, strings.HasPrefix(samples[1].CallbackPrettyName, `github.com/joeycumines/go-monitoredloop.TestEnvelope_PrettyName.func`), samples[1].CallbackPrettyName)
}

func namedValue() int { return 7 }

func TestWrap_name(t *testing.T) {
	state := NewState()
	var recorder sampleRecorder

	assert.Equal(t, 7, Wrap(state, recorder.Sink, namedValue)())
	assert.Equal(t, 7, Wrap(state, recorder.Sink, namedValue, WithEnvelopeName(`custom`))())
	assert.Equal(t, 7, Wrap(state, recorder.Sink, namedValue, WithEnvelopeName(``))())

	samples := recorder.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, `github.com/joeycumines/go-monitoredloop.namedValue`, samples[0].CallbackPrettyName)
	assert.Equal(t, `custom`, samples[1].CallbackPrettyName)
	assert.Equal(t, `github.com/joeycumines/go-monitoredloop.namedValue`, samples[2].CallbackPrettyName)
}

func TestNewEnvelope_options(t *testing.T) {
	state := NewState()
	e := NewEnvelope(state, nil, namedCallback, nil, WithEnvelopeName(`first`), nil, WithEnvelopeName(`second`))
	assert.Equal(t, `second`, e.PrettyName())
	assert.True(t, e.Cancel())
	e = NewEnvelope(state, nil, namedCallback, WithEnvelopeName(`first`), WithEnvelopeName(``))
	assert.Equal(t, `github.com/joeycumines/go-monitoredloop.namedCallback`, e.PrettyName())
	assert.True(t, e.Cancel())
	assert.Equal(t, 0, state.Count())
}

func TestEnvelope_underflowLogged(t *testing.T) {
	var buf syncBuffer
	state := NewState()
	var recorder sampleRecorder
	e := NewEnvelope(state, recorder.Sink, namedCallback, WithEnvelopeLogger(newTestLogger(&buf)))
	assert.Equal(t, 0, state.Decrement(1))
	assert.Empty(t, buf.String())

	e.Run()
	samples := recorder.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 0, samples[0].LoopHandlesCount)
	assert.Contains(t, buf.String(), `monitoredloop: pending count underflow, clamped to zero`)
	assert.Contains(t, buf.String(), `namedCallback`)

	buf.mu.Lock()
	buf.buf.Reset()
	buf.mu.Unlock()
	e = NewEnvelope(state, recorder.Sink, namedCallback, WithEnvelopeLogger(newTestLogger(&buf)))
	e.Run()
	assert.Empty(t, buf.String())
}

func TestSample_String(t *testing.T) {
	assert.Equal(t,
		`main.work: wall_time=1ms loop_lag=2µs loop_handles_count=3`,
		Sample{
			CallbackPrettyName: `main.work`,
			CallbackWallTime:   time.Millisecond,
			LoopLag:            2 * time.Microsecond,
			LoopHandlesCount:   3,
		}.String(),
	)
}
