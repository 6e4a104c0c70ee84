// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package logsink

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-monitoredloop"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(stumpy.L.WithStumpy(
		stumpy.WithWriter(buf),
		stumpy.WithTimeField(``),
	)).Logger()
}

func lines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == `` {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestSink_wallTime(t *testing.T) {
	var buf bytes.Buffer
	sink := New(newLogger(&buf), WithRates(nil))

	require.NoError(t, sink.Observe(monitoredloop.Sample{CallbackPrettyName: `fast`, CallbackWallTime: time.Millisecond}))
	assert.Empty(t, lines(&buf))

	require.NoError(t, sink.Observe(monitoredloop.Sample{CallbackPrettyName: `slow`, CallbackWallTime: time.Second}))
	out := lines(&buf)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], `"lvl":"warning"`)
	assert.Contains(t, out[0], `"kind":"slow_callback"`)
	assert.Contains(t, out[0], `"callback":"slow"`)
	assert.Contains(t, out[0], `monitoredloop: callback blocked the loop`)
}

func TestSink_thresholds(t *testing.T) {
	var buf bytes.Buffer
	sink := New(newLogger(&buf),
		WithRates(nil),
		WithWallTimeThreshold(0),
		WithLoopLagThreshold(10*time.Millisecond),
		WithPendingThreshold(100),
	)

	require.NoError(t, sink.Observe(monitoredloop.Sample{CallbackWallTime: time.Hour, LoopLag: time.Millisecond, LoopHandlesCount: 100}))
	assert.Empty(t, lines(&buf))

	require.NoError(t, sink.Observe(monitoredloop.Sample{LoopLag: time.Second, LoopHandlesCount: 101}))
	out := lines(&buf)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], `"kind":"loop_lag"`)
	assert.Contains(t, out[1], `"kind":"loop_handles_count"`)
}

func TestSink_rateLimited(t *testing.T) {
	var buf bytes.Buffer
	sink := New(newLogger(&buf), WithRates(map[time.Duration]int{time.Hour: 1}))

	for range 3 {
		require.NoError(t, sink.Observe(monitoredloop.Sample{CallbackPrettyName: `a`, CallbackWallTime: time.Second}))
	}
	require.NoError(t, sink.Observe(monitoredloop.Sample{CallbackPrettyName: `b`, CallbackWallTime: time.Second}))

	out := lines(&buf)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], `"callback":"a"`)
	assert.Contains(t, out[1], `"callback":"b"`)
	assert.Equal(t, uint64(2), sink.Suppressed())
}

func TestSink_nilLogger(t *testing.T) {
	sink := New(nil)
	assert.NoError(t, sink.Observe(monitoredloop.Sample{CallbackWallTime: time.Hour}))
	assert.Equal(t, uint64(0), sink.Suppressed())
}

func TestNew_invalidRates(t *testing.T) {
	assert.Panics(t, func() { New(nil, WithRates(map[time.Duration]int{time.Second: -1})) })
}
