// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"testing"
	"time"

	"github.com/joeycumines/go-monitoredloop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_invalidMonitorType(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{`--monitor-type=bogus`, `--addr=127.0.0.1:0`, `--log-level=off`})
	assert.EqualError(t, cmd.Execute(), `invalid monitor-type: "bogus"`)
}

func TestCommand_invalidLogLevel(t *testing.T) {
	cmd := newCommand()
	cmd.SetArgs([]string{`--log-level=loud`})
	assert.EqualError(t, cmd.Execute(), `config: unknown log level: "loud"`)
}

func TestNewSink_plain(t *testing.T) {
	v := viper.New()
	v.Set(flagMonitorType, monitorTypePlain)
	reg := prometheus.NewRegistry()
	sink, stats, err := newSink(v, reg, nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.Nil(t, stats)
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewSink_monitored(t *testing.T) {
	v := viper.New()
	v.Set(flagMonitorType, monitorTypeMonitored)
	reg := prometheus.NewRegistry()
	sink, stats, err := newSink(v, reg, nil)
	require.NoError(t, err)
	require.NotNil(t, sink)
	require.NotNil(t, stats)

	require.NoError(t, sink(monitoredloop.Sample{
		CallbackPrettyName: `main.work`,
		CallbackWallTime:   time.Millisecond,
		LoopHandlesCount:   2,
	}))
	assert.Equal(t, 1, stats.Snapshot().WallTime.Count)
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.NotZero(t, count)

	_, _, err = newSink(v, reg, nil)
	assert.ErrorContains(t, err, `register metrics`)
}
