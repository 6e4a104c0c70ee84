// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package load

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if r.URL.Path == `/fail` {
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	result, err := Run(context.Background(), Config{
		Target:      srv.URL + `/`,
		Paths:       []string{`/ok`, `/fail`},
		Requests:    50,
		Concurrency: 4,
		Rand:        rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Status[http.StatusOK]+result.Status[http.StatusTeapot])
	assert.NotZero(t, result.Status[http.StatusOK])
	assert.NotZero(t, result.Status[http.StatusTeapot])
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.GreaterOrEqual(t, result.Slowest, 5*time.Millisecond)
	assert.Contains(t, result.String(), `200=`)
	assert.Contains(t, result.String(), `418=`)
}

func TestRun_rate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	start := time.Now()
	result, err := Run(context.Background(), Config{
		Target:   srv.URL,
		Paths:    []string{`/`},
		Requests: 5,
		Rate:     50,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Status[http.StatusOK])
	// the first request is immediate, then one every 20ms
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestRun_transportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result, err := Run(context.Background(), Config{Target: url, Paths: []string{`/`}, Requests: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Status[0])
}

func TestRun_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Run(ctx, Config{Target: `http://127.0.0.1:1`, Requests: 10, Rate: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Status)
}

func TestRun_invalid(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	assert.Error(t, err)
	_, err = Run(context.Background(), Config{Target: `http://localhost`, Requests: -1})
	assert.Error(t, err)
}
