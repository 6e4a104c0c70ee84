// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package load generates concurrent HTTP traffic, against the demo server.
package load

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultPaths mixes fast, cooperative, and blocking requests.
var DefaultPaths = []string{
	`/ping`,
	`/async_slow?sleep_for=5&coroutines_number=10`,
	`/blocking_slow?sleep_for=1`,
}

// Config models the load to generate.
type Config struct {
	// Client defaults to a client with a Timeout.
	Client *http.Client
	// Logger may be nil.
	Logger *logiface.Logger[logiface.Event]
	// Rand picks paths, defaults to a random source.
	Rand *rand.Rand
	// Target is the base URL, e.g. http://localhost:1441.
	Target string
	// Paths are chosen from uniformly, defaults to DefaultPaths.
	Paths []string
	// Requests is the total number of requests.
	Requests int
	// Concurrency limits in-flight requests, defaults to 20.
	Concurrency int
	// Rate limits requests per second, if positive.
	Rate float64
	// Timeout per request, if Client is nil, defaults to 30s.
	Timeout time.Duration
}

// Result summarizes a run.
type Result struct {
	// Status counts responses by status code, 0 meaning a transport error.
	Status   map[int]int
	Duration time.Duration
	// Slowest is the greatest request latency.
	Slowest time.Duration
}

// String implements [fmt.Stringer].
func (x Result) String() string {
	codes := make([]int, 0, len(x.Status))
	for code := range x.Status {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	var b strings.Builder
	for i, code := range codes {
		if i != 0 {
			b.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&b, `%d=%d`, code, x.Status[code])
	}
	return fmt.Sprintf(`duration=%s slowest=%s status{%s}`, x.Duration, x.Slowest, b.String())
}

// Run sends c.Requests requests, returning once all have completed, or ctx
// is cancelled. Failed requests are counted, not returned as errors.
func Run(ctx context.Context, c Config) (*Result, error) {
	if c.Target == `` {
		return nil, fmt.Errorf(`load: target is required`)
	}
	if c.Requests < 0 {
		return nil, fmt.Errorf(`load: invalid request count: %d`, c.Requests)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
	if len(c.Paths) == 0 {
		c.Paths = DefaultPaths
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.Rate), 1)
	}
	target := strings.TrimSuffix(c.Target, `/`)

	var (
		mu     sync.Mutex
		result = Result{Status: make(map[int]int)}
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for range c.Requests {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		url := target + c.Paths[c.Rand.IntN(len(c.Paths))]
		g.Go(func() error {
			code, latency := get(gctx, c.Client, url)
			if code != http.StatusOK {
				c.Logger.Warning().Str(`url`, url).Int(`status`, code).Dur(`latency`, latency).Log(`load: request failed`)
			} else {
				c.Logger.Debug().Str(`url`, url).Dur(`latency`, latency).Log(`load: request completed`)
			}
			mu.Lock()
			defer mu.Unlock()
			result.Status[code]++
			result.Slowest = max(result.Slowest, latency)
			return nil
		})
	}
	_ = g.Wait()
	result.Duration = time.Since(start)

	return &result, ctx.Err()
}

func get(ctx context.Context, client *http.Client, url string) (int, time.Duration) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0
	}
	res, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode, time.Since(start)
}
