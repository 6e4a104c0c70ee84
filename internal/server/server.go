// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package server implements the demo HTTP server, which serves every request
// as a task on a [monitoredloop.Loop], with both cooperative and
// deliberately blocking endpoints.
package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/joeycumines/go-monitoredloop"
	"github.com/joeycumines/go-monitoredloop/httpname"
	"github.com/joeycumines/logiface"
)

// Limits on request parameters.
const (
	MaxSleep = time.Minute
	MaxTasks = 10_000
)

// Server is an [http.Handler].
type Server struct {
	loop    *monitoredloop.Loop
	logger  *logiface.Logger[logiface.Event]
	handler http.Handler
}

var errBadRequest = errors.New(`bad request`)

// New initializes a Server. The metrics handler is optional, and is served
// directly, not on the loop. The logger may be nil.
func New(loop *monitoredloop.Loop, metrics http.Handler, logger *logiface.Logger[logiface.Event]) *Server {
	if loop == nil {
		panic(`server: nil loop`)
	}
	x := &Server{loop: loop, logger: logger}
	mux := http.NewServeMux()
	mux.Handle(`GET /ping`, x.task(x.ping))
	mux.Handle(`GET /async_slow`, x.task(x.asyncSlow))
	mux.Handle(`GET /blocking_slow`, x.task(x.blockingSlow))
	if metrics != nil {
		mux.Handle(`GET /metrics`, metrics)
	}
	x.handler = httpname.Middleware(mux)
	return x
}

func (x *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	x.handler.ServeHTTP(w, r)
}

// handlerFunc validates r, then returns the step to run on the loop, which
// sets *body.
type handlerFunc func(r *http.Request, body *string) (monitoredloop.Step, error)

// task runs the step returned by h as a task, named after the request,
// waiting for it to complete.
func (x *Server) task(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body string
		step, err := h(r, &body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		task, err := x.loop.CreateTask(r.Context(), step)
		if err != nil {
			x.logger.Err().Err(err).Str(`path`, r.URL.Path).Log(`server: failed to schedule task`)
			http.Error(w, `loop unavailable`, http.StatusServiceUnavailable)
			return
		}

		if err := task.Wait(r.Context()); err != nil {
			task.Cancel()
			x.logger.Warning().Err(err).Stringer(`task`, task).Log(`server: task failed`)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set(`Content-Type`, `text/plain; charset=utf-8`)
		_, _ = w.Write([]byte(body))
	})
}

func (x *Server) ping(_ *http.Request, body *string) (monitoredloop.Step, error) {
	return func(*monitoredloop.Task) error {
		*body = `pong`
		return nil
	}, nil
}

// asyncSlow sleeps cooperatively, in coroutines_number child tasks, each
// sleeping for sleep_for seconds, concurrently.
func (x *Server) asyncSlow(r *http.Request, body *string) (monitoredloop.Step, error) {
	d, err := sleepFor(r)
	if err != nil {
		return nil, err
	}
	n := 1
	if s := r.URL.Query().Get(`coroutines_number`); s != `` {
		n, err = strconv.Atoi(s)
		if err != nil || n < 0 || n > MaxTasks {
			return nil, fmt.Errorf(`%w: coroutines_number must be an integer in [0, %d]`, errBadRequest, MaxTasks)
		}
	}
	return func(t *monitoredloop.Task) error {
		remaining := n
		if remaining == 0 {
			*body = fmt.Sprintf(`slept for %s and created %d tasks`, d, n)
			return nil
		}
		for range n {
			_, err := t.Loop().CreateTask(t.Context(), func(child *monitoredloop.Task) error {
				child.Sleep(d, func(*monitoredloop.Task) error {
					remaining--
					return nil
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		// poll until the children are done; every turn is a separate sample
		var wait monitoredloop.Step
		wait = func(t *monitoredloop.Task) error {
			if remaining != 0 {
				t.Sleep(pollInterval(d), wait)
				return nil
			}
			*body = fmt.Sprintf(`slept for %s and created %d tasks`, d, n)
			return nil
		}
		t.Yield(wait)
		return nil
	}, nil
}

// blockingSlow blocks the loop goroutine for sleep_for seconds.
func (x *Server) blockingSlow(r *http.Request, body *string) (monitoredloop.Step, error) {
	d, err := sleepFor(r)
	if err != nil {
		return nil, err
	}
	return func(*monitoredloop.Task) error {
		time.Sleep(d)
		*body = fmt.Sprintf(`slept for %s`, d)
		return nil
	}, nil
}

// sleepFor parses the sleep_for query parameter, in (fractional) seconds.
func sleepFor(r *http.Request) (time.Duration, error) {
	s := r.URL.Query().Get(`sleep_for`)
	if s == `` {
		return 0, fmt.Errorf(`%w: sleep_for is required`, errBadRequest)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > MaxSleep.Seconds() {
		return 0, fmt.Errorf(`%w: sleep_for must be a number of seconds in [0, %d]`, errBadRequest, int(MaxSleep.Seconds()))
	}
	return time.Duration(math.Round(v * float64(time.Second))), nil
}

func pollInterval(d time.Duration) time.Duration {
	return min(max(d/10, time.Millisecond), 100*time.Millisecond)
}
