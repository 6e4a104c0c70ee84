// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package httpname labels the tasks that serve HTTP requests, so that
// samples identify the route, e.g. `[GET] /ping`, rather than the handler
// closure.
//
// The name is carried by the request context, see
// [monitoredloop.ContextWithTaskName], and is applied by
// [monitoredloop.Loop.CreateTask], when called with the request context.
package httpname

import (
	"net/http"

	"github.com/joeycumines/go-monitoredloop"
)

// Name returns the default task name for r, e.g. `[GET] /ping`.
func Name(r *http.Request) string {
	return `[` + r.Method + `] ` + r.URL.Path
}

// Middleware names requests using [Name]. An existing name is replaced.
func Middleware(next http.Handler) http.Handler {
	return WithNamer(Name)(next)
}

// WithNamer returns a middleware naming requests using namer, e.g. to map
// paths with identifiers to a route pattern. Panics if namer is nil.
func WithNamer(namer func(r *http.Request) string) func(next http.Handler) http.Handler {
	if namer == nil {
		panic(`httpname: nil namer`)
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			panic(`httpname: nil handler`)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := monitoredloop.ContextWithTaskName(r.Context(), namer(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
