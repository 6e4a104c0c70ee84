// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"context"
	"reflect"
	"runtime"
)

type taskNameKey struct{}

// ContextWithTaskName returns a context carrying a name, which
// [Loop.CreateTask] uses as the default name of the task. This is the
// mechanism by which e.g. HTTP middleware can label tasks with the route.
func ContextWithTaskName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, taskNameKey{}, name)
}

// TaskNameFromContext returns the name set by [ContextWithTaskName], if any.
func TaskNameFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return ``, false
	}
	name, ok := ctx.Value(taskNameKey{}).(string)
	return name, ok
}

// funcName returns the fully qualified name of fn, e.g.
// `github.com/a/b.(*T).Method-fm`, or a placeholder if it cannot be resolved.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return `<unknown>`
	}
	if v.IsNil() {
		return `<nil>`
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return `<unknown>`
}
