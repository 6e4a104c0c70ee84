// Package monitoredloop instruments a cooperative, single-goroutine event
// loop, producing one telemetry [Sample] per callback that passes through
// the loop's scheduling entry points.
//
// # Architecture
//
// Three components form a pipeline around task submission:
//
//   - [Loop] is the scheduler adapter. It intercepts [Loop.CallSoon],
//     [Loop.CallSoonThreadsafe] and [Loop.CallLater], wraps every callback in
//     an [Envelope], then forwards the envelope to the underlying
//     [Scheduler] (by default a [github.com/joeycumines/go-eventloop] loop).
//   - [Envelope] wraps exactly one callback. It is created at schedule time,
//     which records the enqueue time and increments the pending count, and
//     emits exactly one [Sample] when the loop invokes it.
//   - [State] is the pending-callback counter shared by all envelopes of one
//     [Loop]. It is the only instrumentation state touched from more than one
//     goroutine.
//
// Samples are delivered to a [Sink] supplied by the host application, e.g.
// a prometheus exporter (see the sinks sub-packages). A failing sink is
// logged and ignored: it never changes the outcome of the callback.
//
// # Sample Schema
//
//   - CallbackWallTime: how long the callback occupied the loop goroutine.
//   - CallbackPrettyName: best-effort identity, the [Task] name when the
//     callback is a task step, otherwise the function name.
//   - LoopHandlesCount: callbacks still pending once this one finished.
//   - LoopLag: time between scheduling and the start of invocation.
//
// # Tasks
//
// A [Task] is a resumable unit of work, made of steps that each run as one
// callback. A task that sleeps or yields produces one sample per turn, so
// wall time measures how long a single turn blocked the loop, not the
// lifetime of the task. Names may be assigned by external collaborators
// (see [ContextWithTaskName] and the httpname package) before a step runs.
//
// # Usage
//
//	loop, err := monitoredloop.New(func(s monitoredloop.Sample) error {
//	    if s.CallbackWallTime > 100*time.Millisecond {
//	        log.Printf("blocking callback %s took %v", s.CallbackPrettyName, s.CallbackWallTime)
//	    }
//	    return nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	go loop.Run(ctx)
//
//	_, _ = loop.CallSoonThreadsafe(func() {
//	    // runs on the loop goroutine, and is sampled
//	})
//
// Or, equivalently, via the zero-argument factory form:
//
//	err := monitoredloop.RunMain(ctx, monitoredloop.Factory(sink), func(t *monitoredloop.Task) error {
//	    return nil
//	})
package monitoredloop
