// Package taskpool implements a two-priority concurrency pool with a
// dynamically adjustable parallelism limit.
//
// A [Pool] holds two FIFO queues, "small" and "large". While running is
// below the limit, it pops from small if non-empty, else from large, and
// dispatches — small strictly precedes large for dispatch, but a running
// large task is never preempted. Lowering the limit never cancels running
// tasks; it only suppresses new starts until running drops back below the
// limit. Raising the limit immediately fills headroom.
//
// # Usage
//
//	p := taskpool.New(3)
//	p.Push(func() { ... }, true)  // small
//	p.Push(func() { ... }, false) // large
//	p.SetLimit(8)
//	p.Idle(ctx)
package taskpool
