package taskpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a deferred unit of work. It is opaque to the pool beyond its
// small/large tag. A panic inside a Task is recovered, halts further
// dispatch, and surfaces as an error from Idle.
type Task func()

// Snapshot is a point-in-time view of a Pool's internal state.
type Snapshot struct {
	Running int
	SmallQ  int
	LargeQ  int
	Limit   int
}

// Pool is a two-level (small/large) priority scheduler with an adjustable
// parallelism limit. The zero value is not usable; construct with [New].
type Pool struct {
	mu      sync.Mutex
	limit   int
	running int
	small   []Task
	large   []Task
	pumping bool

	// g supervises task goroutines; ctx is the group context, canceled
	// on the first task failure so pump stops dispatching.
	g   *errgroup.Group
	ctx context.Context

	// pollInterval controls how often Idle rechecks quiescence.
	pollInterval time.Duration
}

// New creates a Pool with the given initial limit (must be >= 1).
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	g, gCtx := errgroup.WithContext(context.Background())
	return &Pool{
		limit:        limit,
		g:            g,
		ctx:          gCtx,
		pollInterval: 10 * time.Millisecond,
	}
}

// Push enqueues a task. It may be dispatched immediately if there is
// headroom under the current limit.
func (p *Pool) Push(task Task, small bool) {
	p.mu.Lock()
	if small {
		p.small = append(p.small, task)
	} else {
		p.large = append(p.large, task)
	}
	p.mu.Unlock()

	p.pump()
}

// SetLimit updates the parallelism limit. Lowering it does not cancel
// running tasks; new starts are simply suppressed until running drops
// below the new limit. Raising it immediately dispatches to fill headroom.
func (p *Pool) SetLimit(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	p.limit = n
	p.mu.Unlock()

	p.pump()
}

// Snapshot returns a point-in-time view of the pool's state.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Running: p.running,
		SmallQ:  len(p.small),
		LargeQ:  len(p.large),
		Limit:   p.limit,
	}
}

// Idle blocks until the pool settles or ctx is done. Settling normally
// means both queues are drained and no task is running; after a task
// panic it means the surviving tasks have exited, and the recovered
// panic is returned as an error. Resolution is polling-based; there is
// no requirement for wake-ups to be edge-triggered.
func (p *Pool) Idle(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		if p.settled() {
			if p.ctx.Err() != nil {
				return p.g.Wait()
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// settled reports whether Idle may return: no task running, and either
// both queues drained or dispatch halted by a task failure.
func (p *Pool) settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running != 0 {
		return false
	}
	if p.ctx.Err() != nil {
		return true
	}
	return len(p.small) == 0 && len(p.large) == 0
}

// pump is the self-referential dispatch step. The pumping sentinel
// prevents two stacks from racing on the same queues when pump is
// re-invoked from a task's completion hook while another pump is still
// dispatching (re-entrancy safety).
func (p *Pool) pump() {
	p.mu.Lock()
	if p.pumping {
		p.mu.Unlock()
		return
	}
	p.pumping = true

	for p.running < p.limit {
		if p.ctx.Err() != nil {
			break
		}
		task, ok := p.popLocked()
		if !ok {
			break
		}
		p.running++
		p.g.Go(func() (err error) {
			defer func() {
				r := recover()
				if r != nil {
					err = fmt.Errorf("taskpool: task panic: %v", r)
				}
				p.mu.Lock()
				p.running--
				p.mu.Unlock()
				// The group context is canceled only after this
				// closure returns, so a failed task must not pump:
				// it would redispatch before the cancellation lands.
				if r == nil {
					p.pump()
				}
			}()
			task()
			return nil
		})
	}

	p.pumping = false
	p.mu.Unlock()
}

// popLocked pops the next task to dispatch: small strictly precedes large.
// Caller must hold p.mu.
func (p *Pool) popLocked() (Task, bool) {
	if len(p.small) > 0 {
		t := p.small[0]
		p.small = p.small[1:]
		return t, true
	}
	if len(p.large) > 0 {
		t := p.large[0]
		p.large = p.large[1:]
		return t, true
	}
	return nil, false
}
