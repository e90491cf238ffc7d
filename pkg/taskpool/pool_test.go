package taskpool

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPoolPriorityOrdering(t *testing.T) {
	p := New(1)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	release := make(chan struct{})
	gated := func(name string) Task {
		return func() {
			<-release
			record(name)
		}
	}
	plain := func(name string) Task {
		return func() { record(name) }
	}

	// Push L1, L2, S1, L3, S2 with limit=1.
	p.Push(gated("L1"), false)
	p.Push(plain("L2"), false)
	p.Push(plain("S1"), true)
	p.Push(plain("L3"), false)
	p.Push(plain("S2"), true)

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Idle(ctx); err != nil {
		t.Fatalf("Idle: %v", err)
	}

	want := []string{"L1", "S1", "S2", "L2", "L3"}
	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("start order = %v, want %v", got, want)
	}
}

func TestPoolRespectsLimit(t *testing.T) {
	p := New(2)

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	release := make(chan struct{})

	task := func() Task {
		return func() {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			<-release

			mu.Lock()
			running--
			mu.Unlock()
		}
	}

	for i := 0; i < 5; i++ {
		p.Push(task(), false)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	snapshotMax := maxRunning
	mu.Unlock()
	if snapshotMax > 2 {
		t.Fatalf("running exceeded limit: %d", snapshotMax)
	}

	snap := p.Snapshot()
	if snap.Running != 2 {
		t.Fatalf("expected 2 running at limit, got %d", snap.Running)
	}

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Idle(ctx); err != nil {
		t.Fatalf("Idle: %v", err)
	}
}

func TestLoweringLimitDoesNotCancelRunning(t *testing.T) {
	p := New(4)

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	task := func() Task {
		return func() {
			started <- struct{}{}
			<-release
		}
	}

	for i := 0; i < 4; i++ {
		p.Push(task(), false)
	}

	for i := 0; i < 4; i++ {
		<-started
	}

	p.SetLimit(1)

	snap := p.Snapshot()
	if snap.Running != 4 {
		t.Fatalf("lowering limit must not cancel running tasks: running=%d", snap.Running)
	}

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Idle(ctx); err != nil {
		t.Fatalf("Idle: %v", err)
	}
}

func TestRaisingLimitFillsHeadroomImmediately(t *testing.T) {
	p := New(1)

	release := make(chan struct{})
	started := make(chan struct{}, 3)
	task := func() Task {
		return func() {
			started <- struct{}{}
			<-release
		}
	}

	for i := 0; i < 3; i++ {
		p.Push(task(), false)
	}

	<-started // only one should have started so far

	select {
	case <-started:
		t.Fatal("a second task started before the limit was raised")
	case <-time.After(20 * time.Millisecond):
	}

	p.SetLimit(3)

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("raising the limit did not dispatch queued tasks")
		}
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Idle(ctx); err != nil {
		t.Fatalf("Idle: %v", err)
	}
}

func TestTaskPanicSurfacesFromIdle(t *testing.T) {
	p := New(1)

	var ran bool
	var mu sync.Mutex
	p.Push(func() { panic("boom") }, false)
	p.Push(func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Idle(ctx)
	if err == nil {
		t.Fatal("expected the task panic to surface from Idle")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error from Idle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ran {
		t.Error("a queued task was dispatched after a panic halted the pool")
	}
}

func TestIdleOnEmptyPool(t *testing.T) {
	p := New(3)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Idle(ctx); err != nil {
		t.Fatalf("Idle on empty pool should resolve immediately: %v", err)
	}
}
