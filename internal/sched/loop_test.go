package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reverielabs/reverie/internal/errors"
)

// startLoop runs a loop in the background and returns a cancel function
// that shuts it down and waits for Run to return.
func startLoop(t *testing.T) (*Loop, func()) {
	t.Helper()

	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()

	return loop, func() {
		cancel()
		<-loop.Done()
	}
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		if err := loop.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}

	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("executed %d tasks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task order violated at index %d: got %d", i, v)
		}
	}
}

func TestLoop_PostFromLoopDoesNotDeadlock(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	ran := make(chan struct{})
	err := loop.Post(func() {
		// Posting from the consumer goroutine must not block.
		_ = loop.Post(func() { close(ran) })
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("nested post never executed")
	}
}

func TestLoop_PostAfterShutdown(t *testing.T) {
	loop, stop := startLoop(t)
	stop()

	err := loop.Post(func() { t.Error("task ran after shutdown") })
	if !errors.Is(err, errors.ErrSchedulerStopped) {
		t.Errorf("Post() error = %v, want ErrSchedulerStopped", err)
	}
}

func TestLoop_CallWaitsForCompletion(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	var done bool
	if err := loop.Call(func() {
		time.Sleep(20 * time.Millisecond)
		done = true
	}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	// done was written on the loop goroutine; Call's return happens-after.
	if !done {
		t.Error("Call returned before the task completed")
	}
}

func TestPostDelayed_Fires(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	fired := make(chan struct{})
	task := loop.PostDelayed(func() { close(fired) }, 10*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never fired")
	}
	if !task.Fired() {
		t.Error("Fired() = false after the task ran")
	}
}

func TestPostDelayed_CancelSuppressesCallback(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	task := loop.PostDelayed(func() { t.Error("canceled task ran") }, 50*time.Millisecond)
	task.Cancel()

	time.Sleep(200 * time.Millisecond)
	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if task.Fired() {
		t.Error("Fired() = true for a canceled task")
	}
}

func TestPostDelayed_CancelOnLoopBeatsQueuedTimer(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	// Stall the loop so the timer fires and its callback sits queued, then
	// cancel from the still-running task ahead of it. The callback must be
	// suppressed even though its timer already fired.
	var task *Task
	ready := make(chan struct{})

	_ = loop.Post(func() {
		<-ready
		task.Cancel()
	})
	task = loop.PostDelayed(func() { t.Error("task ran despite cancel") }, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond) // timer fires, callback queues behind the blocker
	close(ready)

	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if task.Fired() {
		t.Error("canceled task executed")
	}
}

func TestTask_CancelIdempotent(t *testing.T) {
	loop, stop := startLoop(t)
	defer stop()

	task := loop.PostDelayed(func() {}, time.Hour)
	task.Cancel()
	task.Cancel()
	task.Cancel()
}
