package sched

import (
	"context"
	"sync"
	"time"

	"github.com/reverielabs/reverie/internal/errors"
)

// Loop is a single-consumer cooperative run loop. Tasks posted to the loop
// execute one at a time, in posting order, on the goroutine that called Run.
//
// The queue is unbounded: Post never blocks the producer, which makes it
// safe to post from within a task running on the loop itself.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// New creates a new run loop. The loop does not execute tasks until Run
// is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is canceled. It must be called from
// exactly one goroutine; that goroutine becomes the loop's consumer.
//
// When ctx is canceled the loop stops accepting new tasks, discards any
// tasks still queued, and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()

			l.mu.Lock()
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.mu.Unlock()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Done returns a channel that is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn for execution on the loop goroutine. Tasks run in the
// order they were posted. Returns ErrSchedulerStopped if the loop has
// already shut down, in which case fn will never run.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return errors.ErrSchedulerStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call posts fn and blocks until it has finished executing on the loop
// goroutine. It must not be called from the loop goroutine itself, as that
// would deadlock. Returns ErrSchedulerStopped if the loop shuts down before
// fn runs.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	if err := l.Post(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		// The loop may have executed fn in its final drain before stopping.
		select {
		case <-ran:
			return nil
		default:
			return errors.ErrSchedulerStopped
		}
	}
}

// PostDelayed schedules fn to be posted to the loop after delay d. The
// returned Task can be canceled; a Task canceled from the loop goroutine
// before its callback has started is guaranteed never to run, even if the
// underlying timer already fired.
func (l *Loop) PostDelayed(fn func(), d time.Duration) *Task {
	t := &Task{loop: l, fn: fn}
	t.timer = time.AfterFunc(d, func() {
		// Errors are ignored: if the loop has stopped, the task is moot.
		_ = l.Post(t.run)
	})
	return t
}

// Task is a delayed task scheduled on a Loop.
type Task struct {
	loop     *Loop
	fn       func()
	timer    *time.Timer
	mu       sync.Mutex
	canceled bool
	ran      bool
}

// run executes the task body unless the task was canceled. It always runs
// on the loop goroutine, so the cancellation check and the body execute
// atomically with respect to any Cancel call made from the loop.
func (t *Task) run() {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.ran = true
	t.mu.Unlock()

	t.fn()
}

// Cancel prevents the task from running if it has not already done so.
// Safe to call multiple times and safe to call after the task has run.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.timer.Stop()
}

// Fired reports whether the task body has executed.
func (t *Task) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ran
}
