// Package sched provides a single-goroutine cooperative run loop for
// serializing state mutations.
//
// The reverie controller owns mutable session state that must only ever be
// touched from one goroutine. Connector notifications and watchdog timers
// originate on arbitrary goroutines; they are marshalled onto the loop with
// [Loop.Post] before reading or writing any session field. The loop executes
// tasks strictly in the order they were posted (FIFO per source), so a
// disconnect posted after a connect is never observed out of order.
//
// # Main Types
//
//   - [Loop]: The run loop. One consumer goroutine drains an unbounded task
//     queue; producers never block.
//   - [Task]: A delayed, cancelable task created by [Loop.PostDelayed].
//     Canceling a task before its callback has started running guarantees
//     the callback never runs.
//
// # Basic Usage
//
//	loop := sched.New()
//	go loop.Run(ctx)
//
//	loop.Post(func() { /* runs on the loop goroutine */ })
//
//	task := loop.PostDelayed(func() { /* watchdog */ }, 5*time.Second)
//	task.Cancel() // suppresses the watchdog if it has not run yet
package sched
