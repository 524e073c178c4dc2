// Package controller implements the session lifecycle state machine at the
// heart of reverie.
//
// A Controller supervises at most one live session of an ambient service at
// a time. Starting a session force-stops any predecessor, acquires the
// session's wake lock, asks the connector to bind the target, and arms a
// connect watchdog. Stopping is two-phase: a graceful stop asks the service
// to finish itself within a bounded window, after which a forced stop tears
// everything down - timers canceled, service detached, target unbound, lock
// released, listener notified exactly once.
//
// # Threading Model
//
// All session state is owned by a single [sched.Loop] goroutine. The public
// methods post onto the loop and return; connector callbacks and watchdog
// timers are likewise marshalled onto the loop before touching any state.
// No session field carries its own synchronization.
//
// # Supersession
//
// Notifications can arrive for a session that a newer StartSession call has
// already torn down. Every handler and timer callback rechecks the session
// generation before acting: a stale notification must not mutate controller
// state, but it still releases the stale session's own wake lock if that
// session somehow retained it.
//
// # Main Types
//
//   - [Controller]: The state machine. Construct with [New].
//   - [Policy]: The three watchdog durations (connect, finish, lock-release
//     fallback). Policy values, not invariants; see [DefaultPolicy].
//   - [Listener]: Notified exactly once when a session fully ends.
//   - [Snapshot]: Read-only view of controller state for diagnostics.
package controller
