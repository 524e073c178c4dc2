// Package event provides a pub-sub event bus for session lifecycle
// broadcasts in reverie.
//
// The controller announces session transitions through events rather than
// direct calls, so interested components (CLI status output, metrics
// accounting, external integrations) can observe sessions without the
// controller knowing about them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Events
//
//   - [SessionStartedEvent]: Emitted once a session's remote service has
//     attached. Never emitted for preview-mode sessions.
//   - [SessionEndedEvent]: Emitted when a session that announced a start is
//     torn down.
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously and protected against panics - a panicking handler will not
// prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe("session.ended", func(e event.Event) {
//	    ended := e.(event.SessionEndedEvent)
//	    log.Printf("session %s ended: %s", ended.Token, ended.Reason)
//	})
//
//	bus.Publish(event.NewSessionStartedEvent(token, "dusk.clock", false))
package event
