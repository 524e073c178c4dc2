package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.started", "session.ended")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// SessionStartedEvent is emitted once the remote service for a session has
// attached and the session is considered running. Preview-mode sessions do
// not emit this event.
type SessionStartedEvent struct {
	baseEvent
	Token     string // Session token
	Component string // Component descriptor of the bound service
	CanDoze   bool   // Whether the session runs in low-power mode
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(token, component string, canDoze bool) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent: newBaseEvent("session.started"),
		Token:     token,
		Component: component,
		CanDoze:   canDoze,
	}
}

// SessionEndedEvent is emitted when a session that previously announced a
// start is torn down. The Reason is the diagnostic stop reason; Duration is
// best-effort accounting and may be zero.
type SessionEndedEvent struct {
	baseEvent
	Token    string        // Session token
	Reason   string        // Diagnostic stop reason (e.g., "slow to connect")
	Duration time.Duration // How long the session was live
}

// NewSessionEndedEvent creates a SessionEndedEvent.
func NewSessionEndedEvent(token, reason string, duration time.Duration) SessionEndedEvent {
	return SessionEndedEvent{
		baseEvent: newBaseEvent("session.ended"),
		Token:     token,
		Reason:    reason,
		Duration:  duration,
	}
}
