// Package connector defines the contract between the session controller
// and the machinery that binds ambient service processes, along with a
// process-backed implementation.
//
// The controller only ever sees the narrow interfaces defined here. Bind
// requests are synchronous; everything that happens afterwards (connection,
// disconnection, remote termination) is delivered asynchronously through
// observer callbacks that may fire on any goroutine. Callers are expected
// to marshal those callbacks onto their own control goroutine before
// touching shared state.
//
// Connection-state observation and termination notices are deliberately
// split into two interfaces. A single object may implement both, but each
// channel stays unambiguous about which role is being exercised.
package connector

// Target describes the ambient service a session should bind.
type Target struct {
	// Component identifies the service. For the process connector this is
	// the path to the service executable.
	Component string

	// Preview marks a try-out session: the service runs normally but no
	// session-started broadcast is announced.
	Preview bool

	// CanDoze allows the service to run in low-power mode.
	CanDoze bool

	// UserID is the user the service runs on behalf of.
	UserID int
}

// Service is a handle to a connected ambient service. It becomes available
// through ConnObserver.OnConnected and is invalid once the service
// disconnects or terminates.
type Service interface {
	// Attach hands the service its session token and mode, plus a callback
	// the service invokes once it has actually begun running. The callback
	// may fire on any goroutine.
	Attach(token string, canDoze bool, started func()) error

	// RequestGracefulFinish asks the service to wind down and exit on its
	// own. An error means the request never reached the service; callers
	// should fall back to immediate teardown rather than waiting.
	RequestGracefulFinish() error

	// Detach tells the service its session is over. Best-effort: failures
	// are expected when the service is already gone.
	Detach() error

	// RegisterTerminationNotice subscribes obs to the service's unexpected
	// death. Returns ErrServiceGone if the service has already terminated.
	RegisterTerminationNotice(obs TerminationObserver) error

	// UnregisterTerminationNotice removes a subscription. Unregistering
	// after the service has terminated, or an observer that was never
	// registered, is a no-op.
	UnregisterTerminationNotice(obs TerminationObserver)
}

// ConnObserver receives connection-state notifications for one bind
// request. Callbacks may fire on any goroutine.
type ConnObserver interface {
	// OnConnected delivers the service handle once the bound process is up.
	OnConnected(component string, svc Service)

	// OnDisconnected reports that the connection was lost without the
	// service having died abnormally.
	OnDisconnected(component string)
}

// TerminationObserver receives the termination notice for a service that
// died unexpectedly. Fired at most once, on an arbitrary goroutine.
type TerminationObserver interface {
	OnRemoteTerminated()
}

// Connector binds and unbinds ambient service targets.
type Connector interface {
	// Bind starts the binding of target, delivering subsequent
	// notifications to obs. A nil error means the bind request was
	// accepted, not that the service is connected yet. Rejections surface
	// as ErrBindRejected; permission problems as ErrBindDenied.
	Bind(target Target, obs ConnObserver) error

	// Unbind tears down the binding identified by obs. Safe to call for
	// an observer that was never bound or is already unbound. No further
	// notifications are delivered after Unbind returns.
	Unbind(obs ConnObserver)
}
