package controller

import (
	"time"

	"github.com/google/uuid"

	"github.com/reverielabs/reverie/internal/connector"
	"github.com/reverielabs/reverie/internal/errors"
	"github.com/reverielabs/reverie/internal/event"
	"github.com/reverielabs/reverie/internal/logging"
	"github.com/reverielabs/reverie/internal/sched"
	"github.com/reverielabs/reverie/internal/wakelock"
)

// Listener is notified when a session has fully ended: all teardown side
// effects are complete by the time OnSessionEnded fires. Called exactly
// once per session that was ever started, on the control goroutine.
type Listener interface {
	OnSessionEnded(token string)
}

// Policy holds the controller's watchdog durations. These are tunable
// policy values, not invariants.
type Policy struct {
	// ConnectTimeout is how long a bound service may take to connect
	// before the session is stopped with reason "slow to connect".
	ConnectTimeout time.Duration

	// FinishTimeout is how long a gracefully-stopped service may take to
	// finish itself before the session is stopped with "slow to finish".
	FinishTimeout time.Duration

	// LockReleaseFallback bounds the worst-case wake lock hold time when
	// the service never confirms it has started. The primary release path
	// is the start-confirmed callback; this fallback exists only as a
	// backstop.
	LockReleaseFallback time.Duration
}

// DefaultPolicy returns the stock watchdog durations.
func DefaultPolicy() Policy {
	return Policy{
		ConnectTimeout:      5 * time.Second,
		FinishTimeout:       5 * time.Second,
		LockReleaseFallback: 10 * time.Second,
	}
}

// Controller supervises at most one live ambient service session.
// Construct with New; all methods are safe for concurrent use.
type Controller struct {
	loop     *sched.Loop
	conn     connector.Connector
	locks    wakelock.Factory
	bus      *event.Bus
	listener Listener
	logger   *logging.Logger

	// Everything below is owned by the loop goroutine.
	policy          Policy
	gen             uint64
	current         *session
	savedStopReason string
}

// session is the record for one supervised session. Owned exclusively by
// the controller's loop goroutine while alive; discarded on the terminal
// transition.
type session struct {
	gen       uint64
	token     string
	target    connector.Target
	startedAt time.Time

	lock               wakelock.Lock
	bound              bool
	connected          bool
	service            connector.Service
	sentStartBroadcast bool
	wakingGently       bool

	connectTask *sched.Task
	finishTask  *sched.Task
	lockTask    *sched.Task

	obs *sessionObserver
}

// sessionObserver marshals connector notifications for one session onto
// the control loop. Its callbacks may fire on any goroutine.
type sessionObserver struct {
	c *Controller
	s *session
}

func (o *sessionObserver) OnConnected(component string, svc connector.Service) {
	_ = o.c.loop.Post(func() { o.c.handleConnected(o.s, svc) })
}

func (o *sessionObserver) OnDisconnected(component string) {
	_ = o.c.loop.Post(func() { o.c.handleDisconnected(o.s) })
}

func (o *sessionObserver) OnRemoteTerminated() {
	_ = o.c.loop.Post(func() { o.c.handleTerminated(o.s) })
}

// New creates a Controller. The loop must already be running (or about to
// run) for posted work to execute. The listener may be nil; a nil logger
// logs nowhere.
func New(loop *sched.Loop, conn connector.Connector, locks wakelock.Factory,
	bus *event.Bus, listener Listener, logger *logging.Logger, policy Policy) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	return &Controller{
		loop:     loop,
		conn:     conn,
		locks:    locks,
		bus:      bus,
		listener: listener,
		logger:   logger,
		policy:   policy,
	}
}

// StartSession begins a new session for target, force-stopping any live
// session first. It returns the new session's token immediately; binding
// and connection proceed asynchronously on the control loop.
func (c *Controller) StartSession(target connector.Target) (string, error) {
	token := uuid.NewString()
	if err := c.loop.Post(func() { c.startSession(token, target) }); err != nil {
		return "", err
	}
	return token, nil
}

// StopSession stops the live session, if any. With immediate false the
// service is first asked to finish itself; a forced stop follows if it has
// not done so within the finish timeout. A graceful stop while one is
// already in progress is a no-op, as is any stop with no live session.
func (c *Controller) StopSession(immediate bool, reason string) error {
	return c.loop.Post(func() { c.stopSession(immediate, reason) })
}

// UpdatePolicy replaces the watchdog durations. Timers already armed keep
// their original deadlines; new values apply from the next session event.
func (c *Controller) UpdatePolicy(p Policy) error {
	return c.loop.Post(func() { c.policy = p })
}

// startSession runs on the loop goroutine.
func (c *Controller) startSession(token string, target connector.Target) {
	c.stopSession(true, "starting new session")

	logger := c.logger.WithSession(token).WithComponent(target.Component)
	logger.Info("starting session",
		"preview", target.Preview,
		"can_doze", target.CanDoze,
		"user", target.UserID)

	c.gen++
	s := &session{
		gen:       c.gen,
		token:     token,
		target:    target,
		startedAt: time.Now(),
		lock:      c.locks.New(token),
	}
	s.obs = &sessionObserver{c: c, s: s}
	c.current = s

	// Hold the lock while waiting for the service to connect and confirm
	// it is running. Released on confirmation, on teardown, or by the
	// fallback timer, whichever comes first.
	if err := s.lock.Acquire(); err != nil {
		logger.Warn("failed to acquire wake lock", "error", err.Error())
		s.lock = nil
	} else {
		s.lockTask = c.loop.PostDelayed(func() { c.releaseLock(s) }, c.policy.LockReleaseFallback)
	}

	if err := c.conn.Bind(target, s.obs); err != nil {
		logger.Error("unable to bind service", "error", err.Error())
		if errors.Is(err, errors.ErrBindDenied) {
			c.stopSession(true, "unable to bind: security")
		} else {
			c.stopSession(true, "bind failed")
		}
		return
	}
	s.bound = true

	s.connectTask = c.loop.PostDelayed(func() {
		if c.isCurrent(s) && s.bound && !s.connected {
			logger.Warn("bound service did not connect in the time allotted")
			c.stopSession(true, "slow to connect")
		}
	}, c.policy.ConnectTimeout)
}

// stopSession runs on the loop goroutine. With immediate false it starts
// the graceful phase and returns with the session still live; the terminal
// branch below destroys the session.
func (c *Controller) stopSession(immediate bool, reason string) {
	s := c.current
	if s == nil {
		return
	}

	if !immediate {
		if s.wakingGently {
			return // already waking gently
		}

		if s.service != nil {
			s.wakingGently = true
			c.savedStopReason = reason
			if err := s.service.RequestGracefulFinish(); err == nil {
				s.finishTask = c.loop.PostDelayed(func() {
					if !c.isCurrent(s) {
						return
					}
					c.logger.WithSession(s.token).Warn("service did not finish itself in the time allotted")
					c.stopSession(true, "slow to finish")
				}, c.policy.FinishTimeout)
				return
			}
			// The request never reached the service; finish immediately
			// instead of waiting out a timeout that cannot be answered.
		}
	}

	old := s
	c.current = nil
	saved := c.savedStopReason
	c.savedStopReason = ""

	duration := time.Since(old.startedAt)
	logger := c.logger.WithSession(old.token).WithComponent(old.target.Component)
	logger.Info("stopping session",
		"reason", reason,
		"saved_reason", saved,
		"preview", old.target.Preview,
		"can_doze", old.target.CanDoze,
		"user", old.target.UserID,
		"duration_ms", duration.Milliseconds())

	if old.connectTask != nil {
		old.connectTask.Cancel()
		old.connectTask = nil
	}
	if old.finishTask != nil {
		old.finishTask.Cancel()
		old.finishTask = nil
	}

	if old.sentStartBroadcast {
		c.bus.Publish(event.NewSessionEndedEvent(old.token, reason, duration))
	}

	if old.service != nil {
		if err := old.service.Detach(); err != nil {
			// The session is on its way out regardless.
			logger.Debug("detach failed", "error", err.Error())
		}
		old.service.UnregisterTerminationNotice(old.obs)
		old.service = nil
	}

	if old.bound {
		c.conn.Unbind(old.obs)
		old.bound = false
	}

	c.releaseLock(old)

	if c.listener != nil {
		token := old.token
		_ = c.loop.Post(func() { c.listener.OnSessionEnded(token) })
	}
}

// handleConnected runs on the loop goroutine when the connector reports a
// connection for s.
func (c *Controller) handleConnected(s *session, svc connector.Service) {
	s.connected = true
	if c.isCurrent(s) && s.service == nil {
		c.attach(s, svc)
		// Wake lock is released once the service confirms it started.
	} else {
		// A superseded session's teardown already ran; the only thing a
		// late connect may touch is that session's own lock.
		c.releaseLock(s)
	}
}

// attach links the termination notice and hands the service its session.
func (c *Controller) attach(s *session, svc connector.Service) {
	logger := c.logger.WithSession(s.token).WithComponent(s.target.Component)

	if err := svc.RegisterTerminationNotice(s.obs); err != nil {
		logFailure(logger, "service died before attach", err)
		c.stopSession(true, "attach failed")
		return
	}

	started := func() {
		_ = c.loop.Post(func() { c.handleStartConfirmed(s) })
	}
	if err := svc.Attach(s.token, s.target.CanDoze, started); err != nil {
		logFailure(logger, "attach to service failed", err)
		c.stopSession(true, "attach failed")
		return
	}
	s.service = svc

	if !s.target.Preview {
		c.bus.Publish(event.NewSessionStartedEvent(s.token, s.target.Component, s.target.CanDoze))
		s.sentStartBroadcast = true
	}

	logger.Info("session connected")
}

// handleDisconnected runs on the loop goroutine.
func (c *Controller) handleDisconnected(s *session) {
	s.service = nil
	if c.isCurrent(s) {
		c.stopSession(true, "service disconnected")
	}
}

// handleTerminated runs on the loop goroutine.
func (c *Controller) handleTerminated(s *session) {
	s.service = nil
	if c.isCurrent(s) {
		c.stopSession(true, "binder died")
	}
}

// handleStartConfirmed runs on the loop goroutine once the service reports
// it has actually begun running. This is the primary lock release path.
func (c *Controller) handleStartConfirmed(s *session) {
	c.releaseLock(s)
}

// releaseLock frees a session's wake lock and cancels the fallback timer.
// Effective only once per session; later calls are no-ops.
func (c *Controller) releaseLock(s *session) {
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			c.logger.WithSession(s.token).Warn("wake lock release failed", "error", err.Error())
		}
		s.lock = nil
	}
	if s.lockTask != nil {
		s.lockTask.Cancel()
		s.lockTask = nil
	}
}

// logFailure records a failure at the level its severity calls for. Losing
// a service that is already gone is expected churn, not an error.
func logFailure(logger *logging.Logger, msg string, err error) {
	if errors.SeverityOf(err) < errors.SeverityError {
		logger.Warn(msg, "error", err.Error())
	} else {
		logger.Error(msg, "error", err.Error())
	}
}

// CurrentToken returns the live session's token, or ErrNoSession when the
// controller is idle. Blocks on the control loop like Snapshot.
func (c *Controller) CurrentToken() (string, error) {
	var token string
	if err := c.loop.Call(func() {
		if c.current != nil {
			token = c.current.token
		}
	}); err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.ErrNoSession
	}
	return token, nil
}

// isCurrent reports whether s is still the controller's live session.
// Timer callbacks and notification handlers recheck this before mutating
// anything: a stale generation means the session was superseded and its
// teardown has already run.
func (c *Controller) isCurrent(s *session) bool {
	return c.current != nil && c.current.gen == s.gen
}
