package connector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/reverielabs/reverie/internal/errors"
	"github.com/reverielabs/reverie/internal/logging"
)

// ProcessConnector binds targets by launching their component as a child
// process. Requests are written to the child's stdin and notices read from
// its stdout, one JSON object per line.
//
// All observer callbacks fire on connector-owned goroutines, never on the
// goroutine that called Bind.
type ProcessConnector struct {
	logger *logging.Logger

	mu       sync.Mutex
	bindings map[ConnObserver]*binding
	closed   bool
}

// NewProcessConnector creates a ProcessConnector. The logger may be nil.
func NewProcessConnector(logger *logging.Logger) *ProcessConnector {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ProcessConnector{
		logger:   logger,
		bindings: make(map[ConnObserver]*binding),
	}
}

// Bind launches target.Component and starts delivering notifications to
// obs. The component must name an existing executable file; anything else
// is a rejection, and a file this process may not execute is a permission
// denial.
func (pc *ProcessConnector) Bind(target Target, obs ConnObserver) error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return errors.ErrConnectorClosed
	}
	if _, exists := pc.bindings[obs]; exists {
		pc.mu.Unlock()
		return fmt.Errorf("%w: observer already bound", errors.ErrBindRejected)
	}
	pc.mu.Unlock()

	info, err := os.Stat(target.Component)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBindRejected, err)
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return fmt.Errorf("%w: %s is not executable", errors.ErrBindDenied, target.Component)
	}

	cmd := exec.Command(target.Component)
	cmd.Env = append(os.Environ(),
		"REVERIE_USER="+strconv.Itoa(target.UserID),
		"REVERIE_PREVIEW="+strconv.FormatBool(target.Preview),
		"REVERIE_CAN_DOZE="+strconv.FormatBool(target.CanDoze),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBindRejected, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBindRejected, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %v", errors.ErrBindDenied, err)
		}
		return fmt.Errorf("%w: %v", errors.ErrBindRejected, err)
	}

	b := &binding{
		pc:       pc,
		target:   target,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		obs:      obs,
		enc:      json.NewEncoder(stdin),
		readDone: make(chan struct{}),
	}
	b.svc = &processService{b: b}

	pc.mu.Lock()
	pc.bindings[obs] = b
	pc.mu.Unlock()

	pc.logger.Debug("service process started",
		"component", target.Component,
		"pid", cmd.Process.Pid)

	go b.notifyConnected()
	go b.readLoop()
	go b.waitLoop()
	return nil
}

// Unbind tears down the binding for obs, killing the service process if it
// is still running. No notifications are delivered for a binding after it
// has been unbound. Must not be called from inside an observer callback.
func (pc *ProcessConnector) Unbind(obs ConnObserver) {
	pc.mu.Lock()
	b, ok := pc.bindings[obs]
	if ok {
		delete(pc.bindings, obs)
	}
	pc.mu.Unlock()
	if !ok {
		return
	}

	b.silence()

	_ = b.stdin.Close()
	if b.cmd.Process != nil {
		_ = b.cmd.Process.Kill()
	}

	pc.logger.Debug("service process unbound", "component", b.target.Component)
}

// Close unbinds everything and rejects future binds.
func (pc *ProcessConnector) Close() {
	pc.mu.Lock()
	pc.closed = true
	bindings := make([]*binding, 0, len(pc.bindings))
	for _, b := range pc.bindings {
		bindings = append(bindings, b)
	}
	pc.bindings = make(map[ConnObserver]*binding)
	pc.mu.Unlock()

	for _, b := range bindings {
		b.silence()
		_ = b.stdin.Close()
		if b.cmd.Process != nil {
			_ = b.cmd.Process.Kill()
		}
	}
}

// binding tracks one bound service process.
type binding struct {
	pc     *ProcessConnector
	target Target
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	obs    ConnObserver
	svc    *processService

	encMu sync.Mutex
	enc   *json.Encoder

	// connMu serializes the connected notification against Unbind.
	connMu sync.Mutex

	readDone chan struct{}

	mu      sync.Mutex
	unbound bool
	exited  bool
}

// silence marks the binding unbound and waits out any in-flight connected
// delivery, so no notification lands after the unbind completes.
func (b *binding) silence() {
	b.mu.Lock()
	b.unbound = true
	b.mu.Unlock()

	// Taking connMu blocks until a delivery in progress has returned.
	b.connMu.Lock()
	defer b.connMu.Unlock()
}

// send writes one request line to the service's stdin.
func (b *binding) send(req request) error {
	b.mu.Lock()
	if b.unbound || b.exited {
		b.mu.Unlock()
		return errors.ErrServiceGone
	}
	b.mu.Unlock()

	b.encMu.Lock()
	defer b.encMu.Unlock()
	if err := b.enc.Encode(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrServiceGone, err)
	}
	return nil
}

// notifyConnected delivers OnConnected from a connector-owned goroutine.
// Delivery holds connMu so Unbind can wait it out: a binding unbound
// before this runs stays silent, and one unbound during delivery blocks
// Unbind until the callback returns.
func (b *binding) notifyConnected() {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	b.mu.Lock()
	unbound := b.unbound
	b.mu.Unlock()
	if unbound {
		return
	}
	b.obs.OnConnected(b.target.Component, b.svc)
}

// readLoop consumes notice lines from the service until its stdout closes.
func (b *binding) readLoop() {
	defer close(b.readDone)

	scanner := bufio.NewScanner(b.stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var n notice
		if err := json.Unmarshal(line, &n); err != nil {
			b.pc.logger.Warn("discarding malformed notice from service",
				"component", b.target.Component,
				"error", err.Error())
			continue
		}

		switch n.Event {
		case noticeStarted:
			b.svc.fireStarted()
		default:
			b.pc.logger.Debug("unknown notice from service",
				"component", b.target.Component,
				"event", n.Event)
		}
	}
}

// waitLoop reaps the process and delivers the terminal notification:
// a clean exit is a disconnect, anything else a termination notice.
func (b *binding) waitLoop() {
	<-b.readDone
	err := b.cmd.Wait()

	b.mu.Lock()
	unbound := b.unbound
	b.exited = true
	b.mu.Unlock()

	b.pc.mu.Lock()
	if b.pc.bindings[b.obs] == b {
		delete(b.pc.bindings, b.obs)
	}
	b.pc.mu.Unlock()

	if unbound {
		return
	}

	if err == nil {
		b.pc.logger.Info("service process exited cleanly",
			"component", b.target.Component)
		b.obs.OnDisconnected(b.target.Component)
		return
	}

	b.pc.logger.Warn("service process died",
		"component", b.target.Component,
		"error", err.Error())
	b.svc.notifyTerminated()
}

// processService implements Service over a binding.
type processService struct {
	b *binding

	mu         sync.Mutex
	started    func()
	termObs    []TerminationObserver
	terminated bool
}

// Attach sends the attach request carrying the session token and mode.
func (s *processService) Attach(token string, canDoze bool, started func()) error {
	s.mu.Lock()
	s.started = started
	s.mu.Unlock()

	return s.b.send(request{Op: opAttach, Token: token, CanDoze: canDoze})
}

// RequestGracefulFinish asks the service to wind itself down.
func (s *processService) RequestGracefulFinish() error {
	return s.b.send(request{Op: opFinish})
}

// Detach tells the service its session is over.
func (s *processService) Detach() error {
	return s.b.send(request{Op: opDetach})
}

// RegisterTerminationNotice subscribes obs to the service's death.
func (s *processService) RegisterTerminationNotice(obs TerminationObserver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return errors.ErrServiceGone
	}
	s.termObs = append(s.termObs, obs)
	return nil
}

// UnregisterTerminationNotice removes obs. A no-op for unknown observers
// and after the service has already terminated.
func (s *processService) UnregisterTerminationNotice(obs TerminationObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.termObs {
		if o == obs {
			s.termObs = append(s.termObs[:i], s.termObs[i+1:]...)
			return
		}
	}
}

// fireStarted invokes the start-confirmed callback, if one was attached.
func (s *processService) fireStarted() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started != nil {
		started()
	}
}

// notifyTerminated fires every registered termination observer, at most once.
func (s *processService) notifyTerminated() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	obs := make([]TerminationObserver, len(s.termObs))
	copy(obs, s.termObs)
	s.termObs = nil
	s.mu.Unlock()

	for _, o := range obs {
		o.OnRemoteTerminated()
	}
}
