// ABOUTME: Per-connection heartbeat supervisor detecting silently-dead peers.
// ABOUTME: Sends periodic probes and closes the connection after retry exhaustion.

package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zhilian/gateway/internal/registry"
	"github.com/zhilian/gateway/internal/wire"
)

// State is the supervisor's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateClosing
	StateFailed
)

// Supervisor drives the heartbeat protocol for one connection. It owns its
// own background goroutine; the connection's router offers every inbound
// frame to HandleMessage before any other dispatch so acknowledgement
// frames never leak into business logic.
type Supervisor struct {
	conn       *registry.Conn
	userID     string
	interval   time.Duration
	timeout    time.Duration
	maxRetries int

	mu         sync.Mutex
	state      State
	retryCount int
	started    bool

	ackCh  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewSupervisor creates a supervisor for one authenticated connection.
func NewSupervisor(conn *registry.Conn, userID string, interval, timeout time.Duration, maxRetries int, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		conn:       conn,
		userID:     userID,
		interval:   interval,
		timeout:    timeout,
		maxRetries: maxRetries,
		state:      StateIdle,
		ackCh:      make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger.With("component", "heartbeat", "user_id", userID),
	}
}

// State returns the supervisor's current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RetryCount returns the current consecutive-miss count.
func (s *Supervisor) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// HandleMessage offers a raw inbound frame to the supervisor. If the frame
// is a heartbeat acknowledgement it is consumed: the retry counter resets
// and true is returned so the router skips it. All other frames return
// false untouched.
func (s *Supervisor) HandleMessage(frame []byte) bool {
	if !wire.IsHeartbeatAck(frame) {
		return false
	}
	s.mu.Lock()
	s.retryCount = 0
	s.mu.Unlock()
	select {
	case s.ackCh <- struct{}{}:
	default:
	}
	s.logger.Debug("heartbeat ack received")
	return true
}

// Start launches the heartbeat loop in its own goroutine.
func (s *Supervisor) Start() {
	s.mu.Lock()
	s.state = StateRunning
	s.started = true
	s.mu.Unlock()
	go s.run()
}

// Stop cancels the loop and waits for it to terminate. Idempotent and
// callable from any goroutine; after Stop returns the supervisor will
// never write to the connection again.
func (s *Supervisor) Stop() {
	s.cancel()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Supervisor) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.setState(StateClosing)
			return
		case <-time.After(s.interval):
		}

		// discard any ack from a previous round before probing
		select {
		case <-s.ackCh:
		default:
		}

		probe := wire.NewHeartbeat(s.userID, float64(time.Now().UnixMilli())/1000.0)
		if err := s.conn.WriteFrame(probe); err != nil {
			s.logger.Warn("heartbeat send failed, stopping", "error", err)
			s.setState(StateFailed)
			return
		}
		s.logger.Debug("heartbeat sent")

		select {
		case <-s.ackCh:
			continue
		case <-s.ctx.Done():
			s.setState(StateClosing)
			return
		case <-time.After(s.timeout):
		}

		s.mu.Lock()
		s.retryCount++
		retries := s.retryCount
		s.mu.Unlock()
		s.logger.Warn("heartbeat timed out", "retry", retries, "max_retries", s.maxRetries)

		if retries >= s.maxRetries {
			s.setState(StateFailed)
			s.logger.Error("heartbeat retries exhausted, closing connection")
			// best effort: the peer is probably gone already
			_ = s.conn.WriteFrame(wire.NewErrorFrame(
				wire.NewError(wire.KindHeartbeat, wire.CodeHeartbeatMaxRetries, "heartbeat failed: max retries reached")))
			_ = s.conn.Close()
			return
		}

		// tell the client a probe went unanswered before retrying
		_ = s.conn.WriteFrame(wire.NewErrorFrame(
			wire.NewError(wire.KindHeartbeat, wire.CodeHeartbeatTimeout, "heartbeat timed out")))
	}
}
