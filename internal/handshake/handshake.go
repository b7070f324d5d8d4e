// Package handshake implements the connection handshake with the
// instrument: send HANDSHAKE_REQ, wait for HANDSHAKE_RESP, and retry on
// silence until the peer answers or the handshake is stopped.
package handshake

import (
	"sync"
	"time"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"go.uber.org/zap"
)

const (
	// DefaultResponseTimeout is how long to wait for HANDSHAKE_RESP
	DefaultResponseTimeout = 3 * time.Second

	// DefaultRetryDelay is the pause between a timeout and the next attempt
	DefaultRetryDelay = 5 * time.Second
)

// State is the handshake progress
type State int

const (
	// Idle means no handshake is in progress
	Idle State = iota
	// AwaitingResponse means a request was sent and the response timer runs
	AwaitingResponse
	// Complete means the peer answered
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// SendFunc transmits one frame to the peer
type SendFunc func(cmd protocol.Command, data []byte) error

// Option configures a Handshake
type Option func(*Handshake)

// WithResponseTimeout sets how long to wait for a response per attempt
func WithResponseTimeout(d time.Duration) Option {
	return func(h *Handshake) {
		if d > 0 {
			h.responseTimeout = d
		}
	}
}

// WithRetryDelay sets the pause before a retry
func WithRetryDelay(d time.Duration) Option {
	return func(h *Handshake) {
		if d > 0 {
			h.retryDelay = d
		}
	}
}

// WithOnComplete registers fn to run once the handshake completes. It runs
// without the handshake lock held.
func WithOnComplete(fn func()) Option {
	return func(h *Handshake) {
		h.onComplete = fn
	}
}

// Handshake drives the request/response exchange. All methods are safe for
// concurrent use. There is never more than one timer outstanding.
type Handshake struct {
	send            SendFunc
	responseTimeout time.Duration
	retryDelay      time.Duration
	onComplete      func()

	mu         sync.Mutex
	state      State
	retryCount int
	timer      *time.Timer
	// generation is bumped whenever the pending timer is replaced or
	// cancelled; a firing callback with a stale generation does nothing.
	generation uint64
}

// New creates an idle handshake that sends through send
func New(send SendFunc, opts ...Option) *Handshake {
	h := &Handshake{
		send:            send,
		responseTimeout: DefaultResponseTimeout,
		retryDelay:      DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins a handshake. It does nothing once the handshake is complete.
// The returned error is the result of the first send; retries continue
// either way.
func (h *Handshake) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Complete {
		return nil
	}
	h.retryCount = 0
	return h.startAttemptLocked()
}

// startAttemptLocked sends a request and arms the response timer.
func (h *Handshake) startAttemptLocked() error {
	h.cancelTimerLocked()
	h.state = AwaitingResponse

	gen := h.generation
	h.timer = time.AfterFunc(h.responseTimeout, func() { h.onTimeout(gen) })

	logging.Info("Sending handshake request", zap.Int("retry", h.retryCount))
	if err := h.send(protocol.CommandHandshakeReq, nil); err != nil {
		logging.Error("Failed to send handshake request",
			zap.Int("retry", h.retryCount),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// onTimeout fires when no response arrived in time.
func (h *Handshake) onTimeout(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.generation || h.state != AwaitingResponse {
		return
	}

	h.retryCount++
	logging.Warn("Handshake timed out, retrying",
		zap.Int("retry", h.retryCount),
		zap.Duration("retry_delay", h.retryDelay),
	)

	h.cancelTimerLocked()
	gen = h.generation
	h.timer = time.AfterFunc(h.retryDelay, func() { h.onRetry(gen) })
}

// onRetry starts the next attempt after the retry delay.
func (h *Handshake) onRetry(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if gen != h.generation || h.state != AwaitingResponse {
		return
	}
	// send failures are logged; the response timer is already armed again
	_ = h.startAttemptLocked()
}

// Handle processes a handshake message from the peer. HANDSHAKE_RESP
// completes a pending handshake; HANDSHAKE_REQ is answered with
// HANDSHAKE_RESP whatever the local state.
func (h *Handshake) Handle(msg protocol.RawMessage) error {
	switch msg.Command {
	case protocol.CommandHandshakeResp:
		h.mu.Lock()
		if h.state != AwaitingResponse {
			h.mu.Unlock()
			logging.Debug("Ignoring unsolicited handshake response", zap.String("state", h.State().String()))
			return nil
		}
		h.cancelTimerLocked()
		h.state = Complete
		retries := h.retryCount
		onComplete := h.onComplete
		h.mu.Unlock()

		logging.Info("Handshake complete", zap.Int("retries", retries))
		if onComplete != nil {
			onComplete()
		}
		return nil

	case protocol.CommandHandshakeReq:
		logging.Debug("Answering handshake request from peer")
		return h.send(protocol.CommandHandshakeResp, nil)

	default:
		return nil
	}
}

// Stop cancels any pending timer and returns to Idle. When Stop returns no
// timer callback will act. Stop is idempotent.
func (h *Handshake) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelTimerLocked()
	h.state = Idle
}

func (h *Handshake) cancelTimerLocked() {
	h.generation++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// State returns the current state
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Complete reports whether the peer has answered
func (h *Handshake) Complete() bool {
	return h.State() == Complete
}

// RetryCount returns the number of timeouts in the current handshake
func (h *Handshake) RetryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retryCount
}
