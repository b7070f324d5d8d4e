package comm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/handshake"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"github.com/muurk/ftirlink/internal/transport"
	"go.uber.org/zap"
)

// Option configures a Manager
type Option func(*managerOptions)

type managerOptions struct {
	handshake []handshake.Option
	parser    []protocol.ParserOption
}

// WithHandshakeOptions passes options to the handshake
func WithHandshakeOptions(opts ...handshake.Option) Option {
	return func(o *managerOptions) {
		o.handshake = append(o.handshake, opts...)
	}
}

// WithParserOptions passes options to the frame parser
func WithParserOptions(opts ...protocol.ParserOption) Option {
	return func(o *managerOptions) {
		o.parser = append(o.parser, opts...)
	}
}

// Stats counts traffic through the manager
type Stats struct {
	Received      uint64
	Unhandled     uint64
	HandlerErrors uint64
	Sent          uint64
}

// Manager owns the connection to one instrument
type Manager struct {
	transport transport.Transport
	handshake *handshake.Handshake

	// mu guards parser, handlers and the dispatch loop
	mu       sync.Mutex
	parser   *protocol.Parser
	handlers map[protocol.Command]handler.Handler

	stateMu   sync.Mutex
	connected bool

	received      atomic.Uint64
	unhandled     atomic.Uint64
	handlerErrors atomic.Uint64
	sent          atomic.Uint64
}

// NewManager creates a manager on t. The handshake is registered for
// HANDSHAKE_REQ and HANDSHAKE_RESP.
func NewManager(t transport.Transport, opts ...Option) *Manager {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		transport: t,
		parser:    protocol.NewParser(o.parser...),
		handlers:  make(map[protocol.Command]handler.Handler),
	}
	m.handshake = handshake.New(m.Send, o.handshake...)
	m.handlers[protocol.CommandHandshakeReq] = m.handshake
	m.handlers[protocol.CommandHandshakeResp] = m.handshake

	t.OnDataReceived(m.handleData)
	return m
}

// Connect opens the transport if needed and starts the handshake. On
// failure the manager is disconnected and the transport error returned.
func (m *Manager) Connect() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if !m.transport.IsOpen() {
		m.resetParser()
		if err := m.transport.Open(); err != nil {
			logging.Error("Failed to connect", zap.Error(err))
			_ = m.disconnectLocked()
			return fmt.Errorf("connect: %w", err)
		}
	}
	m.connected = true
	logging.Info("Connected, starting handshake")

	if err := m.handshake.Start(); err != nil {
		logging.Error("Failed to connect", zap.Error(err))
		_ = m.disconnectLocked()
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Disconnect stops the handshake and closes the transport. Calling it
// again is harmless.
func (m *Manager) Disconnect() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.disconnectLocked()
}

func (m *Manager) disconnectLocked() error {
	m.connected = false
	m.handshake.Stop()

	if m.transport.IsOpen() {
		if err := m.transport.Close(); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
		logging.Info("Disconnected")
	}
	m.resetParser()
	return nil
}

// resetParser drops a partial frame left by the previous connection. The
// caller holds stateMu; mu is taken after it.
func (m *Manager) resetParser() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.parser.Buffered(); n > 0 {
		logging.Debug("Discarding partial frame", zap.Int("bytes", n))
	}
	m.parser.Reset()
}

// IsConnected reports whether Connect succeeded and Disconnect has not run
func (m *Manager) IsConnected() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.connected
}

// HandshakeState returns the handshake progress
func (m *Manager) HandshakeState() handshake.State {
	return m.handshake.State()
}

// ListPorts lists the addresses the transport can open
func (m *Manager) ListPorts() ([]string, error) {
	return m.transport.ListAvailablePorts()
}

// RegisterHandler routes cmd to h, replacing any previous handler
func (m *Manager) RegisterHandler(cmd protocol.Command, h handler.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[cmd] = h
}

// UnregisterHandler removes the handler for cmd
func (m *Manager) UnregisterHandler(cmd protocol.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, cmd)
}

// Stats returns a snapshot of the traffic counters
func (m *Manager) Stats() Stats {
	return Stats{
		Received:      m.received.Load(),
		Unhandled:     m.unhandled.Load(),
		HandlerErrors: m.handlerErrors.Load(),
		Sent:          m.sent.Load(),
	}
}

// handleData is the transport callback
func (m *Manager) handleData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parser.Feed(data)
	for msg := range m.parser.Parse() {
		m.dispatch(msg)
	}
}

// dispatch runs with mu held
func (m *Manager) dispatch(msg protocol.RawMessage) {
	m.received.Add(1)
	logging.Debug("Received message",
		zap.String("command", msg.Command.String()),
		zap.Int("payload_length", len(msg.Data)),
	)

	h, ok := m.handlers[msg.Command]
	if !ok {
		m.unhandled.Add(1)
		logging.Warn("No handler for message", zap.String("command", msg.Command.String()))
		return
	}

	if err := safeHandle(h, msg); err != nil {
		m.handlerErrors.Add(1)
		logging.Error("Handler failed",
			zap.String("command", msg.Command.String()),
			zap.Error(err),
		)
	}
}

func safeHandle(h handler.Handler, msg protocol.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(msg)
}

// Send frames data under cmd and writes it to the transport
func (m *Manager) Send(cmd protocol.Command, data []byte) error {
	if err := m.transport.Send(protocol.Pack(cmd, data)); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	m.sent.Add(1)
	logging.LogFrame("tx", cmd.String(), len(data))
	return nil
}
