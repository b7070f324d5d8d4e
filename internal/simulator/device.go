// Package simulator plays the instrument side of the protocol. It answers
// handshakes and streams synthetic interferograms, so the host stack can be
// exercised without hardware: over an in-memory pipe in tests, or over a
// serial port (for example one end of a virtual null-modem pair) from the
// command line.
package simulator

import (
	"errors"
	"sync"
	"time"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"github.com/muurk/ftirlink/internal/transport"
	"go.uber.org/zap"
)

// Config controls the simulated instrument
type Config struct {
	// Signal shapes the streamed interferograms
	Signal SignalConfig
	// Interval between CHECK_RESP frames while streaming
	Interval time.Duration
	// IgnoreHandshakes drops this many HANDSHAKE_REQ frames before answering
	IgnoreHandshakes int
	// TagCheckKind prefixes CHECK_RESP payloads with the running check kind
	TagCheckKind bool
	// Seed for the signal generator
	Seed uint64
}

// DefaultConfig streams one frame per second and answers every handshake
func DefaultConfig() Config {
	return Config{
		Signal:   DefaultSignalConfig(),
		Interval: time.Second,
		Seed:     1,
	}
}

// Device is a simulated instrument attached to a transport
type Device struct {
	t      transport.Transport
	cfg    Config
	parser *protocol.Parser
	gen    *Generator

	mu         sync.Mutex
	ignored    int
	handshakes int
	framesSent int
	stopStream chan struct{}
	streamDone chan struct{}
}

// New creates a device on t
func New(t transport.Transport, cfg Config) *Device {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Signal.SampleRate <= 0 {
		cfg.Signal = DefaultSignalConfig()
	}
	d := &Device{
		t:      t,
		cfg:    cfg,
		parser: protocol.NewParser(),
		gen:    NewGenerator(cfg.Signal, cfg.Seed),
	}
	t.OnDataReceived(d.onData)
	return d
}

// Start opens the transport
func (d *Device) Start() error {
	if err := d.t.Open(); err != nil {
		return err
	}
	logging.Info("Simulator started", zap.Int("points", d.gen.Points()), zap.Duration("interval", d.cfg.Interval))
	return nil
}

// Stop ends any stream and closes the transport
func (d *Device) Stop() error {
	d.stopStreaming()
	return d.t.Close()
}

// Streaming reports whether CHECK_RESP frames are being sent
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopStream != nil
}

// HandshakesAnswered returns how many HANDSHAKE_REQ frames were answered
func (d *Device) HandshakesAnswered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handshakes
}

// FramesSent returns the number of CHECK_RESP frames streamed
func (d *Device) FramesSent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framesSent
}

// onData runs on the transport reader goroutine only
func (d *Device) onData(data []byte) {
	d.parser.Feed(data)
	for msg := range d.parser.Parse() {
		d.handle(msg)
	}
}

func (d *Device) handle(msg protocol.RawMessage) {
	switch msg.Command {
	case protocol.CommandHandshakeReq:
		d.mu.Lock()
		if d.ignored < d.cfg.IgnoreHandshakes {
			d.ignored++
			n := d.ignored
			d.mu.Unlock()
			logging.Info("Simulator ignoring handshake request", zap.Int("ignored", n))
			return
		}
		d.handshakes++
		d.mu.Unlock()
		d.send(protocol.CommandHandshakeResp, nil)

	case protocol.CommandHandshakeResp:
		logging.Debug("Simulator received handshake response")

	case protocol.CommandStartCheck:
		kind := protocol.CheckStability
		if len(msg.Data) > 0 {
			kind = protocol.CheckKind(msg.Data[0])
		}
		d.startStreaming(kind)

	case protocol.CommandStartCollect:
		d.startStreaming(0)

	case protocol.CommandStopCheck, protocol.CommandStopCollect:
		d.stopStreaming()

	default:
		logging.Warn("Simulator ignoring command", zap.String("command", msg.Command.String()))
	}
}

func (d *Device) send(cmd protocol.Command, data []byte) {
	if err := d.t.Send(protocol.Pack(cmd, data)); err != nil {
		logging.Error("Simulator send failed",
			zap.String("command", cmd.String()),
			zap.Error(err),
		)
	}
}

// startStreaming restarts the stream for kind; 0 means an untagged
// collection stream.
func (d *Device) startStreaming(kind protocol.CheckKind) {
	d.stopStreaming()

	d.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	d.stopStream = stop
	d.streamDone = done
	d.mu.Unlock()

	logging.Info("Simulator streaming", zap.String("kind", kind.String()))
	go d.stream(kind, stop, done)
}

func (d *Device) stopStreaming() {
	d.mu.Lock()
	stop, done := d.stopStream, d.streamDone
	d.stopStream, d.streamDone = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	logging.Info("Simulator stream stopped")
}

func (d *Device) stream(kind protocol.CheckKind, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		d.sendSignal(kind)

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (d *Device) sendSignal(kind protocol.CheckKind) {
	sig, freq := d.gen.Next()
	payload := protocol.EncodeFloat32s(sig)
	if d.cfg.TagCheckKind && kind.Valid() {
		payload = append([]byte{byte(kind)}, payload...)
	}

	if err := d.t.Send(protocol.Pack(protocol.CommandCheckResp, payload)); err != nil {
		if !errors.Is(err, transport.ErrNotOpen) {
			logging.Error("Simulator failed to send signal", zap.Error(err))
		}
		return
	}

	d.mu.Lock()
	d.framesSent++
	d.mu.Unlock()

	logging.Debug("Simulator sent signal", zap.Int("points", len(sig)), zap.Int("frequency", freq))
}
