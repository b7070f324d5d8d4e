package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/ftirlink/internal/comm"
	"github.com/muurk/ftirlink/internal/config"
	"github.com/muurk/ftirlink/internal/discovery"
	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/handshake"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/processing"
	"github.com/muurk/ftirlink/internal/protocol"
	"github.com/muurk/ftirlink/internal/publish"
	"github.com/muurk/ftirlink/internal/transport"
	"github.com/muurk/ftirlink/internal/ui"
	"go.uber.org/zap"
)

var errNoInstrument = errors.New("no instrument found")

// link is an open manager plus what it is connected to
type link struct {
	source string
	kind   string
	mgr    *comm.Manager
	ready  chan struct{}
}

// selectTransport picks the bridge or serial port from flags and config.
func selectTransport(ctx context.Context) (transport.Transport, string, string, error) {
	if bridgeURL != "" {
		url := bridgeURL
		if url == "auto" {
			scanCtx, cancel := context.WithTimeout(ctx, discovery.DefaultScanTimeout)
			defer cancel()
			bridges, err := discovery.NewScanner().ScanForBridgesWithContext(scanCtx)
			if err != nil {
				return nil, "", "", fmt.Errorf("bridge discovery failed: %w", err)
			}
			if len(bridges) == 0 {
				return nil, "", "", fmt.Errorf("%w: no bridge answered on the local network", errNoInstrument)
			}
			url = bridges[0].URL()
			logging.Info("Using discovered bridge", zap.String("bridge", bridges[0].String()))
		}
		return transport.NewWebSocket(url), url, config.TransportWebSocket, nil
	}

	name := portName
	if name == "" {
		ports, err := transport.ListSerialPorts()
		if err != nil {
			return nil, "", "", err
		}
		if len(ports) == 0 {
			return nil, "", "", fmt.Errorf("%w: no serial ports detected, use --port or --bridge", errNoInstrument)
		}
		name = ports[0]
	}
	return transport.NewSerial(transport.SerialConfig{Name: name, Baud: baudRate}), name, config.TransportSerial, nil
}

// connect opens the transport and starts the handshake.
func connect(ctx context.Context) (*link, error) {
	t, source, kind, err := selectTransport(ctx)
	if err != nil {
		return nil, err
	}

	ready := make(chan struct{})
	var once sync.Once
	prefs := registry.Preferences
	mgr := comm.NewManager(t, comm.WithHandshakeOptions(
		handshake.WithResponseTimeout(prefs.HandshakeTimeout),
		handshake.WithRetryDelay(prefs.RetryDelay),
		handshake.WithOnComplete(func() { once.Do(func() { close(ready) }) }),
	))
	if err := mgr.Connect(); err != nil {
		return nil, err
	}

	logging.LogConnection(source, "connected")
	return &link{source: source, kind: kind, mgr: mgr, ready: ready}, nil
}

// awaitHandshake blocks until the handshake completes, ctx ends or wait
// elapses. A successful handshake is recorded in the registry.
func (l *link) awaitHandshake(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-l.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("handshake with %s not complete after %s (state %s)", l.source, wait, l.mgr.HandshakeState())
	}

	baud := 0
	if l.kind == config.TransportSerial {
		baud = baudRate
	}
	registry.MarkSeen(l.source, l.kind, baud)
	if err := saveRegistry(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
	return nil
}

func (l *link) close() {
	if err := l.mgr.Disconnect(); err != nil {
		logging.Warn("Disconnect failed", zap.String("source", l.source), zap.Error(err))
	}
	logging.LogConnection(l.source, "disconnected")
}

func (l *link) status() ui.Status {
	s := l.mgr.Stats()
	return ui.Status{
		Connected:     l.mgr.IsConnected(),
		Handshake:     l.mgr.HandshakeState().String(),
		Received:      s.Received,
		Sent:          s.Sent,
		Unhandled:     s.Unhandled,
		HandlerErrors: s.HandlerErrors,
	}
}

// newChain builds the processing chain from config preferences.
func newChain() (*processing.Chain, error) {
	cfg, err := registry.Preferences.Processing.StandardConfig()
	if err != nil {
		return nil, err
	}
	return processing.NewStandardChain(cfg)
}

// checkHandler returns a CHECK_RESP handler that delivers processed
// measurements of the given kind to fn. Stability accepts untagged payloads;
// the other kinds require the leading kind byte.
func checkHandler(kind protocol.CheckKind, chain *processing.Chain, fn handler.MeasurementFunc) (handler.Handler, error) {
	if kind == protocol.CheckStability {
		h := handler.NewStability(chain)
		h.AddCallback(fn)
		return h, nil
	}

	h := handler.NewCheck()
	_, err := h.AddCallback(kind, func(samples []float64) error {
		return fn(handler.Measurement{
			Interferogram: samples,
			Spectrum:      chain.Process(samples),
			ReceivedAt:    time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// openPublisher connects to NATS when a URL is configured. A nil publisher
// means publishing is off.
func openPublisher(url, source string) (*publish.NATS, error) {
	nc := registry.Preferences.NATS
	if url == "" {
		url = nc.URL
	}
	if url == "" {
		return nil, nil
	}
	return publish.Connect(url, nc.SubjectPrefix, source)
}

func closePublisher(p *publish.NATS) {
	if p == nil {
		return
	}
	if err := p.Close(); err != nil {
		logging.Warn("NATS close failed", zap.Error(err))
	}
}

// measurementMsg converts a measurement for display.
func measurementMsg(m handler.Measurement) ui.MeasurementMsg {
	evt := publish.NewSpectrumEvent("", m.ReceivedAt, m.Spectrum)
	return ui.MeasurementMsg{
		Samples:       len(m.Interferogram),
		Spectrum:      m.Spectrum,
		PeakBin:       evt.PeakBin,
		PeakMagnitude: evt.PeakMagnitude,
		At:            m.ReceivedAt,
	}
}
