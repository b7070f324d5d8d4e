package bridge

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/ftirlink/internal/comm"
	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/handshake"
	"github.com/muurk/ftirlink/internal/protocol"
	"github.com/muurk/ftirlink/internal/simulator"
	"github.com/muurk/ftirlink/internal/transport"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func startBridge(t *testing.T) (*Server, *simulator.Device) {
	t.Helper()

	local, instrument := transport.Pipe()

	cfg := simulator.DefaultConfig()
	cfg.Signal = simulator.SignalConfig{SampleRate: 32, Duration: 1, Amplitude: 1}
	cfg.Interval = 10 * time.Millisecond
	sim := simulator.New(instrument, cfg)
	if err := sim.Start(); err != nil {
		t.Fatal(err)
	}

	s := New(Config{Host: "127.0.0.1", Port: 0}, local)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		_ = sim.Stop()
	})
	return s, sim
}

func TestURL(t *testing.T) {
	s := New(Config{Host: "0.0.0.0", Port: 8765}, &nopTransport{})
	if got := s.URL(); got != "ws://127.0.0.1:8765/ws" {
		t.Errorf("URL() = %q", got)
	}

	s = New(Config{Host: "10.0.0.2", Port: 9000, Path: "/stream"}, &nopTransport{})
	if got := s.URL(); got != "ws://10.0.0.2:9000/stream" {
		t.Errorf("URL() = %q", got)
	}
}

func TestManagerThroughBridge(t *testing.T) {
	s, _ := startBridge(t)

	m := comm.NewManager(transport.NewWebSocket(s.URL()),
		comm.WithHandshakeOptions(handshake.WithResponseTimeout(2*time.Second)))

	results := make(chan []float64, 8)
	spectrum := handler.NewSpectrum()
	spectrum.AddCallback(func(samples []float64) error {
		select {
		case results <- samples:
		default:
		}
		return nil
	})
	m.RegisterHandler(protocol.CommandCheckResp, spectrum)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer m.Disconnect()

	waitFor(t, func() bool { return m.HandshakeState() == handshake.Complete })
	if !s.HasClient() {
		t.Error("HasClient() = false with a connected manager")
	}

	if err := m.StartCollect(); err != nil {
		t.Fatal(err)
	}
	select {
	case samples := <-results:
		if len(samples) != 32 {
			t.Errorf("got %d samples, want 32", len(samples))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no samples through the bridge")
	}
	if err := m.StopCollect(); err != nil {
		t.Fatal(err)
	}
}

func TestSecondClientRefused(t *testing.T) {
	s, _ := startBridge(t)

	first, _, err := websocket.DefaultDialer.Dial(s.URL(), nil)
	if err != nil {
		t.Fatalf("first dial failed: %v", err)
	}
	defer first.Close()
	waitFor(t, s.HasClient)

	_, resp, err := websocket.DefaultDialer.Dial(s.URL(), nil)
	if err == nil {
		t.Fatal("second dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("second dial response = %v, want 409", resp)
	}

	first.Close()
	waitFor(t, func() bool { return !s.HasClient() })

	third, _, err := websocket.DefaultDialer.Dial(s.URL(), nil)
	if err != nil {
		t.Fatalf("dial after first client left failed: %v", err)
	}
	third.Close()
}

func TestStartFailsWhenLocalTransportFails(t *testing.T) {
	s := New(Config{Host: "127.0.0.1"}, transport.NewSerial(transport.SerialConfig{Name: "/nonexistent/tty"}))
	err := s.Start()
	if err == nil {
		t.Fatal("Start() should fail")
	}
	if !strings.Contains(err.Error(), "local transport") {
		t.Errorf("Start() error = %v", err)
	}
}

// nopTransport satisfies transport.Transport for tests that never open it
type nopTransport struct{}

func (nopTransport) Open() error { return nil }
func (nopTransport) Close() error { return nil }
func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) OnDataReceived(transport.DataCallback) {}
func (nopTransport) IsOpen() bool { return false }
func (nopTransport) ListAvailablePorts() ([]string, error) { return nil, nil }
