package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/ftirlink/internal/discovery"
	"github.com/muurk/ftirlink/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the bridge
	writeWait = 10 * time.Second

	// DefaultDialTimeout bounds the WebSocket handshake with a bridge
	DefaultDialTimeout = 5 * time.Second
)

// WebSocket is a Transport that reaches an instrument through a network
// bridge. Each binary message carries one raw chunk of the byte stream.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer

	// DiscoveryTimeout bounds the mDNS browse in ListAvailablePorts
	DiscoveryTimeout time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	callback DataCallback
	done     chan struct{}

	writeMu sync.Mutex
}

// NewWebSocket creates a transport for the bridge at url
// (e.g. "ws://192.168.1.20:8765/ws").
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: DefaultDialTimeout,
		},
		DiscoveryTimeout: 3 * time.Second,
	}
}

// URL returns the bridge address
func (w *WebSocket) URL() string {
	return w.url
}

// Open dials the bridge and starts the reader goroutine.
func (w *WebSocket) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return nil
	}

	conn, resp, err := w.dialer.Dial(w.url, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return newError("open", w.url, err)
	}

	w.conn = conn
	w.done = make(chan struct{})
	go w.readLoop(conn, w.done)

	logging.LogConnection(w.url, "websocket_opened")
	return nil
}

// Close sends a close frame and drops the connection. The reader goroutine
// exits once the pending read fails.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	conn := w.conn
	if conn == nil {
		w.mu.Unlock()
		return nil
	}
	w.conn = nil
	close(w.done)
	w.mu.Unlock()

	w.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()

	logging.LogConnection(w.url, "websocket_closed")
	if err := conn.Close(); err != nil {
		return newError("close", w.url, err)
	}
	return nil
}

// Send writes data as one binary message.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return newError("send", w.url, ErrNotOpen)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return newError("send", w.url, err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return newError("send", w.url, err)
	}

	logging.LogRawBytes("ws_tx", data)
	return nil
}

// OnDataReceived sets the chunk callback.
func (w *WebSocket) OnDataReceived(cb DataCallback) {
	w.mu.Lock()
	w.callback = cb
	w.mu.Unlock()
}

// IsOpen reports whether the connection is up.
func (w *WebSocket) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// ListAvailablePorts browses the local network for bridges and returns their
// WebSocket URLs.
func (w *WebSocket) ListAvailablePorts() ([]string, error) {
	scanner := discovery.NewScanner()
	scanner.Timeout = w.DiscoveryTimeout

	bridges, err := scanner.ScanForBridgesWithContext(context.Background())
	if err != nil {
		return nil, newError("list", "", err)
	}

	urls := make([]string, 0, len(bridges))
	for _, b := range bridges {
		urls = append(urls, b.URL())
	}
	return urls, nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, done <-chan struct{}) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Info("Bridge closed the connection", zap.String("url", w.url))
				} else {
					logging.Error("WebSocket read failed",
						zap.String("url", w.url),
						zap.Error(err),
					)
				}
				w.dropConn(conn)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			logging.Debug("Ignoring non-binary WebSocket message",
				zap.String("url", w.url),
				zap.Int("type", msgType),
			)
			continue
		}

		logging.LogRawBytes("ws_rx", data)

		w.mu.Lock()
		cb := w.callback
		w.mu.Unlock()
		if cb != nil {
			cb(data)
		}
	}
}

// dropConn marks the transport closed after the bridge went away.
func (w *WebSocket) dropConn(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == conn {
		w.conn = nil
		close(w.done)
		_ = conn.Close()
	}
}
