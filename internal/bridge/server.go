package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/ftirlink/internal/discovery"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/transport"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the client
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client
	pongWait = 60 * time.Second

	// Send pings to the client with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size accepted from the client
	maxMessageSize = 1 << 20
)

// Config holds the bridge configuration
type Config struct {
	Host string
	Port int
	Path string

	// Advertise registers the bridge over mDNS under Instance
	Advertise bool
	Instance  string
}

// Server forwards bytes between one WebSocket client and a local transport
type Server struct {
	config   Config
	local    transport.Transport
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	ad         *discovery.Advertisement
	wg         sync.WaitGroup

	mu      sync.Mutex
	client  *websocket.Conn
	writeMu sync.Mutex
}

// New creates a bridge for local
func New(config Config, local transport.Transport) *Server {
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	s := &Server{
		config: config,
		local:  local,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	local.OnDataReceived(s.forwardToClient)
	return s
}

// Start opens the local transport and starts serving. It returns once the
// listener is up.
func (s *Server) Start() error {
	if err := s.local.Open(); err != nil {
		return fmt.Errorf("failed to open local transport: %w", err)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = s.local.Close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleWebSocket)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Bridge HTTP server failed", zap.Error(err))
		}
	}()

	logging.Info("Bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
	)

	if s.config.Advertise {
		ad, err := discovery.Advertise(s.config.Instance, s.Port(), s.config.Path, nil)
		if err != nil {
			logging.Warn("Failed to advertise bridge", zap.Error(err))
		} else {
			s.ad = ad
		}
	}
	return nil
}

// Run starts the bridge and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Port returns the port the bridge listens on
func (s *Server) Port() int {
	if s.listener == nil {
		return s.config.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}

// URL returns the WebSocket URL for clients on this host
func (s *Server) URL() string {
	host := s.config.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(s.Port())), s.config.Path)
}

// HasClient reports whether a client is connected
func (s *Server) HasClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	s.mu.Lock()
	busy := s.client != nil
	s.mu.Unlock()
	if busy {
		logging.Warn("Refusing second bridge client", zap.String("remote_addr", remoteAddr))
		http.Error(w, "bridge already has a client", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.client = conn
	s.mu.Unlock()

	logging.LogConnection(remoteAddr, "bridge_client_connected")
	s.serveClient(conn, remoteAddr)
}

// serveClient pumps client messages to the local transport until the
// connection fails.
func (s *Server) serveClient(conn *websocket.Conn, remoteAddr string) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.mu.Lock()
		if s.client == conn {
			s.client = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "bridge_client_closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.pingLoop(conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Bridge client read failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			logging.Debug("Ignoring non-binary message", zap.String("remote_addr", remoteAddr))
			continue
		}

		if err := s.local.Send(data); err != nil {
			logging.Error("Failed to write to instrument",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// forwardToClient is the local transport callback
func (s *Server) forwardToClient(data []byte) {
	s.mu.Lock()
	conn := s.client
	s.mu.Unlock()

	if conn == nil {
		logging.Debug("No bridge client, dropping instrument data", zap.Int("bytes", len(data)))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		logging.Warn("Failed to forward instrument data", zap.Error(err))
	}
}

// Shutdown stops serving, drops the client and closes the local transport
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	s.ad.Shutdown()

	s.mu.Lock()
	if s.client != nil {
		_ = s.client.Close()
	}
	s.mu.Unlock()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	if err := s.local.Close(); err != nil {
		errs = append(errs, err)
	}

	logging.Sync()
	return errors.Join(errs...)
}
