package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is the instrument's factory line speed
	DefaultBaudRate = 115200

	// DefaultReadTimeout bounds each blocking read so Close is noticed
	// promptly by the reader goroutine.
	DefaultReadTimeout = 100 * time.Millisecond

	readBufferSize = 4096
)

// SerialConfig selects and configures a serial port. The line is always 8N1.
type SerialConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// serialPort is the part of *serial.Port the transport uses
type serialPort interface {
	io.ReadWriteCloser
}

// openSerialPort opens a real device; tests substitute it.
var openSerialPort = func(cfg *serial.Config) (serialPort, error) {
	return serial.OpenPort(cfg)
}

// Serial is a Transport over a local serial port.
type Serial struct {
	config SerialConfig

	mu       sync.Mutex
	port     serialPort
	stopCh   chan struct{}
	callback DataCallback

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewSerial creates a serial transport. Zero config fields take defaults.
func NewSerial(cfg SerialConfig) *Serial {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Serial{config: cfg}
}

// Name returns the configured port name
func (s *Serial) Name() string {
	return s.config.Name
}

// Open opens the port and starts the reader goroutine.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	if s.config.Name == "" {
		return newError("open", "", errors.New("no port name configured"))
	}

	port, err := openSerialPort(&serial.Config{
		Name:        s.config.Name,
		Baud:        s.config.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: s.config.ReadTimeout,
	})
	if err != nil {
		return newError("open", s.config.Name, err)
	}

	s.port = port
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.readLoop(port, s.stopCh)

	logging.LogConnection(s.config.Name, "serial_opened")
	return nil
}

// Close stops the reader and closes the port. It waits for the reader
// goroutine, so it must not be called from the data callback.
func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	if port == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.port = nil
	s.mu.Unlock()

	err := port.Close()
	s.wg.Wait()

	logging.LogConnection(s.config.Name, "serial_closed")
	if err != nil {
		return newError("close", s.config.Name, err)
	}
	return nil
}

// Send writes data to the port. Concurrent senders are serialized.
func (s *Serial) Send(data []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return newError("send", s.config.Name, ErrNotOpen)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for written := 0; written < len(data); {
		n, err := port.Write(data[written:])
		if err != nil {
			return newError("send", s.config.Name, err)
		}
		written += n
	}

	logging.LogRawBytes("serial_tx", data)
	return nil
}

// OnDataReceived sets the chunk callback.
func (s *Serial) OnDataReceived(cb DataCallback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// IsOpen reports whether the port is open.
func (s *Serial) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// ListAvailablePorts lists serial device nodes present on this host.
func (s *Serial) ListAvailablePorts() ([]string, error) {
	return ListSerialPorts()
}

func (s *Serial) readLoop(port serialPort, stopCh <-chan struct{}) {
	defer s.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			logging.LogRawBytes("serial_rx", chunk)

			s.mu.Lock()
			cb := s.callback
			s.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
		}

		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-stopCh:
				return
			default:
			}
			logging.Error("Serial read failed",
				zap.String("port", s.config.Name),
				zap.Error(err),
			)
			s.dropPort(port)
			return
		}
	}
}

// dropPort marks the transport closed after the device went away, so a
// later Open starts a fresh reader.
func (s *Serial) dropPort(port serialPort) {
	s.mu.Lock()
	if s.port != port {
		s.mu.Unlock()
		return
	}
	s.port = nil
	close(s.stopCh)
	s.mu.Unlock()

	_ = port.Close()
	logging.LogConnection(s.config.Name, "serial_lost")
}
