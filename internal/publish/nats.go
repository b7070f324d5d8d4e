// Package publish forwards processed spectra to a NATS subject so other
// services (dashboards, archivers) can consume them.
//
// Events are JSON encoded SpectrumEvent values published on
// "<prefix>.<source>", where source is the instrument port with characters
// that NATS treats specially replaced by underscores.
package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/version"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "ftirlink.spectrum"

// SpectrumEvent is the published message body
type SpectrumEvent struct {
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	Bins          []float64 `json:"bins"`
	PeakBin       int       `json:"peak_bin"`
	PeakMagnitude float64   `json:"peak_magnitude"`
}

// NewSpectrumEvent builds an event and locates the strongest non-DC bin
func NewSpectrumEvent(source string, ts time.Time, bins []float64) SpectrumEvent {
	evt := SpectrumEvent{
		Source:    source,
		Timestamp: ts.UTC(),
		Bins:      bins,
		PeakBin:   -1,
	}

	start := 1
	if len(bins) == 1 {
		start = 0
	}
	for i := start; i < len(bins); i++ {
		if evt.PeakBin == -1 || bins[i] > evt.PeakMagnitude {
			evt.PeakBin = i
			evt.PeakMagnitude = bins[i]
		}
	}
	return evt
}

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// NATS publishes spectrum events
type NATS struct {
	conn    Conn
	subject string
	source  string
}

// Connect dials the NATS server at url. Reconnects are unlimited; connection
// state changes are logged.
func Connect(url, prefix, source string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name(version.ClientName("ftirlink")),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logging.Info("Connected to NATS", zap.String("url", url))
	return New(nc, prefix, source), nil
}

// New creates a publisher on an existing connection
func New(conn Conn, prefix, source string) *NATS {
	return &NATS{
		conn:    conn,
		subject: Subject(prefix, source),
		source:  source,
	}
}

// Subject returns the subject for source under prefix
func Subject(prefix, source string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '/', '\\', ':':
			return '_'
		}
		return r
	}, source)
	token = strings.Trim(token, "_")
	if token == "" {
		token = "unknown"
	}
	return prefix + "." + token
}

// SubjectName returns the subject events go to
func (n *NATS) SubjectName() string {
	return n.subject
}

// Publish sends one event
func (n *NATS) Publish(evt SpectrumEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode spectrum event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.subject, err)
	}

	logging.Debug("Published spectrum",
		zap.String("subject", n.subject),
		zap.Int("bins", len(evt.Bins)),
		zap.Int("peak_bin", evt.PeakBin),
	)
	return nil
}

// PublishMeasurement publishes the spectrum of m
func (n *NATS) PublishMeasurement(m handler.Measurement) error {
	return n.Publish(NewSpectrumEvent(n.source, m.ReceivedAt, m.Spectrum))
}

// Close flushes pending messages and closes the connection
func (n *NATS) Close() error {
	err := n.conn.Flush()
	n.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}
