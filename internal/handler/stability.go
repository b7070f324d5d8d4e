package handler

import (
	"fmt"
	"slices"
	"time"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/processing"
	"github.com/muurk/ftirlink/internal/protocol"
	"go.uber.org/zap"
)

// Measurement is one processed light-stability acquisition
type Measurement struct {
	Interferogram []float64
	Spectrum      []float64
	ReceivedAt    time.Time
}

// MeasurementFunc receives processed measurements
type MeasurementFunc func(m Measurement) error

// Stability decodes interferograms, runs them through a processing chain and
// delivers the result.
type Stability struct {
	chain     *processing.Chain
	callbacks callbackList[MeasurementFunc]
	now       func() time.Time
}

// NewStability creates a stability handler using chain. A nil chain selects
// the standard chain with default settings.
func NewStability(chain *processing.Chain) *Stability {
	if chain == nil {
		chain = processing.MustStandardChain(processing.DefaultStandardConfig())
	}
	return &Stability{chain: chain, now: time.Now}
}

// AddCallback registers fn and returns its id
func (s *Stability) AddCallback(fn MeasurementFunc) int {
	return s.callbacks.add(fn)
}

// RemoveCallback unregisters a callback
func (s *Stability) RemoveCallback(id int) bool {
	return s.callbacks.remove(id)
}

// Handle implements Handler. Payloads tagged with a check kind other than
// stability are rejected; untagged payloads are plain float arrays.
func (s *Stability) Handle(msg protocol.RawMessage) error {
	if msg.Command != protocol.CommandCheckResp {
		return fmt.Errorf("stability handler: %w %s", ErrUnexpectedCommand, msg.Command)
	}

	data := msg.Data
	if len(data)%4 == 1 {
		if kind := protocol.CheckKind(data[0]); kind != protocol.CheckStability {
			return fmt.Errorf("stability handler: %w: check kind %s", protocol.ErrMalformedPayload, kind)
		}
		data = data[1:]
	}

	interferogram, err := protocol.DecodeFloat32s(data)
	if err != nil {
		return fmt.Errorf("stability handler: %w", err)
	}

	start := time.Now()
	spectrum := s.chain.Process(interferogram)
	logging.Debug("Processed interferogram",
		zap.Int("points", len(interferogram)),
		zap.Int("bins", len(spectrum)),
		zap.Duration("elapsed", time.Since(start)),
	)

	m := Measurement{
		Interferogram: interferogram,
		Spectrum:      spectrum,
		ReceivedAt:    s.now(),
	}

	return run("stability", &s.callbacks, func(fn MeasurementFunc) error {
		return fn(Measurement{
			Interferogram: slices.Clone(m.Interferogram),
			Spectrum:      slices.Clone(m.Spectrum),
			ReceivedAt:    m.ReceivedAt,
		})
	})
}
