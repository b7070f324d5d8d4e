package handler

import (
	"fmt"
	"slices"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"go.uber.org/zap"
)

// Samples decodes float payloads and passes them to its callbacks
type Samples struct {
	name      string
	commands  []protocol.Command
	callbacks callbackList[SampleFunc]
}

// NewSamples creates a sample handler named name that accepts cmds. With no
// commands it accepts CHECK_RESP.
func NewSamples(name string, cmds ...protocol.Command) *Samples {
	if len(cmds) == 0 {
		cmds = []protocol.Command{protocol.CommandCheckResp}
	}
	return &Samples{name: name, commands: slices.Clone(cmds)}
}

// NewSpectrum creates the handler for spectrum samples
func NewSpectrum() *Samples {
	return NewSamples("spectrum")
}

// NewInterference creates the handler for interferogram samples
func NewInterference() *Samples {
	return NewSamples("interference")
}

// Name returns the handler name used in logs
func (s *Samples) Name() string {
	return s.name
}

// AddCallback registers fn and returns its id
func (s *Samples) AddCallback(fn SampleFunc) int {
	return s.callbacks.add(fn)
}

// RemoveCallback unregisters a callback. It reports whether id was found.
func (s *Samples) RemoveCallback(id int) bool {
	return s.callbacks.remove(id)
}

// ClearCallbacks removes every callback
func (s *Samples) ClearCallbacks() {
	s.callbacks.clear()
}

// Handle implements Handler
func (s *Samples) Handle(msg protocol.RawMessage) error {
	if !slices.Contains(s.commands, msg.Command) {
		return fmt.Errorf("%s handler: %w %s", s.name, ErrUnexpectedCommand, msg.Command)
	}

	samples, err := protocol.DecodeFloat32s(msg.Data)
	if err != nil {
		return fmt.Errorf("%s handler: %w", s.name, err)
	}

	logging.Debug("Decoded samples",
		zap.String("handler", s.name),
		zap.Int("points", len(samples)),
		zap.Int("callbacks", s.callbacks.count()),
	)

	return run(s.name, &s.callbacks, func(fn SampleFunc) error {
		return fn(slices.Clone(samples))
	})
}
