package handler

import (
	"fmt"
	"slices"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"go.uber.org/zap"
)

// Check routes CHECK_RESP payloads by their leading check-kind byte. The
// remaining bytes are float samples.
type Check struct {
	stability     callbackList[SampleFunc]
	accuracy      callbackList[SampleFunc]
	repeatability callbackList[SampleFunc]
}

// NewCheck creates a check router with no callbacks
func NewCheck() *Check {
	return &Check{}
}

func (c *Check) list(kind protocol.CheckKind) (*callbackList[SampleFunc], error) {
	switch kind {
	case protocol.CheckStability:
		return &c.stability, nil
	case protocol.CheckAccuracy:
		return &c.accuracy, nil
	case protocol.CheckRepeatability:
		return &c.repeatability, nil
	default:
		return nil, fmt.Errorf("%w: unknown check kind 0x%02x", protocol.ErrMalformedPayload, byte(kind))
	}
}

// AddCallback registers fn for one check kind and returns its id
func (c *Check) AddCallback(kind protocol.CheckKind, fn SampleFunc) (int, error) {
	l, err := c.list(kind)
	if err != nil {
		return 0, err
	}
	return l.add(fn), nil
}

// RemoveCallback unregisters a callback of the given kind
func (c *Check) RemoveCallback(kind protocol.CheckKind, id int) bool {
	l, err := c.list(kind)
	if err != nil {
		return false
	}
	return l.remove(id)
}

// Handle implements Handler
func (c *Check) Handle(msg protocol.RawMessage) error {
	if msg.Command != protocol.CommandCheckResp {
		return fmt.Errorf("check handler: %w %s", ErrUnexpectedCommand, msg.Command)
	}
	if len(msg.Data) == 0 {
		return fmt.Errorf("check handler: %w: empty payload", protocol.ErrMalformedPayload)
	}

	kind := protocol.CheckKind(msg.Data[0])
	l, err := c.list(kind)
	if err != nil {
		return fmt.Errorf("check handler: %w", err)
	}

	samples, err := protocol.DecodeFloat32s(msg.Data[1:])
	if err != nil {
		return fmt.Errorf("check handler (%s): %w", kind, err)
	}

	if l.count() == 0 {
		logging.Debug("No callback for check result", zap.String("kind", kind.String()))
		return nil
	}

	return run("check_"+kind.String(), l, func(fn SampleFunc) error {
		return fn(slices.Clone(samples))
	})
}
