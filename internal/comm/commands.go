package comm

import (
	"fmt"

	"github.com/muurk/ftirlink/internal/protocol"
)

// StartCollect asks the instrument to start acquiring
func (m *Manager) StartCollect() error {
	return m.Send(protocol.CommandStartCollect, nil)
}

// StopCollect asks the instrument to stop acquiring
func (m *Manager) StopCollect() error {
	return m.Send(protocol.CommandStopCollect, nil)
}

// StartCheck starts a self-check of the given kind
func (m *Manager) StartCheck(kind protocol.CheckKind) error {
	if !kind.Valid() {
		return fmt.Errorf("start check: invalid kind 0x%02x", byte(kind))
	}
	return m.Send(protocol.CommandStartCheck, []byte{byte(kind)})
}

// StopCheck stops a running self-check of the given kind
func (m *Manager) StopCheck(kind protocol.CheckKind) error {
	if !kind.Valid() {
		return fmt.Errorf("stop check: invalid kind 0x%02x", byte(kind))
	}
	return m.Send(protocol.CommandStopCheck, []byte{byte(kind)})
}

// StartCheckStability starts the light-stability check
func (m *Manager) StartCheckStability() error { return m.StartCheck(protocol.CheckStability) }

// StopCheckStability stops the light-stability check
func (m *Manager) StopCheckStability() error { return m.StopCheck(protocol.CheckStability) }

// StartCheckAccuracy starts the standard-wave accuracy check
func (m *Manager) StartCheckAccuracy() error { return m.StartCheck(protocol.CheckAccuracy) }

// StopCheckAccuracy stops the standard-wave accuracy check
func (m *Manager) StopCheckAccuracy() error { return m.StopCheck(protocol.CheckAccuracy) }

// StartCheckRepeatability starts the standard-wave repeatability check
func (m *Manager) StartCheckRepeatability() error { return m.StartCheck(protocol.CheckRepeatability) }

// StopCheckRepeatability stops the standard-wave repeatability check
func (m *Manager) StopCheckRepeatability() error { return m.StopCheck(protocol.CheckRepeatability) }
