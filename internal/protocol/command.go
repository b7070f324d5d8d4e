package protocol

import (
	"errors"
	"fmt"
)

// Command identifies the semantics of a frame.
type Command uint16

// Command codes. The values are fixed by the instrument firmware.
const (
	CommandHandshakeReq  Command = 0x0101
	CommandHandshakeResp Command = 0x0201
	CommandStartCheck    Command = 0x0110
	CommandStopCheck     Command = 0x0111
	CommandStartCollect  Command = 0x0010
	CommandStopCollect   Command = 0x0011
	CommandCheckResp     Command = 0x0210
)

// ErrUnknownCommand is returned by ParseCommand for wire values outside the
// command set.
var ErrUnknownCommand = errors.New("unknown command")

var commandNames = map[Command]string{
	CommandHandshakeReq:  "HANDSHAKE_REQ",
	CommandHandshakeResp: "HANDSHAKE_RESP",
	CommandStartCheck:    "START_CHECK",
	CommandStopCheck:     "STOP_CHECK",
	CommandStartCollect:  "START_COLLECT",
	CommandStopCollect:   "STOP_COLLECT",
	CommandCheckResp:     "CHECK_RESP",
}

// Commands returns every known command in wire-value order.
func Commands() []Command {
	return []Command{
		CommandStartCollect,
		CommandStopCollect,
		CommandHandshakeReq,
		CommandStartCheck,
		CommandStopCheck,
		CommandHandshakeResp,
		CommandCheckResp,
	}
}

// ParseCommand maps a wire value to a Command.
func ParseCommand(v uint16) (Command, error) {
	c := Command(v)
	if _, ok := commandNames[c]; !ok {
		return 0, fmt.Errorf("%w: 0x%04x", ErrUnknownCommand, v)
	}
	return c, nil
}

// Valid reports whether c is a member of the command set.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// String returns a human-readable command name
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%04x)", uint16(c))
}

// CheckKind is the one-byte discriminator carried by START_CHECK, STOP_CHECK
// and tagged CHECK_RESP payloads.
type CheckKind byte

// Check kinds
const (
	CheckStability     CheckKind = 0x01
	CheckAccuracy      CheckKind = 0x02
	CheckRepeatability CheckKind = 0x03
)

// ParseCheckKind maps a name ("stability", "accuracy", "repeatability") to a
// CheckKind.
func ParseCheckKind(name string) (CheckKind, error) {
	switch name {
	case "stability":
		return CheckStability, nil
	case "accuracy":
		return CheckAccuracy, nil
	case "repeatability":
		return CheckRepeatability, nil
	default:
		return 0, fmt.Errorf("unknown check kind %q (expected stability, accuracy or repeatability)", name)
	}
}

// Valid reports whether k is a known check kind.
func (k CheckKind) Valid() bool {
	return k >= CheckStability && k <= CheckRepeatability
}

func (k CheckKind) String() string {
	switch k {
	case CheckStability:
		return "stability"
	case CheckAccuracy:
		return "accuracy"
	case CheckRepeatability:
		return "repeatability"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(k))
	}
}
