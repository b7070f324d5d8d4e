package transport

import (
	"path/filepath"
	"slices"
)

// serialPortPatterns are the device nodes USB-serial adapters and on-board
// UARTs appear as on Linux and macOS.
var serialPortPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/ttyS*",
	"/dev/tty.usbserial*",
	"/dev/tty.usbmodem*",
	"/dev/cu.usbserial*",
}

// ListSerialPorts returns the serial device nodes present on this host,
// sorted and without duplicates.
func ListSerialPorts() ([]string, error) {
	return globPorts(serialPortPatterns)
}

func globPorts(patterns []string) ([]string, error) {
	ports := make([]string, 0)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, newError("list", pattern, err)
		}
		ports = append(ports, matches...)
	}
	slices.Sort(ports)
	return slices.Compact(ports), nil
}
