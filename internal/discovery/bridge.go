package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a network bridge found on the local network
type Bridge struct {
	// Instance is the advertised service instance name (e.g. "bench-1")
	Instance string

	// Hostname is the mDNS hostname (e.g. "labpi.local.")
	Hostname string

	// IP is the bridge address, IPv4 preferred
	IP string

	// Port is the WebSocket listen port
	Port int

	// Path is the WebSocket endpoint path, "/ws" unless advertised otherwise
	Path string

	// Metadata holds the remaining TXT records, e.g. "port=/dev/ttyUSB0"
	Metadata map[string]string

	// DiscoveredAt is when the bridge answered
	DiscoveredAt time.Time
}

func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge %s (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// URL returns the WebSocket URL of the bridge
func (b *Bridge) URL() string {
	path := b.Path
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(b.IP, strconv.Itoa(b.Port)), path)
}

// SerialPort returns the serial device the bridge forwards, if advertised
func (b *Bridge) SerialPort() string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[TxtSerialPort]
}
