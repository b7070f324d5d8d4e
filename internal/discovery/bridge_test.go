package discovery

import "testing"

func TestBridge_URL(t *testing.T) {
	tests := []struct {
		name   string
		bridge *Bridge
		want   string
	}{
		{"ipv4", &Bridge{IP: "192.168.1.20", Port: 8765, Path: "/ws"}, "ws://192.168.1.20:8765/ws"},
		{"empty path", &Bridge{IP: "10.0.0.5", Port: 9000}, "ws://10.0.0.5:9000/ws"},
		{"ipv6", &Bridge{IP: "fe80::1", Port: 8765, Path: "/ws"}, "ws://[fe80::1]:8765/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bridge.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBridge_String(t *testing.T) {
	b := &Bridge{Instance: "bench-1", Hostname: "labpi.local.", IP: "192.168.1.20", Port: 8765}
	want := "Bridge bench-1 (labpi.local.) at 192.168.1.20:8765"
	if got := b.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBridge_SerialPort(t *testing.T) {
	b := &Bridge{Metadata: map[string]string{TxtSerialPort: "/dev/ttyUSB0"}}
	if got := b.SerialPort(); got != "/dev/ttyUSB0" {
		t.Errorf("SerialPort() = %q", got)
	}
	if got := (&Bridge{}).SerialPort(); got != "" {
		t.Errorf("SerialPort() with no metadata = %q", got)
	}
}
