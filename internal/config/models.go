package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/ftirlink/internal/processing"
)

// Transport kinds an instrument entry may name.
const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Registry represents the entire user configuration file.
// It stores known instruments and application preferences.
type Registry struct {
	Version     int                    `yaml:"version"`
	Instruments map[string]*Instrument `yaml:"instruments,omitempty"` // Keyed by port name or bridge URL
	Preferences *Preferences           `yaml:"preferences,omitempty"`
}

// Instrument represents user-defined metadata for one connected instrument.
type Instrument struct {
	Nickname  string    `yaml:"nickname,omitempty"`
	Transport string    `yaml:"transport"`           // "serial" or "websocket"
	Address   string    `yaml:"address"`             // Device path or ws:// URL
	Baud      int       `yaml:"baud,omitempty"`      // Serial only
	LastSeen  time.Time `yaml:"last_seen,omitempty"` // Last successful connection
}

// Preferences represents application-wide defaults.
type Preferences struct {
	DefaultPort      string        `yaml:"default_port,omitempty"`
	BaudRate         int           `yaml:"baud_rate"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	Processing       *Processing   `yaml:"processing,omitempty"`
	NATS             *NATS         `yaml:"nats,omitempty"`
}

// Processing holds the defaults for the standard spectral chain.
type Processing struct {
	PhaseOffset float64 `yaml:"phase_offset"`
	Window      string  `yaml:"window"`
	ZeroPadding bool    `yaml:"zero_padding"`
}

// NATS holds spectrum publishing settings. An empty URL disables publishing.
type NATS struct {
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     currentVersion,
		Instruments: make(map[string]*Instrument),
		Preferences: DefaultPreferences(),
	}
}

// DefaultPreferences returns the preferences used when none are configured.
func DefaultPreferences() *Preferences {
	return &Preferences{
		BaudRate:         115200,
		HandshakeTimeout: 3 * time.Second,
		RetryDelay:       5 * time.Second,
		Processing: &Processing{
			Window:      string(processing.WindowHann),
			ZeroPadding: true,
		},
		NATS: &NATS{
			SubjectPrefix: "ftirlink.spectrum",
		},
	}
}

// fillDefaults replaces missing sections and zero values with defaults.
func (r *Registry) fillDefaults() {
	if r.Instruments == nil {
		r.Instruments = make(map[string]*Instrument)
	}
	def := DefaultPreferences()
	if r.Preferences == nil {
		r.Preferences = def
		return
	}
	p := r.Preferences
	if p.BaudRate == 0 {
		p.BaudRate = def.BaudRate
	}
	if p.HandshakeTimeout == 0 {
		p.HandshakeTimeout = def.HandshakeTimeout
	}
	if p.RetryDelay == 0 {
		p.RetryDelay = def.RetryDelay
	}
	if p.Processing == nil {
		p.Processing = def.Processing
	}
	if p.NATS == nil {
		p.NATS = def.NATS
	} else if p.NATS.SubjectPrefix == "" {
		p.NATS.SubjectPrefix = def.NATS.SubjectPrefix
	}
}

// Validate checks the registry for values the rest of the program cannot use.
func (r *Registry) Validate() error {
	if r.Version != currentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", r.Version, currentVersion)
	}
	for key, inst := range r.Instruments {
		if inst == nil {
			return fmt.Errorf("instrument %q: empty entry", key)
		}
		switch inst.Transport {
		case TransportSerial:
			if inst.Baud < 0 {
				return fmt.Errorf("instrument %q: invalid baud rate %d", key, inst.Baud)
			}
		case TransportWebSocket:
			if !strings.HasPrefix(inst.Address, "ws://") && !strings.HasPrefix(inst.Address, "wss://") {
				return fmt.Errorf("instrument %q: websocket address must start with ws:// or wss://", key)
			}
		default:
			return fmt.Errorf("instrument %q: unknown transport %q", key, inst.Transport)
		}
	}
	p := r.Preferences
	if p == nil {
		return nil
	}
	if p.BaudRate < 0 {
		return fmt.Errorf("invalid baud rate %d", p.BaudRate)
	}
	if p.HandshakeTimeout < 0 || p.RetryDelay < 0 {
		return fmt.Errorf("handshake durations must not be negative")
	}
	if p.Processing != nil {
		if _, err := processing.ParseWindowType(p.Processing.Window); err != nil {
			return err
		}
	}
	return nil
}

// Instrument returns the entry for key, or nil.
func (r *Registry) Instrument(key string) *Instrument {
	return r.Instruments[key]
}

// EnsureInstrument returns the entry for key, creating it if needed.
func (r *Registry) EnsureInstrument(key, transport string) *Instrument {
	if r.Instruments == nil {
		r.Instruments = make(map[string]*Instrument)
	}
	if inst, ok := r.Instruments[key]; ok {
		return inst
	}
	inst := &Instrument{Transport: transport, Address: key}
	r.Instruments[key] = inst
	return inst
}

// MarkSeen records a successful connection to key.
func (r *Registry) MarkSeen(key, transport string, baud int) {
	inst := r.EnsureInstrument(key, transport)
	inst.LastSeen = time.Now()
	if transport == TransportSerial && baud > 0 {
		inst.Baud = baud
	}
}

// SetNickname sets a user-friendly name for an instrument.
func (r *Registry) SetNickname(key, transport, nickname string) {
	r.EnsureInstrument(key, transport).Nickname = nickname
}

// Keys returns the instrument keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.Instruments))
	for k := range r.Instruments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StandardConfig converts the preferences into a processing chain config.
func (p *Processing) StandardConfig() (processing.StandardConfig, error) {
	if p == nil {
		return processing.DefaultStandardConfig(), nil
	}
	w, err := processing.ParseWindowType(p.Window)
	if err != nil {
		return processing.StandardConfig{}, err
	}
	return processing.StandardConfig{
		PhaseOffset: p.PhaseOffset,
		Window:      w,
		ZeroPadding: p.ZeroPadding,
	}, nil
}
