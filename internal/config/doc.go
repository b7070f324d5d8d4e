// Package config manages the ftirlink user configuration file.
//
// The file is YAML and records the instruments the host has talked to
// (serial ports and bridge URLs) together with application defaults: baud
// rate, handshake timing, the spectral processing chain and NATS
// publishing.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/ftirlink/config.yaml or $HOME/.config/ftirlink/config.yaml
//   - macOS: $HOME/.config/ftirlink/config.yaml
//   - Windows: %LOCALAPPDATA%\ftirlink\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.MarkSeen("/dev/ttyUSB0", config.TransportSerial, 115200)
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry is initialised with sync.Once. Writes go through a
// temporary file and a rename under a package mutex.
package config
