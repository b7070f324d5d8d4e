// Ftirctl talks to an FTIR instrument over a serial port or a WebSocket
// bridge.
//
// It lists ports and bridges, runs stability, accuracy and repeatability
// checks, streams raw interferograms, decodes captured frames, and can play
// the instrument itself for testing.
//
// Usage:
//
//	ftirctl [command] [flags]
//
// See 'ftirctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ftirlink/internal/config"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	portName   string
	baudRate   int
	bridgeURL  string
	logLevel   string
	configPath string
)

// registry is loaded before any subcommand runs
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "ftirctl",
	Short: "FTIR instrument host utility",
	Long: `Host-side utility for FTIR instruments.

Connects to the instrument over a serial port or through a WebSocket bridge,
performs the handshake, and runs checks or raw acquisition. Processed spectra
can be published to NATS.

Logging is silent unless --log-level or FTIRLINK_LOG_LEVEL is set.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&portName, "port", "", "Serial port of the instrument (default from config or first detected)")
	pf.IntVar(&baudRate, "baud", 0, "Serial baud rate (default from config, 115200)")
	pf.StringVar(&bridgeURL, "bridge", "", "WebSocket bridge URL, or \"auto\" to discover one over mDNS")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&configPath, "config", "", "Config file (default is the per-user ftirlink config)")

	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		registry, err = config.LoadFrom(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if baudRate == 0 {
		baudRate = registry.Preferences.BaudRate
	}
	if portName == "" {
		portName = registry.Preferences.DefaultPort
	}
	return nil
}

// saveRegistry writes the registry back to where it came from.
func saveRegistry() error {
	if configPath != "" {
		return registry.SaveTo(configPath)
	}
	return registry.Save()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ftirctl %s\n", version.Full())
	},
}
