package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ftirlink/internal/bridge"
	"github.com/muurk/ftirlink/internal/discovery"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/simulator"
	"github.com/muurk/ftirlink/internal/transport"
	"github.com/muurk/ftirlink/internal/ui"
)

// Serving flags
var (
	listenHost   string
	bridgePort   int
	simPort      int
	advertise    bool
	instanceName string

	simInterval time.Duration
	simIgnore   int
	simTag      bool
	simSeed     uint64
	simNoise    float64
	simRate     float64
)

func init() {
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(simulateCmd)

	for _, c := range []*cobra.Command{bridgeCmd, simulateCmd} {
		c.Flags().StringVar(&listenHost, "host", "", "Interface to listen on (empty = all)")
		c.Flags().BoolVar(&advertise, "advertise", true, "Advertise the bridge over mDNS")
		c.Flags().StringVar(&instanceName, "instance", defaultInstance(), "mDNS instance name")
	}
	bridgeCmd.Flags().IntVar(&bridgePort, "listen", discovery.DefaultPort, "TCP port for WebSocket clients")
	simulateCmd.Flags().IntVar(&simPort, "listen", 0, "Serve the simulator as a WebSocket bridge on this port instead of --port")

	def := simulator.DefaultConfig()
	simulateCmd.Flags().DurationVar(&simInterval, "interval", def.Interval, "Time between streamed frames")
	simulateCmd.Flags().IntVar(&simIgnore, "ignore-handshakes", 0, "Drop this many handshake requests before answering")
	simulateCmd.Flags().BoolVar(&simTag, "tag-kind", true, "Prefix check frames with the check kind byte")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", def.Seed, "Signal generator seed")
	simulateCmd.Flags().Float64Var(&simNoise, "noise", def.Signal.NoiseLevel, "Gaussian noise standard deviation")
	simulateCmd.Flags().Float64Var(&simRate, "sample-rate", def.Signal.SampleRate, "Samples per second of simulated signal")
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "ftirlink"
	}
	return "ftirlink-" + host
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Share a serial instrument over WebSocket",
	Long: `Open the serial port and forward its bytes to one WebSocket client at a
time. The bridge is advertised over mDNS so 'ftirctl --bridge auto' finds it.`,
	Example: `  ftirctl bridge --port /dev/ttyUSB0 --listen 8765`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if portName == "" {
			return fmt.Errorf("bridge needs --port")
		}
		local := transport.NewSerial(transport.SerialConfig{Name: portName, Baud: baudRate})
		return serveBridge(cmd, local, bridgePort, ui.F("Serial", portName), ui.F("Baud", baudRate))
	},
}

func serveBridge(cmd *cobra.Command, local transport.Transport, port int, fields ...ui.Field) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv := bridge.New(bridge.Config{
		Host:      listenHost,
		Port:      port,
		Advertise: advertise,
		Instance:  instanceName,
	}, local)
	if err := srv.Start(); err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Bridge", cmd.CommandPath(), append(fields,
		ui.F("URL", srv.URL()),
		ui.F("mDNS", advertiseLabel()),
	)...)
	p.Println("  Press Ctrl-C to stop")

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func advertiseLabel() string {
	if !advertise {
		return "off"
	}
	return instanceName + "." + discovery.ServiceType
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play the instrument for testing",
	Long: `Answer handshakes and stream synthetic interferograms.

With --listen the simulator is served as a WebSocket bridge, so another
ftirctl can connect with --bridge. Otherwise it runs on --port, for example
one end of a virtual null-modem pair.`,
	Example: `  # Terminal 1
  ftirctl simulate --listen 8765 --interval 200ms

  # Terminal 2
  ftirctl check stability --bridge ws://127.0.0.1:8765/ws`,
	RunE: runSimulate,
}

func simulatorConfig() simulator.Config {
	cfg := simulator.DefaultConfig()
	cfg.Interval = simInterval
	cfg.IgnoreHandshakes = simIgnore
	cfg.TagCheckKind = simTag
	cfg.Seed = simSeed
	cfg.Signal.NoiseLevel = simNoise
	cfg.Signal.SampleRate = simRate
	return cfg
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := simulatorConfig()

	if simPort != 0 {
		host, inst := transport.Pipe()
		dev := simulator.New(inst, cfg)
		if err := dev.Start(); err != nil {
			return err
		}
		defer func() {
			if err := dev.Stop(); err != nil {
				logging.Warn("Simulator stop failed", zap.Error(err))
			}
		}()
		return serveBridge(cmd, host, simPort, ui.F("Simulator", fmt.Sprintf("%s interval, seed %d", cfg.Interval, cfg.Seed)))
	}

	if portName == "" {
		return fmt.Errorf("simulate needs --port or --listen")
	}
	dev := simulator.New(transport.NewSerial(transport.SerialConfig{Name: portName, Baud: baudRate}), cfg)
	if err := dev.Start(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Simulator", cmd.CommandPath(),
		ui.F("Serial", portName),
		ui.F("Interval", cfg.Interval),
		ui.F("Seed", cfg.Seed),
	)
	p.Println("  Press Ctrl-C to stop")
	<-ctx.Done()

	if err := dev.Stop(); err != nil {
		return err
	}
	p.PrintSuccess("Simulator stopped",
		ui.F("Handshakes answered", dev.HandshakesAnswered()),
		ui.F("Frames sent", dev.FramesSent()),
	)
	return nil
}
