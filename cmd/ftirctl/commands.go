package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/muurk/ftirlink/internal/discovery"
	"github.com/muurk/ftirlink/internal/handler"
	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/processing"
	"github.com/muurk/ftirlink/internal/protocol"
	"github.com/muurk/ftirlink/internal/publish"
	"github.com/muurk/ftirlink/internal/transport"
	"github.com/muurk/ftirlink/internal/ui"
)

// Command flags
var (
	scanTimeout   time.Duration
	handshakeWait time.Duration
	measureCount  int
	measureWait   time.Duration
	natsURL       string
	outputFormat  string
	monitorKind   string
)

func init() {
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(decodeCmd)

	portsCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 3*time.Second, "How long to browse for bridges (0 skips the scan)")

	for _, c := range []*cobra.Command{checkCmd, collectCmd, monitorCmd} {
		c.Flags().DurationVar(&handshakeWait, "handshake-wait", 15*time.Second, "How long to wait for the handshake")
		c.Flags().StringVar(&natsURL, "nats", "", "Publish spectra to this NATS server (default from config)")
	}
	for _, c := range []*cobra.Command{checkCmd, collectCmd} {
		c.Flags().IntVar(&measureCount, "count", 5, "Number of frames to receive (0 runs until interrupted)")
		c.Flags().DurationVar(&measureWait, "timeout", time.Minute, "Give up when frames stop arriving for this long")
	}
	collectCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")
	monitorCmd.Flags().StringVar(&monitorKind, "kind", "stability", "Check to run while monitoring")
}

// signalContext is cancelled on Ctrl-C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and WebSocket bridges",
	Long: `List serial ports that look like instruments and browse the local
network for ftirlink bridges over mDNS.`,
	Example: `  # List ports and browse for bridges for 3 seconds
  ftirctl ports

  # Serial ports only
  ftirctl ports --scan-timeout 0`,
	RunE: runPorts,
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	ports, err := transport.ListSerialPorts()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Serial ports (%d):\n", len(ports))
	for _, p := range ports {
		line := "  " + p
		if inst := registry.Instrument(p); inst != nil && inst.Nickname != "" {
			line += "  (" + inst.Nickname + ")"
		}
		fmt.Fprintln(out, line)
	}

	if scanTimeout <= 0 {
		return nil
	}
	fmt.Fprintf(out, "\nBrowsing for bridges (%s)...\n", scanTimeout)
	bridges, err := discovery.ScanForBridges(scanTimeout)
	if err != nil {
		return fmt.Errorf("bridge discovery failed: %w", err)
	}
	if len(bridges) == 0 {
		fmt.Fprintln(out, "  none found")
		return nil
	}
	for _, b := range bridges {
		fmt.Fprintf(out, "  %s\n    %s", b, b.URL())
		if sp := b.SerialPort(); sp != "" {
			fmt.Fprintf(out, "  serial %s", sp)
		}
		fmt.Fprintln(out)
	}
	return nil
}

var checkCmd = &cobra.Command{
	Use:       "check <stability|accuracy|repeatability>",
	Short:     "Run an instrument check and summarise the spectra",
	ValidArgs: []string{"stability", "accuracy", "repeatability"},
	Args:      cobra.ExactArgs(1),
	Example: `  # Five stability frames from the default port
  ftirctl check stability

  # Accuracy check through a bridge found over mDNS
  ftirctl check accuracy --bridge auto --count 10`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	kind, err := protocol.ParseCheckKind(args[0])
	if err != nil {
		return err
	}
	chain, err := newChain()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	title := strings.ToUpper(kind.String()[:1]) + kind.String()[1:] + " Check"
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   title,
		Command: cmd.CommandPath() + " " + kind.String(),
		Params:  linkParams(),
		Steps:   []string{"Connect", "Handshake", "Start check", fmt.Sprintf("Receive %d frames", measureCount), "Stop check"},
		Tips: []string{
			"Check the instrument is powered and the cable is connected",
			"Try a lower --baud if frames never arrive",
			"Run with --log-level debug to see raw frames",
		},
		Output: cmd.OutOrStdout(),
	})

	return runner.Run(func(onStep ui.StepCallback) ([]ui.Field, error) {
		onStep(1, ui.StepRunning, "")
		l, err := connect(ctx)
		if err != nil {
			onStep(1, ui.StepFailed, "")
			return nil, err
		}
		defer l.close()
		onStep(1, ui.StepComplete, l.source)

		onStep(2, ui.StepRunning, "")
		if err := l.awaitHandshake(ctx, handshakeWait); err != nil {
			onStep(2, ui.StepFailed, "")
			return nil, err
		}
		onStep(2, ui.StepComplete, "")

		pub, err := openPublisher(natsURL, l.source)
		if err != nil {
			return nil, err
		}
		defer closePublisher(pub)

		frames := make(chan handler.Measurement, 16)
		h, err := checkHandler(kind, chain, deliver(frames, pub))
		if err != nil {
			return nil, err
		}
		l.mgr.RegisterHandler(protocol.CommandCheckResp, h)

		onStep(3, ui.StepRunning, "")
		if err := l.mgr.StartCheck(kind); err != nil {
			onStep(3, ui.StepFailed, "")
			return nil, err
		}
		onStep(3, ui.StepComplete, "")

		onStep(4, ui.StepRunning, "")
		peaks, bins, recvErr := receive(ctx, frames, measureCount, measureWait)
		if recvErr != nil {
			onStep(4, ui.StepFailed, fmt.Sprintf("%d received", len(peaks)))
		} else {
			onStep(4, ui.StepComplete, fmt.Sprintf("%d received", len(peaks)))
		}

		onStep(5, ui.StepRunning, "")
		if err := l.mgr.StopCheck(kind); err != nil {
			onStep(5, ui.StepFailed, "")
			return nil, err
		}
		onStep(5, ui.StepComplete, "")

		if recvErr != nil {
			return nil, recvErr
		}
		return summarise(peaks, bins), nil
	})
}

func linkParams() []ui.Field {
	if bridgeURL != "" {
		return []ui.Field{ui.F("Bridge", bridgeURL)}
	}
	port := portName
	if port == "" {
		port = "auto"
	}
	return []ui.Field{ui.F("Port", port), ui.F("Baud", baudRate)}
}

// deliver queues measurements for the receiving goroutine and publishes
// them. It never blocks the manager: when the queue is full the frame is
// dropped with a warning.
func deliver(frames chan<- handler.Measurement, pub *publish.NATS) handler.MeasurementFunc {
	return func(m handler.Measurement) error {
		if pub != nil {
			if err := pub.PublishMeasurement(m); err != nil {
				logging.Warn("Publish failed", zap.Error(err))
			}
		}
		select {
		case frames <- m:
		default:
			logging.Warn("Dropping measurement, receiver is behind")
		}
		return nil
	}
}

// receive collects peak data from count measurements. count 0 means until
// ctx ends. idle bounds the gap between frames.
func receive(ctx context.Context, frames <-chan handler.Measurement, count int, idle time.Duration) ([]float64, []float64, error) {
	var peaks, bins []float64
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for count == 0 || len(peaks) < count {
		select {
		case m := <-frames:
			evt := publish.NewSpectrumEvent("", m.ReceivedAt, m.Spectrum)
			if evt.PeakBin < 0 {
				continue
			}
			peaks = append(peaks, evt.PeakMagnitude)
			bins = append(bins, float64(evt.PeakBin))
			timer.Reset(idle)
		case <-ctx.Done():
			if count == 0 {
				return peaks, bins, nil
			}
			return peaks, bins, ctx.Err()
		case <-timer.C:
			return peaks, bins, fmt.Errorf("no frame for %s after %d of %d", idle, len(peaks), count)
		}
	}
	return peaks, bins, nil
}

// summarise reports mean peak position and the relative spread of the
// peak magnitude.
func summarise(peaks, bins []float64) []ui.Field {
	if len(peaks) == 0 {
		return []ui.Field{ui.F("Measurements", 0)}
	}
	meanPeak, stdPeak := stat.MeanStdDev(peaks, nil)
	meanBin := stat.Mean(bins, nil)
	fields := []ui.Field{
		ui.F("Measurements", len(peaks)),
		ui.F("Mean peak bin", fmt.Sprintf("%.2f", meanBin)),
		ui.F("Mean peak", fmt.Sprintf("%.6g", meanPeak)),
	}
	if len(peaks) > 1 && meanPeak != 0 {
		fields = append(fields, ui.F("Peak RSD", fmt.Sprintf("%.3f%%", 100*stdPeak/meanPeak)))
	}
	return fields
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Stream raw interferograms",
	Long: `Start acquisition and print each received interferogram.

The text format prints a one-line summary per frame; json prints one object
per line with every sample.`,
	Example: `  # Ten frames as JSON lines
  ftirctl collect --count 10 --format json > frames.jsonl`,
	RunE: runCollect,
}

type frameRecord struct {
	Index    int       `json:"index"`
	Received time.Time `json:"received"`
	Samples  []float64 `json:"samples"`
}

func runCollect(cmd *cobra.Command, args []string) error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("unknown format %q (text, json)", outputFormat)
	}

	ctx, cancel := signalContext()
	defer cancel()

	l, err := connect(ctx)
	if err != nil {
		return err
	}
	defer l.close()
	if err := l.awaitHandshake(ctx, handshakeWait); err != nil {
		return err
	}

	pub, err := openPublisher(natsURL, l.source)
	if err != nil {
		return err
	}
	defer closePublisher(pub)

	type frame struct {
		at      time.Time
		samples []float64
	}
	frames := make(chan frame, 16)
	h := handler.NewInterference()
	h.AddCallback(func(samples []float64) error {
		select {
		case frames <- frame{at: time.Now(), samples: samples}:
		default:
			logging.Warn("Dropping frame, writer is behind")
		}
		return nil
	})
	l.mgr.RegisterHandler(protocol.CommandCheckResp, h)

	// spectra go out from a second callback; the raw stream stays untouched
	if pub != nil {
		chain, err := newChain()
		if err != nil {
			return err
		}
		h.AddCallback(func(samples []float64) error {
			return pub.PublishMeasurement(handler.Measurement{
				Interferogram: samples,
				Spectrum:      chain.Process(samples),
				ReceivedAt:    time.Now(),
			})
		})
	}

	if err := l.mgr.StartCollect(); err != nil {
		return err
	}
	defer func() {
		if err := l.mgr.StopCollect(); err != nil {
			logging.Warn("Stop collect failed", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	timer := time.NewTimer(measureWait)
	defer timer.Stop()
	for n := 0; measureCount == 0 || n < measureCount; n++ {
		select {
		case f := <-frames:
			if err := writeFrame(out, outputFormat, frameRecord{Index: n, Received: f.at, Samples: f.samples}); err != nil {
				return err
			}
			timer.Reset(measureWait)
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return fmt.Errorf("no frame for %s after %d frames", measureWait, n)
		}
	}
	return nil
}

func writeFrame(w io.Writer, format string, rec frameRecord) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(rec)
	}
	if len(rec.Samples) == 0 {
		_, err := fmt.Fprintf(w, "frame %d: empty\n", rec.Index)
		return err
	}
	lo, hi := rec.Samples[0], rec.Samples[0]
	for _, v := range rec.Samples[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	_, err := fmt.Fprintf(w, "frame %d: %d samples  min %.4g  max %.4g\n", rec.Index, len(rec.Samples), lo, hi)
	return err
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the live spectrum",
	Long: `Open an interactive view of the link. Press s to start or stop the
check and q to quit. When stdout is not a terminal the check starts
immediately and one line is printed per measurement.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	kind, err := protocol.ParseCheckKind(monitorKind)
	if err != nil {
		return err
	}
	chain, err := newChain()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	l, err := connect(ctx)
	if err != nil {
		return err
	}
	defer l.close()
	if err := l.awaitHandshake(ctx, handshakeWait); err != nil {
		return err
	}

	pub, err := openPublisher(natsURL, l.source)
	if err != nil {
		return err
	}
	defer closePublisher(pub)

	if !ui.IsTerminal() {
		return monitorPlain(ctx, cmd.OutOrStdout(), l, kind, chain, pub)
	}

	program := ui.NewMonitorProgram(ui.MonitorConfig{
		Title:  cmd.CommandPath() + " --kind " + kind.String(),
		Source: l.source,
		Start:  func() error { return l.mgr.StartCheck(kind) },
		Stop:   func() error { return l.mgr.StopCheck(kind) },
		Status: l.status,
	}, tea.WithContext(ctx))

	h, err := checkHandler(kind, chain, func(m handler.Measurement) error {
		if pub != nil {
			if err := pub.PublishMeasurement(m); err != nil {
				program.Send(ui.ErrMsg{Err: err})
			}
		}
		program.Send(measurementMsg(m))
		return nil
	})
	if err != nil {
		return err
	}
	l.mgr.RegisterHandler(protocol.CommandCheckResp, h)

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func monitorPlain(ctx context.Context, out io.Writer, l *link, kind protocol.CheckKind, chain *processing.Chain, pub *publish.NATS) error {
	frames := make(chan handler.Measurement, 16)
	h, err := checkHandler(kind, chain, deliver(frames, pub))
	if err != nil {
		return err
	}
	l.mgr.RegisterHandler(protocol.CommandCheckResp, h)

	if err := l.mgr.StartCheck(kind); err != nil {
		return err
	}
	defer func() {
		if err := l.mgr.StopCheck(kind); err != nil {
			logging.Warn("Stop check failed", zap.Error(err))
		}
	}()

	for {
		select {
		case m := <-frames:
			fmt.Fprintln(out, ui.StatusLine(measurementMsg(m)))
		case <-ctx.Done():
			return nil
		}
	}
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode captured bytes into frames",
	Long: `Run hex-encoded bytes through the frame parser and print every frame
found. Spaces, colons and 0x prefixes are ignored, so output from most
capture tools can be pasted directly. Use - to read from stdin.`,
	Example: `  ftirctl decode "A5 5A 02 10 00 00 00 08 3F 80 00 00 C0 20 00 00 00 00 FE EF"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if text == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(data)
		}
		data, err := parseHex(text)
		if err != nil {
			return err
		}
		return decodeFrames(cmd.OutOrStdout(), data)
	},
}

// parseHex accepts hex with optional separators and 0x prefixes
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", ",", " ", ":", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

// decodeFrames prints each frame in data and any bytes left over
func decodeFrames(w io.Writer, data []byte) error {
	p := protocol.NewParser()
	p.Feed(data)

	n := 0
	for msg := range p.Parse() {
		n++
		fmt.Fprintf(w, "#%d %s\n", n, msg)
		if msg.Command != protocol.CommandCheckResp {
			continue
		}
		payload := msg.Data
		if len(payload)%4 == 1 {
			fmt.Fprintf(w, "   kind: %s\n", protocol.CheckKind(payload[0]))
			payload = payload[1:]
		}
		samples, err := protocol.DecodeFloat32s(payload)
		if err != nil {
			fmt.Fprintf(w, "   %v\n", err)
			continue
		}
		fmt.Fprintf(w, "   samples: %v\n", samples)
	}

	if n == 0 {
		fmt.Fprintln(w, "no complete frames")
	}
	if rest := p.Buffered(); rest > 0 {
		fmt.Fprintf(w, "%d trailing bytes not decoded\n", rest)
	}
	return nil
}
