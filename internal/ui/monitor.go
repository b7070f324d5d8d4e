package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MeasurementMsg carries one processed measurement into the monitor.
type MeasurementMsg struct {
	Samples       int
	Spectrum      []float64
	PeakBin       int
	PeakMagnitude float64
	At            time.Time
}

// ErrMsg reports an asynchronous failure, such as a rejected start command.
type ErrMsg struct{ Err error }

// Status is a snapshot of the link polled by the monitor.
type Status struct {
	Connected     bool
	Handshake     string
	Received      uint64
	Sent          uint64
	Unhandled     uint64
	HandlerErrors uint64
}

type statusTickMsg time.Time

// MonitorConfig wires the monitor to a live link.
type MonitorConfig struct {
	Title        string // shown in the header, e.g. "stability"
	Source       string // port name or bridge URL
	Start        func() error
	Stop         func() error
	Status       func() Status
	PollInterval time.Duration
}

type monitorKeyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Toggle, k.Quit}}
}

// MonitorModel is a Bubble Tea model showing link state and the latest
// spectrum as it streams in.
type MonitorModel struct {
	cfg     MonitorConfig
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap

	status       Status
	streaming    bool
	measurements int
	last         MeasurementMsg
	err          error
	width        int
}

// NewMonitorModel creates a monitor. Nil callbacks disable the matching
// feature.
func NewMonitorModel(cfg MonitorConfig) MonitorModel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return MonitorModel{
		cfg:     cfg,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Toggle: key.NewBinding(
				key.WithKeys("s", " "),
				key.WithHelp("s", "start/stop"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		width: GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m MonitorModel) poll() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.streaming && m.cfg.Stop != nil {
				_ = m.cfg.Stop()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			return m.toggle(), nil
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)

	case statusTickMsg:
		if m.cfg.Status != nil {
			m.status = m.cfg.Status()
		}
		return m, m.poll()

	case MeasurementMsg:
		m.measurements++
		m.last = msg

	case ErrMsg:
		m.err = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MonitorModel) toggle() MonitorModel {
	fn := m.cfg.Start
	if m.streaming {
		fn = m.cfg.Stop
	}
	if fn == nil {
		return m
	}
	if err := fn(); err != nil {
		m.err = err
		return m
	}
	m.err = nil
	m.streaming = !m.streaming
	return m
}

// Measurements returns how many measurements the monitor has shown.
func (m MonitorModel) Measurements() int {
	return m.measurements
}

// Streaming reports whether the monitor has started acquisition.
func (m MonitorModel) Streaming() bool {
	return m.streaming
}

// View implements tea.Model
func (m MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(RenderHeader("FTIR Monitor", m.cfg.Title, []Field{
		F("Source", m.cfg.Source),
		F("Link", m.linkState()),
		F("Frames", fmt.Sprintf("rx %d  tx %d  unhandled %d  errors %d",
			m.status.Received, m.status.Sent, m.status.Unhandled, m.status.HandlerErrors)),
	}, m.width))
	b.WriteString("\n\n")

	switch {
	case m.measurements == 0 && m.streaming:
		b.WriteString("  " + m.spinner.View() + " waiting for data...")
	case m.measurements == 0:
		b.WriteString(StepPendingStyle.Render("  press s to start acquisition"))
	default:
		fmt.Fprintf(&b, "  measurement #%d  %d samples  peak bin %d (%.4g)  %s\n\n",
			m.measurements, m.last.Samples, m.last.PeakBin, m.last.PeakMagnitude,
			m.last.At.Format("15:04:05.000"))
		b.WriteString("  " + RenderSpectrum(m.last.Spectrum, m.width-4))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n" + ErrorMessageStyle.Render("  "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + HelpStyle.Render(m.help.View(m.keys)) + "\n")
	return b.String()
}

func (m MonitorModel) linkState() string {
	if !m.status.Connected {
		return ErrorMessageStyle.Render("disconnected")
	}
	state := StepCompleteStyle.Render("connected")
	if m.status.Handshake != "" {
		state += "  handshake " + m.status.Handshake
	}
	if m.streaming {
		state += "  " + StepRunningStyle.Render("streaming")
	}
	return state
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// RenderSpectrum draws magnitudes as a one-line sparkline of at most width
// columns. Each column shows the largest bin it covers, scaled to the
// overall maximum.
func RenderSpectrum(spectrum []float64, width int) string {
	if len(spectrum) == 0 || width <= 0 {
		return ""
	}
	cols := width
	if len(spectrum) < cols {
		cols = len(spectrum)
	}

	peaks := make([]float64, cols)
	var maxVal float64
	for i, v := range spectrum {
		c := i * cols / len(spectrum)
		if v > peaks[c] {
			peaks[c] = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	out := make([]rune, cols)
	top := len(sparkLevels) - 1
	for i, v := range peaks {
		level := 0
		if maxVal > 0 {
			level = int(v / maxVal * float64(top))
		}
		out[i] = sparkLevels[level]
	}
	return SpectrumStyle.Render(string(out))
}

// NewMonitorProgram wraps the model in a full-screen program. Feed it
// measurements with Program.Send.
func NewMonitorProgram(cfg MonitorConfig, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(NewMonitorModel(cfg), opts...)
}

var _ tea.Model = MonitorModel{}

// StatusLine is the compact form used when stdout is not a terminal.
func StatusLine(msg MeasurementMsg) string {
	return fmt.Sprintf("%s samples=%d peak_bin=%d peak=%.6g",
		msg.At.Format(time.RFC3339Nano), msg.Samples, msg.PeakBin, msg.PeakMagnitude)
}
