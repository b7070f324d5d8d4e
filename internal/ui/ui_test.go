package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, MinTerminalWidth},
		{80, 80},
		{400, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStepsPercentAndUpdate(t *testing.T) {
	s := NewSteps("Connect", "Handshake", "Collect", "Stop")
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	if s.Percent() != 0 {
		t.Errorf("initial Percent() = %v, want 0", s.Percent())
	}

	s.Update(1, StepComplete, "")
	s.Update(2, StepSkipped, "")
	s.Update(3, StepFailed, "timeout")
	s.Update(9, StepComplete, "") // ignored

	if got := s.Percent(); got != 0.5 {
		t.Errorf("Percent() = %v, want 0.5", got)
	}
	if st := s.Step(3); st.Status != StepFailed || st.Message != "timeout" {
		t.Errorf("Step(3) = %+v", st)
	}
	if st := s.Step(0); st != (Step{}) {
		t.Errorf("Step(0) = %+v, want zero", st)
	}
	if NewSteps().Percent() != 1 {
		t.Error("empty step list should report complete")
	}
}

func TestStepsRenderLine(t *testing.T) {
	s := NewSteps("Handshake")
	s.Update(1, StepComplete, "2 retries")

	line := s.RenderLine(1)
	for _, want := range []string{"[1/1]", "Handshake", StepMarkerComplete, "(2 retries)"} {
		if !strings.Contains(line, want) {
			t.Errorf("RenderLine() = %q, missing %q", line, want)
		}
	}
	if !strings.Contains(s.Render(), "100%") {
		t.Error("Render() should show 100% when every step is complete")
	}
}

func TestRunnerSuccess(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:   "Stability Check",
		Command: "ftirctl check stability",
		Params:  []Field{F("Port", "/dev/ttyUSB0")},
		Steps:   []string{"Connect", "Collect"},
		Output:  &out,
	})

	err := r.Run(func(onStep StepCallback) ([]Field, error) {
		onStep(1, StepRunning, "")
		onStep(1, StepComplete, "")
		onStep(2, StepComplete, "3 frames")
		return []Field{F("Measurements", 3)}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"STABILITY CHECK", "/dev/ttyUSB0", "Stability Check complete", "Measurements", "Duration", "(3 frames)"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if r.Steps().Percent() != 1 {
		t.Errorf("Percent() = %v, want 1", r.Steps().Percent())
	}
}

func TestRunnerFailure(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("handshake never completed")
	r := NewRunner(RunnerConfig{
		Title:  "Collect",
		Steps:  []string{"Connect"},
		Tips:   []string{"Check the cable"},
		Output: &out,
	})

	err := r.Run(func(onStep StepCallback) ([]Field, error) {
		onStep(1, StepFailed, "")
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	text := out.String()
	for _, want := range []string{"Collect failed", "handshake never completed", "Check the cable"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderHeaderKeepsFieldOrder(t *testing.T) {
	out := RenderHeader("Bridge", "ftirctl bridge", []Field{F("Serial", "/dev/ttyACM0"), F("Listen", ":8765")}, 80)
	if strings.Index(out, "Serial") > strings.Index(out, "Listen") {
		t.Error("fields should render in the order given")
	}
}

func TestRenderSpectrum(t *testing.T) {
	tests := []struct {
		name     string
		spectrum []float64
		width    int
		want     int
	}{
		{"empty", nil, 10, 0},
		{"zero width", []float64{1, 2}, 0, 0},
		{"fewer bins than columns", []float64{0, 1, 2}, 10, 3},
		{"downsampled", make([]float64, 100), 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSpectrum(tt.spectrum, tt.width)
			if w := lipgloss.Width(got); w != tt.want {
				t.Errorf("width = %d, want %d (%q)", w, tt.want, got)
			}
		})
	}

	line := RenderSpectrum([]float64{0, 0.5, 1}, 3)
	if !strings.Contains(line, "▁") || !strings.Contains(line, "█") {
		t.Errorf("RenderSpectrum() = %q, want lowest and highest levels", line)
	}
}

func TestMonitorToggle(t *testing.T) {
	var started, stopped int
	m := NewMonitorModel(MonitorConfig{
		Source: "pipe",
		Start:  func() error { started++; return nil },
		Stop:   func() error { stopped++; return nil },
	})

	press := func(m MonitorModel, r rune) (MonitorModel, tea.Cmd) {
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		return next.(MonitorModel), cmd
	}

	m, _ = press(m, 's')
	if !m.Streaming() || started != 1 {
		t.Fatalf("after s: streaming=%v started=%d", m.Streaming(), started)
	}
	m, _ = press(m, 's')
	if m.Streaming() || stopped != 1 {
		t.Fatalf("after second s: streaming=%v stopped=%d", m.Streaming(), stopped)
	}

	m, _ = press(m, 's')
	_, cmd := press(m, 'q')
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if stopped != 2 {
		t.Errorf("quitting while streaming should stop acquisition, stopped=%d", stopped)
	}
}

func TestMonitorStartError(t *testing.T) {
	m := NewMonitorModel(MonitorConfig{
		Start: func() error { return errors.New("not connected") },
	})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = next.(MonitorModel)
	if m.Streaming() {
		t.Error("failed start should not mark the monitor as streaming")
	}
	if !strings.Contains(m.View(), "not connected") {
		t.Error("View() should show the start error")
	}
}

func TestMonitorMeasurementsAndStatus(t *testing.T) {
	m := NewMonitorModel(MonitorConfig{
		Source: "/dev/ttyUSB0",
		Status: func() Status {
			return Status{Connected: true, Handshake: "complete", Received: 7}
		},
	})

	next, cmd := m.Update(statusTickMsg(time.Now()))
	m = next.(MonitorModel)
	if cmd == nil {
		t.Error("status tick should schedule the next poll")
	}

	next, _ = m.Update(MeasurementMsg{Samples: 64, Spectrum: []float64{0, 1, 0.5}, PeakBin: 1, PeakMagnitude: 1, At: time.Now()})
	m = next.(MonitorModel)
	if m.Measurements() != 1 {
		t.Errorf("Measurements() = %d, want 1", m.Measurements())
	}

	view := m.View()
	for _, want := range []string{"/dev/ttyUSB0", "connected", "complete", "rx 7", "measurement #1", "peak bin 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := StatusLine(MeasurementMsg{Samples: 32, PeakBin: 4, PeakMagnitude: 0.5, At: at})
	want := "2024-05-01T12:00:00Z samples=32 peak_bin=4 peak=0.5"
	if got != want {
		t.Errorf("StatusLine() = %q, want %q", got, want)
	}
}
