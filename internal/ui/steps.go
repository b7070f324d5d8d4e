package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

func (s StepStatus) done() bool {
	return s == StepComplete || s == StepSkipped
}

// Step is one stage of an instrument operation such as "Handshake" or
// "Collect 10 frames".
type Step struct {
	Name    string
	Status  StepStatus
	Message string
}

// Steps tracks a fixed list of named steps and renders them with a bar.
type Steps struct {
	items []Step
	bar   progress.Model
}

// NewSteps creates a step list with every step pending.
func NewSteps(names ...string) *Steps {
	items := make([]Step, len(names))
	for i, name := range names {
		items[i] = Step{Name: name}
	}
	return &Steps{
		items: items,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Len returns the number of steps.
func (s *Steps) Len() int {
	return len(s.items)
}

// Step returns step n (1-based). Out of range returns the zero Step.
func (s *Steps) Step(n int) Step {
	if n < 1 || n > len(s.items) {
		return Step{}
	}
	return s.items[n-1]
}

// Update sets the status and message of step n (1-based). Out of range
// numbers are ignored.
func (s *Steps) Update(n int, status StepStatus, message string) {
	if n < 1 || n > len(s.items) {
		return
	}
	s.items[n-1].Status = status
	s.items[n-1].Message = message
}

// Percent returns the fraction of steps completed or skipped.
func (s *Steps) Percent() float64 {
	if len(s.items) == 0 {
		return 1
	}
	done := 0
	for _, st := range s.items {
		if st.Status.done() {
			done++
		}
	}
	return float64(done) / float64(len(s.items))
}

// Render returns the bar followed by the step list
func (s *Steps) Render() string {
	lines := []string{
		lipgloss.NewStyle().PaddingLeft(2).Render(
			fmt.Sprintf("%s  %3.0f%%", s.bar.ViewAs(s.Percent()), s.Percent()*100)),
		"",
	}
	for i := range s.items {
		lines = append(lines, s.RenderLine(i+1))
	}
	return strings.Join(lines, "\n")
}

// RenderLine renders step n as "[n/total] name   marker (message)".
func (s *Steps) RenderLine(n int) string {
	step := s.Step(n)

	var marker string
	var style lipgloss.Style
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = "-", StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", n, len(s.items))
	b.WriteString(style.Render(step.Name))

	pad := 40 - lipgloss.Width(step.Name)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// StepCallback is how an operation reports progress on step n.
type StepCallback func(n int, status StepStatus, message string)
