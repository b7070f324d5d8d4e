package ui

import (
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes an instrument operation for display.
type RunnerConfig struct {
	Title   string  // e.g. "Stability Check"
	Command string  // e.g. "ftirctl check stability"
	Params  []Field // shown in the header
	Steps   []string
	Tips    []string // troubleshooting hints shown on failure
	Output  io.Writer
}

// Runner prints a header, live step updates and a result box around an
// operation.
type Runner struct {
	config  RunnerConfig
	steps   *Steps
	printer *Printer
}

// Operation is the work a Runner wraps. It returns extra result fields.
type Operation func(onStep StepCallback) ([]Field, error)

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Runner{
		config:  config,
		steps:   NewSteps(config.Steps...),
		printer: NewPrinter(config.Output),
	}
}

// Steps exposes the runner's step list.
func (r *Runner) Steps() *Steps {
	return r.steps
}

// Run executes op and prints its outcome. The operation's error is returned
// unchanged.
func (r *Runner) Run(op Operation) error {
	start := time.Now()

	r.printer.PrintHeader(r.config.Title, r.config.Command, r.config.Params...)
	r.printer.Newline()

	fields, err := op(r.onStep)
	duration := F("Duration", time.Since(start).Round(time.Millisecond))

	r.printer.Newline()
	if err != nil {
		r.printer.PrintError(r.config.Title+" failed", err, r.config.Tips...)
		return err
	}
	r.printer.PrintSuccess(r.config.Title+" complete", append(fields, duration)...)
	return nil
}

func (r *Runner) onStep(n int, status StepStatus, message string) {
	if n < 1 || n > r.steps.Len() {
		return
	}
	r.steps.Update(n, status, message)

	line := r.steps.RenderLine(n)
	switch status {
	case StepRunning:
		// overwritten by the final status line
		_, _ = fmt.Fprint(r.config.Output, line+"\r")
	default:
		_, _ = fmt.Fprintln(r.config.Output, line)
	}
}
