// Package ui provides terminal output for the ftirctl CLI.
//
// It uses Bubble Tea, Bubbles and Lipgloss in two ways:
//
//   - Runner: a header, a live step list and a result box around a
//     one-shot instrument operation such as a stability check.
//   - MonitorModel: an interactive full-screen view of a live link with
//     frame counters and a sparkline of the latest spectrum.
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:   "Stability Check",
//	    Command: "ftirctl check stability",
//	    Params:  []ui.Field{ui.F("Port", "/dev/ttyUSB0")},
//	    Steps:   []string{"Connect", "Handshake", "Collect", "Stop"},
//	})
//	err := runner.Run(func(onStep ui.StepCallback) ([]ui.Field, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// # Logging Integration
//
// zap logging is silent unless FTIRLINK_LOG_LEVEL or --log-level asks for
// it, so the styled output is not interleaved with log lines.
package ui
