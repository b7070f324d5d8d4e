// Package logging provides structured logging for ftirlink.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the communication core. Logging is silent by
// default so the CLI does not print diagnostics unless asked to.
//
// # Log Levels
//
//   - Debug: byte dumps, individual frames, timer activity
//   - Info: connection lifecycle, handshake completion, sent commands
//   - Warn: resynchronisation, unhandled commands, handshake retries
//   - Error: transport failures, handler and callback failures
//
// # Structured Logging
//
//	logging.Info("Handshake complete",
//	    zap.String("port", "/dev/ttyUSB0"),
//	    zap.Int("retries", 2),
//	)
//
// # Configuration
//
// Initialize once at program start, or let FTIRLINK_LOG_LEVEL decide:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned. The receive goroutines of every transport log through here.
package logging
