// Package log provides structured event logging for the sensor core.
//
// This package defines the Logger interface and Event types for capturing
// power-management and commissioning events. It is separate from operational
// logging (slog): the event log is a machine-readable trace of every sleep
// decision, wake reconciliation, timer action and commissioning transition,
// meant for offline analysis of battery life and join behaviour.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For long simulator runs: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/lib/thsensor/device.zlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Power layer: SleepEvent (entering sleep), WakeEvent (elapsed time
//     reconciled after wake), FrameCounterEvent (persist/restore)
//   - Timer layer: TimerEvent (retry timers scheduled/cancelled/fired)
//   - Commissioning layer: StateChangeEvent
//
// Every event carries the BootID of the boot that produced it.
//
// # File Format
//
// Log files use CBOR encoding with the .zlog extension. The thsensor-log
// tool views them and prints statistics.
package log
