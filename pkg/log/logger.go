package log

import "time"

// Logger is the interface applications implement to receive core log events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records an event. Implementations must be thread-safe.
	// Log is called from the main loop, so it should return quickly.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Emitter stamps events with a timestamp and the boot ID before handing
// them to a Logger. A nil *Emitter discards events.
type Emitter struct {
	logger   Logger
	bootID   string
	deviceID string
	now      func() time.Time
}

// NewEmitter creates an Emitter for one boot.
func NewEmitter(logger Logger, bootID string) *Emitter {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Emitter{logger: logger, bootID: bootID, now: time.Now}
}

// SetDeviceID sets the device ID attached to later events.
func (e *Emitter) SetDeviceID(id string) {
	if e != nil {
		e.deviceID = id
	}
}

// BootID returns the boot ID attached to events.
func (e *Emitter) BootID() string {
	if e == nil {
		return ""
	}
	return e.bootID
}

// Emit fills Timestamp, BootID and DeviceID (when unset) and logs the event.
func (e *Emitter) Emit(event Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if event.BootID == "" {
		event.BootID = e.bootID
	}
	if event.DeviceID == "" {
		event.DeviceID = e.deviceID
	}
	e.logger.Log(event)
}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
