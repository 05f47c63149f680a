package log

import "time"

// Event represents a core log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// BootID identifies the boot that produced the event (UUID).
	BootID string `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// DeviceID is the IEEE address of the device, if known.
	DeviceID string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Sleep        *SleepEvent        `cbor:"10,keyasint,omitempty"`
	Wake         *WakeEvent         `cbor:"11,keyasint,omitempty"`
	FrameCounter *FrameCounterEvent `cbor:"12,keyasint,omitempty"`
	Timer        *TimerEvent        `cbor:"13,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"14,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"15,keyasint,omitempty"`
}

// Layer indicates which subsystem captured the event.
type Layer uint8

const (
	// LayerPower is the sleep scheduler.
	LayerPower Layer = 0
	// LayerTimer is the retry timer bookkeeping.
	LayerTimer Layer = 1
	// LayerCommissioning is the commissioning controller.
	LayerCommissioning Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerPower:
		return "POWER"
	case LayerTimer:
		return "TIMER"
	case LayerCommissioning:
		return "COMMISSIONING"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategorySleep indicates a sleep entry.
	CategorySleep Category = 0
	// CategoryWake indicates wake-time reconciliation.
	CategoryWake Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryTimer indicates a timer action.
	CategoryTimer Category = 3
	// CategoryPersist indicates NV frame counter activity.
	CategoryPersist Category = 4
	// CategoryError indicates an error event.
	CategoryError Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySleep:
		return "SLEEP"
	case CategoryWake:
		return "WAKE"
	case CategoryState:
		return "STATE"
	case CategoryTimer:
		return "TIMER"
	case CategoryPersist:
		return "PERSIST"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SleepEvent captures a sleep entry decision.
type SleepEvent struct {
	// Mode is the sleep mode name (SUSPEND, DEEPSLEEP, DEEP_RETENTION).
	Mode string `cbor:"1,keyasint"`

	// Wakeup lists the armed wakeup sources (e.g. "PAD|TIMER").
	Wakeup string `cbor:"2,keyasint"`

	// Duration is the requested sleep time (zero for pad-only sleep).
	Duration time.Duration `cbor:"3,keyasint,omitempty"`

	// Long is set when the long-sleep primitive was used.
	Long bool `cbor:"4,keyasint,omitempty"`
}

// WakeEvent captures the time reconciled after a wake.
type WakeEvent struct {
	// Ticks is the number of 32k ticks since sleep entry.
	Ticks uint32 `cbor:"1,keyasint"`

	// Elapsed is the whole-millisecond part fed to the timer queue.
	Elapsed time.Duration `cbor:"2,keyasint"`

	// RemainderTicks is the sub-millisecond part in system ticks.
	RemainderTicks uint32 `cbor:"3,keyasint,omitempty"`

	// ClockSource is the 32k source used for the conversion.
	ClockSource string `cbor:"4,keyasint,omitempty"`
}

// FrameCounterEvent captures a frame counter persist or restore.
type FrameCounterEvent struct {
	// Action is "persist" or "restore".
	Action string `cbor:"1,keyasint"`

	// Value is the frame counter value.
	Value uint32 `cbor:"2,keyasint"`

	// Valid is false when a restore found no valid record.
	Valid bool `cbor:"3,keyasint"`
}

// TimerEvent captures a retry timer action.
type TimerEvent struct {
	// Kind is the timer kind ("steer", "rejoin").
	Kind string `cbor:"1,keyasint"`

	// Action is "schedule", "cancel" or "fire".
	Action string `cbor:"2,keyasint"`

	// Delay is the scheduled delay (schedule only).
	Delay time.Duration `cbor:"3,keyasint,omitempty"`

	// Attempt is the retry attempt counter at the time of the action.
	Attempt uint32 `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures commissioning lifecycle changes.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change, usually the triggering status code.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
