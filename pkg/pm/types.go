package pm

import (
	"errors"
	"strings"
)

// Scheduler errors.
var (
	// ErrUnsupportedMode is returned for a sleep mode the primitive does not
	// accept. The call has no side effects.
	ErrUnsupportedMode = errors.New("unsupported sleep mode")
)

// SleepMode selects how much of the chip stays powered.
type SleepMode uint8

const (
	// ModeSuspend halts the CPU with SRAM and peripherals powered.
	ModeSuspend SleepMode = iota

	// ModeDeepSleep powers everything down; wake is a reset.
	ModeDeepSleep

	// ModeDeepWithRetention powers down but keeps SRAM contents.
	ModeDeepWithRetention
)

// String returns the mode name.
func (m SleepMode) String() string {
	switch m {
	case ModeSuspend:
		return "SUSPEND"
	case ModeDeepSleep:
		return "DEEPSLEEP"
	case ModeDeepWithRetention:
		return "DEEP_RETENTION"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether m is a known mode.
func (m SleepMode) Valid() bool {
	return m <= ModeDeepWithRetention
}

// WakeupSource is a bit mask of armed wake sources.
type WakeupSource uint8

const (
	// WakeupPad wakes on a configured pin level.
	WakeupPad WakeupSource = 1 << iota

	// WakeupTimer wakes at the sleep deadline.
	WakeupTimer
)

// String returns the armed sources joined by "|".
func (w WakeupSource) String() string {
	var parts []string
	if w&WakeupPad != 0 {
		parts = append(parts, "PAD")
	}
	if w&WakeupTimer != 0 {
		parts = append(parts, "TIMER")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// WakeupLevel is the pin level that triggers a wake.
type WakeupLevel uint8

const (
	// LevelLow triggers when the pin reads low.
	LevelLow WakeupLevel = iota

	// LevelHigh triggers when the pin reads high.
	LevelHigh
)

// String returns "LOW" or "HIGH".
func (l WakeupLevel) String() string {
	if l == LevelHigh {
		return "HIGH"
	}
	return "LOW"
}

func (l WakeupLevel) opposite() WakeupLevel {
	if l == LevelHigh {
		return LevelLow
	}
	return LevelHigh
}

// PinID identifies a GPIO pad.
type PinID uint16

// PinConfig is one wake pin and its current trigger level.
type PinConfig struct {
	Pin   PinID
	Level WakeupLevel
}

// MCUStatus is the reason the MCU is running.
type MCUStatus uint8

const (
	// MCUStatusPowerOn is a cold boot or external reset.
	MCUStatusPowerOn MCUStatus = iota

	// MCUStatusRetentionBack is a wake from deep sleep with retention.
	MCUStatusRetentionBack

	// MCUStatusDeepBack is a wake from deep sleep without retention.
	MCUStatusDeepBack
)

// String returns the status name.
func (s MCUStatus) String() string {
	switch s {
	case MCUStatusPowerOn:
		return "POWER_ON"
	case MCUStatusRetentionBack:
		return "RETENTION_BACK"
	case MCUStatusDeepBack:
		return "DEEP_BACK"
	default:
		return "UNKNOWN"
	}
}

// Outcome reports what one EvaluateAndSleep call did.
type Outcome uint8

const (
	// OutcomeBusy means the stack had pending work.
	OutcomeBusy Outcome = iota

	// OutcomeNoTimer means no timer was pending.
	OutcomeNoTimer

	// OutcomeDue means the nearest timer was already due.
	OutcomeDue

	// OutcomeSlept means the device slept and woke.
	OutcomeSlept

	// OutcomeLongSlept means the long-sleep primitive was used.
	OutcomeLongSlept

	// OutcomePadSlept means a pad-only deep sleep was entered.
	OutcomePadSlept
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeBusy:
		return "BUSY"
	case OutcomeNoTimer:
		return "NO_TIMER"
	case OutcomeDue:
		return "DUE"
	case OutcomeSlept:
		return "SLEPT"
	case OutcomeLongSlept:
		return "LONG_SLEPT"
	case OutcomePadSlept:
		return "PAD_SLEPT"
	default:
		return "UNKNOWN"
	}
}

// Slept reports whether the device entered a sleep mode.
func (o Outcome) Slept() bool {
	return o >= OutcomeSlept
}

// State is the scheduler state that survives retention sleep.
type State struct {
	// PrevSleepTick is the 32 kHz tick captured at the last sleep entry
	// or reconciliation.
	PrevSleepTick uint32
}

// Elapsed is the result of one reconciliation.
type Elapsed struct {
	// Ticks is the number of 32 kHz ticks consumed.
	Ticks uint32

	// Ms is the whole milliseconds fed to the timer queue.
	Ms uint32

	// RemSysTicks is the sub-millisecond remainder in system ticks.
	RemSysTicks uint32
}
