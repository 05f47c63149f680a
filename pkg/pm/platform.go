package pm

import (
	"time"

	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// Platform is the chip-level hardware the scheduler drives.
type Platform interface {
	// DisableIRQ masks interrupts and returns the previous mask.
	DisableIRQ() uint32

	// RestoreIRQ restores a mask returned by DisableIRQ.
	RestoreIRQ(mask uint32)

	// Tick32k reads the free-running 32 kHz counter.
	Tick32k() uint32

	// SysTick reads the free-running system timer.
	SysTick() uint32

	// Sleep enters mode until the system tick reaches deadline or a pad
	// fires. It returns after wake.
	Sleep(mode SleepMode, src WakeupSource, deadline uint32)

	// LongSleep enters mode for ticks of the 32 kHz clock.
	LongSleep(mode SleepMode, src WakeupSource, ticks uint32)

	// MCUStatus reports why the MCU is running.
	MCUStatus() MCUStatus

	// ReadPin reads the current level of a pad (true is high).
	ReadPin(pin PinID) bool

	// ConfigurePadWakeup enables or disables a pad wakeup at level.
	ConfigurePadWakeup(pin PinID, level WakeupLevel, enable bool)
}

// Radio is the transceiver front end.
type Radio interface {
	PowerDown()
	Restore(channel uint8)
}

// Stack is the part of the network stack the scheduler consults.
type Stack interface {
	// Busy reports pending stack work that must not be interrupted.
	Busy() bool

	// TaskDone reports whether the last task cycle drained.
	TaskDone() bool

	// OutgoingFrameCounter is the current security frame counter.
	OutgoingFrameCounter() uint32

	// CurrentChannel is the channel to restore after wake.
	CurrentChannel() uint8

	PauseSecondClock()
	ResumeSecondClock()
}

// TimerQueue is the subset of the timer queue the scheduler uses.
type TimerQueue interface {
	NearestPending() (timerqueue.Pending, bool)
	AdvanceBaseline(elapsed time.Duration)
	SetReferenceTick(tick uint32)
}

// FrameCounterStore persists the frame counter across deep sleep.
type FrameCounterStore interface {
	Save(v uint32)
	Valid() bool
	Take() (uint32, bool)
}

// irqGuard restores the interrupt mask it captured.
type irqGuard struct {
	p        Platform
	mask     uint32
	released bool
}

func lockIRQ(p Platform) *irqGuard {
	return &irqGuard{p: p, mask: p.DisableIRQ()}
}

// Release restores interrupts. Later calls are no-ops.
func (g *irqGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.p.RestoreIRQ(g.mask)
}

// Compile-time interface satisfaction check.
var _ TimerQueue = (*timerqueue.Queue)(nil)
