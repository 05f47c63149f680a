package sim

import (
	"sort"
	"time"

	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/pm"
)

type pinEvent struct {
	at    time.Duration
	pin   pm.PinID
	level bool
}

type padWakeup struct {
	level   pm.WakeupLevel
	enabled bool
}

// Platform is a simulated chip.
type Platform struct {
	hz         uint64
	ticksPerUs uint64

	now      time.Duration
	asleep   time.Duration
	sleeps   int
	irqDepth int

	status       pm.MCUStatus
	nextStatus   pm.MCUStatus
	resetPending bool

	// Set while parked in a pad-only sleep with no pending pin change.
	halted     bool
	haltedMode pm.SleepMode

	pins   map[pm.PinID]bool
	pads   map[pm.PinID]padWakeup
	events []pinEvent
}

// NewPlatform creates a powered-on platform whose 32 kHz counter runs at
// the rate of source.
func NewPlatform(source lptick.Source, sysTicksPerUs uint32) *Platform {
	if sysTicksPerUs == 0 {
		sysTicksPerUs = lptick.DefaultSysTicksPerUs
	}
	return &Platform{
		hz:         uint64(source.Hz()),
		ticksPerUs: uint64(sysTicksPerUs),
		status:     pm.MCUStatusPowerOn,
		pins:       make(map[pm.PinID]bool),
		pads:       make(map[pm.PinID]padWakeup),
	}
}

// DisableIRQ increments the interrupt mask depth.
func (p *Platform) DisableIRQ() uint32 {
	p.irqDepth++
	return uint32(p.irqDepth)
}

// RestoreIRQ decrements the interrupt mask depth.
func (p *Platform) RestoreIRQ(uint32) {
	if p.irqDepth > 0 {
		p.irqDepth--
	}
}

// IRQMasked reports whether interrupts are currently masked.
func (p *Platform) IRQMasked() bool { return p.irqDepth > 0 }

// Tick32k returns the 32 kHz counter.
func (p *Platform) Tick32k() uint32 {
	ns := uint64(p.now)
	sec, frac := ns/uint64(time.Second), ns%uint64(time.Second)
	return uint32(sec*p.hz + frac*p.hz/uint64(time.Second))
}

// SysTick returns the system timer.
func (p *Platform) SysTick() uint32 {
	return uint32(uint64(p.now/time.Microsecond) * p.ticksPerUs)
}

// Sleep sleeps until the system timer reaches deadline or an armed pad
// fires. Without a timer source it sleeps until a pad fires; with no pin
// change pending the platform halts until Advance or SetPin wakes it. A
// platform with a reset pending does not sleep.
func (p *Platform) Sleep(mode pm.SleepMode, src pm.WakeupSource, deadline uint32) {
	if src&pm.WakeupTimer == 0 {
		p.sleepUntilPad(mode)
		return
	}
	delta := deadline - p.SysTick()
	d := time.Duration(uint64(delta)/p.ticksPerUs) * time.Microsecond
	p.sleepFor(mode, src, d)
}

// LongSleep sleeps for ticks of the 32 kHz counter or until an armed pad
// fires.
func (p *Platform) LongSleep(mode pm.SleepMode, src pm.WakeupSource, ticks uint32) {
	if src&pm.WakeupTimer == 0 {
		p.sleepUntilPad(mode)
		return
	}
	d := time.Duration(uint64(ticks) * uint64(time.Second) / p.hz)
	p.sleepFor(mode, src, d)
}

func (p *Platform) sleepFor(mode pm.SleepMode, src pm.WakeupSource, d time.Duration) {
	if p.resetPending {
		return
	}
	p.sleeps++
	start := p.now
	end := p.now + d
	if src&pm.WakeupPad != 0 {
		if at, ok := p.nextPadWake(end); ok {
			end = at
		}
	}
	p.applyUntil(end)
	p.now = end
	p.asleep += end - start
	p.woke(mode)
}

func (p *Platform) sleepUntilPad(mode pm.SleepMode) {
	if p.resetPending {
		return
	}
	p.sleeps++
	at, ok := p.nextPadWake(-1)
	if !ok {
		p.halted = true
		p.haltedMode = mode
		return
	}
	p.asleep += at - p.now
	p.applyUntil(at)
	p.now = at
	p.woke(mode)
}

func (p *Platform) woke(mode pm.SleepMode) {
	switch mode {
	case pm.ModeDeepSleep:
		p.nextStatus = pm.MCUStatusDeepBack
		p.resetPending = true
	case pm.ModeDeepWithRetention:
		p.status = pm.MCUStatusRetentionBack
	}
}

// nextPadWake returns the first pending pin change that triggers an armed
// pad, at or before limit. A negative limit means no limit.
func (p *Platform) nextPadWake(limit time.Duration) (time.Duration, bool) {
	levels := make(map[pm.PinID]bool, len(p.pins))
	for k, v := range p.pins {
		levels[k] = v
	}
	for _, ev := range p.events {
		if limit >= 0 && ev.at > limit {
			break
		}
		changed := levels[ev.pin] != ev.level
		levels[ev.pin] = ev.level
		if changed && p.triggers(ev.pin, ev.level) {
			return ev.at, true
		}
	}
	return 0, false
}

func (p *Platform) triggers(pin pm.PinID, level bool) bool {
	pad, ok := p.pads[pin]
	if !ok || !pad.enabled {
		return false
	}
	return level == (pad.level == pm.LevelHigh)
}

func (p *Platform) applyUntil(t time.Duration) {
	i := 0
	for ; i < len(p.events) && p.events[i].at <= t; i++ {
		p.pins[p.events[i].pin] = p.events[i].level
	}
	p.events = p.events[i:]
}

// Advance charges d of awake time. Pin changes falling inside the window
// are applied; a halted platform wakes on the first one that triggers an
// armed pad.
func (p *Platform) Advance(d time.Duration) {
	end := p.now + d
	if p.halted {
		if at, ok := p.nextPadWake(end); ok {
			p.asleep += at - p.now
			p.applyUntil(at)
			p.now = at
			p.halted = false
			p.woke(p.haltedMode)
		} else {
			p.asleep += d
		}
	}
	p.applyUntil(end)
	p.now = end
}

// SetPin drives a pin immediately.
func (p *Platform) SetPin(pin pm.PinID, level bool) {
	changed := p.pins[pin] != level
	p.pins[pin] = level
	if p.halted && changed && p.triggers(pin, level) {
		p.halted = false
		p.woke(p.haltedMode)
	}
}

// SchedulePin drives a pin after d of virtual time.
func (p *Platform) SchedulePin(d time.Duration, pin pm.PinID, level bool) {
	ev := pinEvent{at: p.now + d, pin: pin, level: level}
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].at > ev.at })
	p.events = append(p.events, pinEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// ReadPin reads a pin level.
func (p *Platform) ReadPin(pin pm.PinID) bool {
	return p.pins[pin]
}

// ConfigurePadWakeup arms or disarms a pad.
func (p *Platform) ConfigurePadWakeup(pin pm.PinID, level pm.WakeupLevel, enable bool) {
	p.pads[pin] = padWakeup{level: level, enabled: enable}
}

// PadArmed returns the armed level of pin.
func (p *Platform) PadArmed(pin pm.PinID) (pm.WakeupLevel, bool) {
	pad, ok := p.pads[pin]
	return pad.level, ok && pad.enabled
}

// MCUStatus reports why the MCU is running.
func (p *Platform) MCUStatus() pm.MCUStatus { return p.status }

// Reset requests a reboot that comes back with status.
func (p *Platform) Reset(status pm.MCUStatus) {
	p.nextStatus = status
	p.resetPending = true
}

// TakeReset reports and clears a pending reset. On reset the MCU status
// switches to the wake reason and the pads are disarmed.
func (p *Platform) TakeReset() bool {
	if !p.resetPending {
		return false
	}
	p.resetPending = false
	p.status = p.nextStatus
	p.irqDepth = 0
	p.pads = make(map[pm.PinID]padWakeup)
	return true
}

// Halted reports whether the platform is parked in a pad-only sleep.
func (p *Platform) Halted() bool { return p.halted }

// Now returns the virtual time since power-on.
func (p *Platform) Now() time.Duration { return p.now }

// Asleep returns the total virtual time spent asleep.
func (p *Platform) Asleep() time.Duration { return p.asleep }

// Sleeps returns the number of sleep entries.
func (p *Platform) Sleeps() int { return p.sleeps }

var _ pm.Platform = (*Platform)(nil)
