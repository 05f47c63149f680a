package pm

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/metrics"
)

// DefaultShortSleepMax is the longest sleep handed to the short-sleep
// primitive. Its deadline is an absolute 32-bit system tick, so at 16 ticks
// per microsecond anything past about 134 s would alias; 100 s leaves margin.
const DefaultShortSleepMax = 100 * time.Second

// Configuration errors.
var (
	ErrNoPlatform     = errors.New("pm: platform is required")
	ErrNoRadio        = errors.New("pm: radio is required")
	ErrNoStack        = errors.New("pm: stack is required")
	ErrNoTimerQueue   = errors.New("pm: timer queue is required")
	ErrNoFrameCounter = errors.New("pm: frame counter store is required")
	ErrNoTickSource   = errors.New("pm: 32k tick source is required")
)

// Config configures a Scheduler.
type Config struct {
	Platform     Platform
	Radio        Radio
	Stack        Stack
	Timers       TimerQueue
	FrameCounter FrameCounterStore

	// Source converts 32 kHz ticks. It must be the source selected at boot.
	Source lptick.Source

	// SysTicksPerUs is the system timer rate. Zero selects
	// lptick.DefaultSysTicksPerUs.
	SysTicksPerUs uint32

	// ShortSleepMax is the longest sleep served by Platform.Sleep.
	// Zero selects DefaultShortSleepMax. Values whose tick deadline would
	// pass half the 32-bit system tick range are clamped.
	ShortSleepMax time.Duration

	// DeepSleepOnIdle enters a pad-only deep sleep when no timer is
	// pending and wake pins are armed. Off by default.
	DeepSleepOnIdle bool

	// Logger is the optional operational logger.
	Logger *slog.Logger

	// Events is the optional event emitter.
	Events *log.Emitter
}

// Scheduler decides when and how the device sleeps.
type Scheduler struct {
	platform Platform
	radio    Radio
	stack    Stack
	timers   TimerQueue
	fc       FrameCounterStore
	source   lptick.Source

	ticksPerMs      uint32
	shortSleepMax   time.Duration
	deepSleepOnIdle bool
	padArmed        bool

	state *State

	logger *slog.Logger
	events *log.Emitter
}

// NewScheduler creates a scheduler over state. A nil state starts from
// zero; pass the retained State after a retention wake.
func NewScheduler(cfg Config, state *State) (*Scheduler, error) {
	switch {
	case cfg.Platform == nil:
		return nil, ErrNoPlatform
	case cfg.Radio == nil:
		return nil, ErrNoRadio
	case cfg.Stack == nil:
		return nil, ErrNoStack
	case cfg.Timers == nil:
		return nil, ErrNoTimerQueue
	case cfg.FrameCounter == nil:
		return nil, ErrNoFrameCounter
	case cfg.Source == nil:
		return nil, ErrNoTickSource
	}

	sysTicksPerUs := cfg.SysTicksPerUs
	if sysTicksPerUs == 0 {
		sysTicksPerUs = lptick.DefaultSysTicksPerUs
	}
	shortMax := cfg.ShortSleepMax
	if shortMax <= 0 {
		shortMax = DefaultShortSleepMax
	}
	// The short-sleep deadline must stay within half the system tick range.
	if limit := time.Duration(math.MaxInt32/(sysTicksPerUs*1000)) * time.Millisecond; shortMax > limit {
		shortMax = limit
	}
	if state == nil {
		state = &State{}
	}

	return &Scheduler{
		platform:        cfg.Platform,
		radio:           cfg.Radio,
		stack:           cfg.Stack,
		timers:          cfg.Timers,
		fc:              cfg.FrameCounter,
		source:          cfg.Source,
		ticksPerMs:      sysTicksPerUs * 1000,
		shortSleepMax:   shortMax,
		deepSleepOnIdle: cfg.DeepSleepOnIdle,
		state:           state,
		logger:          cfg.Logger,
		events:          cfg.Events,
	}, nil
}

// State returns the scheduler state.
func (s *Scheduler) State() *State {
	return s.state
}

// EvaluateAndSleep is called once per idle main-loop iteration.
func (s *Scheduler) EvaluateAndSleep() Outcome {
	if s.stack.Busy() || !s.stack.TaskDone() {
		metrics.RecordSleepSkip("busy")
		return OutcomeBusy
	}

	g := lockIRQ(s.platform)
	defer g.Release()

	next, ok := s.timers.NearestPending()
	if !ok {
		if s.deepSleepOnIdle && s.padArmed {
			s.debugLog("EvaluateAndSleep: no timer, pad-only deep sleep")
			s.enter(ModeDeepSleep, WakeupPad, 0, false)
			return OutcomePadSlept
		}
		metrics.RecordSleepSkip("no_timer")
		return OutcomeNoTimer
	}
	if next.Remaining < time.Millisecond {
		metrics.RecordSleepSkip("due")
		return OutcomeDue
	}

	src := WakeupTimer
	if s.padArmed {
		src |= WakeupPad
	}
	long := next.Remaining > s.shortSleepMax

	s.debugLog("EvaluateAndSleep: sleeping",
		"remaining", next.Remaining, "handle", next.Handle, "long", long)
	s.enter(ModeDeepWithRetention, src, next.Remaining, long)

	if long {
		return OutcomeLongSlept
	}
	return OutcomeSlept
}

// Sleep enters mode for d with interrupts masked, picking the long-sleep
// primitive when d exceeds the short-sleep ceiling.
func (s *Scheduler) Sleep(mode SleepMode, src WakeupSource, d time.Duration) error {
	return s.guardedEnter(mode, src, d, d > s.shortSleepMax)
}

// LongSleep enters mode for d through the long-sleep primitive. Suspend is
// not supported by the long-sleep primitive.
func (s *Scheduler) LongSleep(mode SleepMode, src WakeupSource, d time.Duration) error {
	return s.guardedEnter(mode, src, d, true)
}

func (s *Scheduler) guardedEnter(mode SleepMode, src WakeupSource, d time.Duration, long bool) error {
	if err := checkMode(mode, long); err != nil {
		return err
	}
	g := lockIRQ(s.platform)
	defer g.Release()
	return s.enter(mode, src, d, long)
}

func checkMode(mode SleepMode, long bool) error {
	if !mode.Valid() || (long && mode == ModeSuspend) {
		return ErrUnsupportedMode
	}
	return nil
}

// enter must be called with interrupts masked.
func (s *Scheduler) enter(mode SleepMode, src WakeupSource, d time.Duration, long bool) error {
	if err := checkMode(mode, long); err != nil {
		return err
	}

	var ms uint32
	if d > 0 {
		ms = uint32(d / time.Millisecond)
	}
	channel := s.stack.CurrentChannel()

	// SRAM is lost in plain deep sleep.
	if mode == ModeDeepSleep {
		s.persistFrameCounter()
	}

	s.radio.PowerDown()
	s.stack.PauseSecondClock()
	s.state.PrevSleepTick = s.platform.Tick32k()

	variant := "short"
	switch {
	case long:
		variant = "long"
	case src&WakeupTimer == 0:
		variant = "pad"
	}
	metrics.RecordSleep(mode.String(), variant, d)
	s.events.Emit(log.Event{
		Layer:    log.LayerPower,
		Category: log.CategorySleep,
		Sleep: &log.SleepEvent{
			Mode:     mode.String(),
			Wakeup:   src.String(),
			Duration: d,
			Long:     long,
		},
	})

	if long {
		s.platform.LongSleep(mode, src, s.source.Ticks(ms))
	} else {
		s.platform.Sleep(mode, src, s.platform.SysTick()+ms*s.ticksPerMs)
	}

	s.ReconcileElapsedTime()
	s.stack.ResumeSecondClock()
	s.radio.Restore(channel)
	return nil
}

// ReconcileElapsedTime feeds the 32 kHz ticks elapsed since the last sleep
// entry into the timer queue. The consumed ticks are absorbed into the
// state, so a second call with no sleep in between contributes nothing.
func (s *Scheduler) ReconcileElapsedTime() Elapsed {
	now := s.platform.Tick32k()
	ticks := lptick.Elapsed(now, s.state.PrevSleepTick)
	s.state.PrevSleepTick = now

	ms, rem := s.source.Split(ticks)
	e := Elapsed{Ticks: ticks, Ms: ms, RemSysTicks: rem}
	if ms == 0 && rem == 0 {
		return e
	}

	elapsed := time.Duration(ms) * time.Millisecond
	s.timers.AdvanceBaseline(elapsed)
	// The sub-millisecond remainder is left for the queue's next Process.
	s.timers.SetReferenceTick(s.platform.SysTick() - rem)

	metrics.RecordSlept(elapsed)
	s.events.Emit(log.Event{
		Layer:    log.LayerPower,
		Category: log.CategoryWake,
		Wake: &log.WakeEvent{
			Ticks:          ticks,
			Elapsed:        elapsed,
			RemainderTicks: rem,
			ClockSource:    s.source.Kind().String(),
		},
	})
	s.debugLog("ReconcileElapsedTime", "ticks", ticks, "ms", ms, "rem", rem)
	return e
}

func (s *Scheduler) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
