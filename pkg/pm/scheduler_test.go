package pm

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/nvstore"
	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// trace collects collaborator calls in order.
type trace struct {
	calls []string
}

func (t *trace) add(s string) { t.calls = append(t.calls, s) }

type sleepCall struct {
	mode     SleepMode
	src      WakeupSource
	deadline uint32
	ticks    uint32
	long     bool
}

type fakePlatform struct {
	tr *trace

	tick32k uint32
	sysTick uint32

	// Ticks the 32k counter advances per sleep.
	sleepTicks uint32

	disabled int
	restored int
	sleeps   []sleepCall
	status   MCUStatus
	pins     map[PinID]bool
	pads     map[PinID]WakeupLevel
}

func newFakePlatform(tr *trace) *fakePlatform {
	return &fakePlatform{
		tr:   tr,
		pins: make(map[PinID]bool),
		pads: make(map[PinID]WakeupLevel),
	}
}

func (p *fakePlatform) DisableIRQ() uint32   { p.disabled++; return 0xA5 }
func (p *fakePlatform) RestoreIRQ(m uint32)  { p.restored++ }
func (p *fakePlatform) Tick32k() uint32      { return p.tick32k }
func (p *fakePlatform) SysTick() uint32      { return p.sysTick }
func (p *fakePlatform) MCUStatus() MCUStatus { return p.status }
func (p *fakePlatform) ReadPin(pin PinID) bool {
	return p.pins[pin]
}

func (p *fakePlatform) Sleep(mode SleepMode, src WakeupSource, deadline uint32) {
	p.tr.add("sleep")
	p.sleeps = append(p.sleeps, sleepCall{mode: mode, src: src, deadline: deadline})
	p.tick32k += p.sleepTicks
}

func (p *fakePlatform) LongSleep(mode SleepMode, src WakeupSource, ticks uint32) {
	p.tr.add("long_sleep")
	p.sleeps = append(p.sleeps, sleepCall{mode: mode, src: src, ticks: ticks, long: true})
	p.tick32k += p.sleepTicks
}

func (p *fakePlatform) ConfigurePadWakeup(pin PinID, level WakeupLevel, enable bool) {
	if enable {
		p.pads[pin] = level
	} else {
		delete(p.pads, pin)
	}
}

type fakeRadio struct{ tr *trace }

func (r fakeRadio) PowerDown()            { r.tr.add("radio_down") }
func (r fakeRadio) Restore(channel uint8) { r.tr.add("radio_restore") }

type fakeStack struct {
	tr       *trace
	busy     bool
	notDone  bool
	counter  uint32
	channel  uint8
	restored []uint8
}

func (s *fakeStack) Busy() bool                   { return s.busy }
func (s *fakeStack) TaskDone() bool               { return !s.notDone }
func (s *fakeStack) OutgoingFrameCounter() uint32 { return s.counter }
func (s *fakeStack) CurrentChannel() uint8        { return s.channel }
func (s *fakeStack) PauseSecondClock()            { s.tr.add("pause") }
func (s *fakeStack) ResumeSecondClock()           { s.tr.add("resume") }

// tracingStore records Save calls in the shared trace.
type tracingStore struct {
	*nvstore.FrameCounter
	tr *trace
}

func (s tracingStore) Save(v uint32) {
	s.tr.add("persist")
	s.FrameCounter.Save(v)
}

type fixture struct {
	tr       *trace
	platform *fakePlatform
	stack    *fakeStack
	queue    *timerqueue.Queue
	regs     *nvstore.MemoryRegisters
	sched    *Scheduler
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	tr := &trace{}
	p := newFakePlatform(tr)
	st := &fakeStack{tr: tr, channel: 15}
	q := timerqueue.New(p, 16)
	regs := &nvstore.MemoryRegisters{}
	fc := nvstore.NewFrameCounter(regs, nvstore.DefaultLayout)

	cfg := Config{
		Platform:      p,
		Radio:         fakeRadio{tr: tr},
		Stack:         st,
		Timers:        q,
		FrameCounter:  tracingStore{FrameCounter: fc, tr: tr},
		Source:        lptick.Crystal{SysTicksPerUs: 16},
		SysTicksPerUs: 16,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	s, err := NewScheduler(cfg, nil)
	require.NoError(t, err)
	return &fixture{tr: tr, platform: p, stack: st, queue: q, regs: regs, sched: s}
}

func noop(any) int { return -1 }

func TestNewSchedulerRequiresCollaborators(t *testing.T) {
	tr := &trace{}
	full := Config{
		Platform:     newFakePlatform(tr),
		Radio:        fakeRadio{tr: tr},
		Stack:        &fakeStack{tr: tr},
		Timers:       timerqueue.New(newFakePlatform(tr), 16),
		FrameCounter: nvstore.NewFrameCounter(&nvstore.MemoryRegisters{}, nvstore.DefaultLayout),
		Source:       lptick.RC{SysTicksPerUs: 16},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"platform", func(c *Config) { c.Platform = nil }, ErrNoPlatform},
		{"radio", func(c *Config) { c.Radio = nil }, ErrNoRadio},
		{"stack", func(c *Config) { c.Stack = nil }, ErrNoStack},
		{"timers", func(c *Config) { c.Timers = nil }, ErrNoTimerQueue},
		{"frame counter", func(c *Config) { c.FrameCounter = nil }, ErrNoFrameCounter},
		{"source", func(c *Config) { c.Source = nil }, ErrNoTickSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mutate(&cfg)
			_, err := NewScheduler(cfg, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s, err := NewScheduler(full, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.State())
}

func TestEvaluateAndSleepPreconditions(t *testing.T) {
	t.Run("StackBusy", func(t *testing.T) {
		f := newFixture(t)
		f.queue.Schedule(noop, nil, time.Second)
		f.stack.busy = true

		assert.Equal(t, OutcomeBusy, f.sched.EvaluateAndSleep())
		assert.Zero(t, f.platform.disabled, "interrupts must not be touched")
		assert.Empty(t, f.tr.calls)
	})

	t.Run("TaskNotDrained", func(t *testing.T) {
		f := newFixture(t)
		f.queue.Schedule(noop, nil, time.Second)
		f.stack.notDone = true

		assert.Equal(t, OutcomeBusy, f.sched.EvaluateAndSleep())
		assert.Zero(t, f.platform.disabled)
	})

	t.Run("NoTimer", func(t *testing.T) {
		f := newFixture(t)

		assert.Equal(t, OutcomeNoTimer, f.sched.EvaluateAndSleep())
		assert.Equal(t, 1, f.platform.disabled)
		assert.Equal(t, 1, f.platform.restored)
		assert.Empty(t, f.platform.sleeps)
	})

	t.Run("TimerDue", func(t *testing.T) {
		f := newFixture(t)
		f.queue.Schedule(noop, nil, 0)

		assert.Equal(t, OutcomeDue, f.sched.EvaluateAndSleep())
		assert.Equal(t, 1, f.platform.restored)
		assert.Empty(t, f.platform.sleeps)
	})
}

func TestEvaluateAndSleepShort(t *testing.T) {
	f := newFixture(t)
	f.platform.sysTick = 1000
	f.platform.sleepTicks = 5 * lptick.CrystalHz
	h := f.queue.Schedule(noop, nil, 5*time.Second)

	got := f.sched.EvaluateAndSleep()

	assert.Equal(t, OutcomeSlept, got)
	require.Len(t, f.platform.sleeps, 1)
	assert.Equal(t, sleepCall{
		mode:     ModeDeepWithRetention,
		src:      WakeupTimer,
		deadline: 1000 + 5000*16000,
	}, f.platform.sleeps[0])

	want := []string{"radio_down", "pause", "sleep", "resume", "radio_restore"}
	if diff := cmp.Diff(want, f.tr.calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, f.platform.disabled)
	assert.Equal(t, 1, f.platform.restored)

	next, ok := f.queue.NearestPending()
	require.True(t, ok)
	assert.Equal(t, h, next.Handle)
	assert.Equal(t, time.Duration(0), next.Remaining)
}

func TestEvaluateAndSleepLong(t *testing.T) {
	f := newFixture(t)
	f.queue.Schedule(noop, nil, 200*time.Second)

	got := f.sched.EvaluateAndSleep()

	assert.Equal(t, OutcomeLongSlept, got)
	require.Len(t, f.platform.sleeps, 1)
	assert.True(t, f.platform.sleeps[0].long)
	assert.Equal(t, uint32(200*lptick.CrystalHz), f.platform.sleeps[0].ticks)
	assert.Equal(t, ModeDeepWithRetention, f.platform.sleeps[0].mode)
}

func TestEvaluateAndSleepCustomCeiling(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ShortSleepMax = 2 * time.Second })
	f.queue.Schedule(noop, nil, 3*time.Second)

	assert.Equal(t, OutcomeLongSlept, f.sched.EvaluateAndSleep())
}

func TestShortSleepCeilingClampedToTickRange(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ShortSleepMax = time.Hour })
	assert.Equal(t, 134217*time.Millisecond, f.sched.shortSleepMax)

	f.queue.Schedule(noop, nil, 200*time.Second)

	assert.Equal(t, OutcomeLongSlept, f.sched.EvaluateAndSleep())
	require.Len(t, f.platform.sleeps, 1)
	assert.True(t, f.platform.sleeps[0].long)
}

func TestEvaluateAndSleepWithPadWakeup(t *testing.T) {
	f := newFixture(t)
	f.sched.ArmPinWakeupSources([]PinConfig{{Pin: 3, Level: LevelLow}})
	f.queue.Schedule(noop, nil, time.Second)

	f.sched.EvaluateAndSleep()

	require.Len(t, f.platform.sleeps, 1)
	assert.Equal(t, WakeupPad|WakeupTimer, f.platform.sleeps[0].src)
}

func TestDeepSleepOnIdle(t *testing.T) {
	t.Run("PinsArmed", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.DeepSleepOnIdle = true })
		f.stack.counter = 0xCAFE
		f.sched.ArmPinWakeupSources([]PinConfig{{Pin: 3, Level: LevelLow}})

		assert.Equal(t, OutcomePadSlept, f.sched.EvaluateAndSleep())
		require.Len(t, f.platform.sleeps, 1)
		assert.Equal(t, ModeDeepSleep, f.platform.sleeps[0].mode)
		assert.Equal(t, WakeupPad, f.platform.sleeps[0].src)
		assert.Equal(t, "persist", f.tr.calls[0])
		assert.Equal(t, 1, f.platform.restored)
	})

	t.Run("NoPins", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.DeepSleepOnIdle = true })

		assert.Equal(t, OutcomeNoTimer, f.sched.EvaluateAndSleep())
		assert.Empty(t, f.platform.sleeps)
	})
}

func TestSleepUnsupportedMode(t *testing.T) {
	f := newFixture(t)

	err := f.sched.Sleep(SleepMode(9), WakeupTimer, time.Second)
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	err = f.sched.LongSleep(ModeSuspend, WakeupTimer, time.Hour)
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	assert.Empty(t, f.platform.sleeps)
	assert.Zero(t, f.platform.disabled)
	assert.Empty(t, f.tr.calls)
}

func TestSleepSuspend(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.sched.Sleep(ModeSuspend, WakeupTimer, 10*time.Millisecond))
	require.Len(t, f.platform.sleeps, 1)
	assert.Equal(t, ModeSuspend, f.platform.sleeps[0].mode)
	assert.NotContains(t, f.tr.calls, "persist")
	assert.Equal(t, f.platform.disabled, f.platform.restored)
}

func TestReconcileElapsedTime(t *testing.T) {
	f := newFixture(t)
	f.queue.Schedule(noop, nil, time.Second)
	f.platform.sysTick = 50000

	// 4100 crystal ticks: 125 ms plus 4 ticks (122 us).
	f.platform.tick32k = 4100

	got := f.sched.ReconcileElapsedTime()

	assert.Equal(t, Elapsed{Ticks: 4100, Ms: 125, RemSysTicks: 122 * 16}, got)
	assert.Equal(t, uint32(50000-122*16), f.queue.ReferenceTick())
	next, _ := f.queue.NearestPending()
	assert.Equal(t, 875*time.Millisecond, next.Remaining)

	t.Run("SecondCallAddsNothing", func(t *testing.T) {
		got := f.sched.ReconcileElapsedTime()

		assert.Equal(t, Elapsed{}, got)
		next, _ := f.queue.NearestPending()
		assert.Equal(t, 875*time.Millisecond, next.Remaining)
		assert.Equal(t, uint32(50000-122*16), f.queue.ReferenceTick())
	})
}

func TestReconcileElapsedTimeWraparound(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Source = lptick.RC{SysTicksPerUs: 16} })
	f.queue.Schedule(noop, nil, time.Second)
	f.sched.State().PrevSleepTick = 0xFFFFFF00

	// 0x100 + 0x40 ticks across the wrap: 320 RC ticks == 10 ms.
	f.platform.tick32k = 0x40

	got := f.sched.ReconcileElapsedTime()

	assert.Equal(t, uint32(320), got.Ticks)
	assert.Equal(t, uint32(10), got.Ms)
	assert.Zero(t, got.RemSysTicks)
	next, _ := f.queue.NearestPending()
	assert.Equal(t, 990*time.Millisecond, next.Remaining)
}

func TestReconcileAfterRetainedState(t *testing.T) {
	tr := &trace{}
	p := newFakePlatform(tr)
	p.tick32k = 32000 * 2
	q := timerqueue.New(p, 16)
	q.Schedule(noop, nil, 5*time.Second)

	state := &State{PrevSleepTick: 32000}
	s, err := NewScheduler(Config{
		Platform:     p,
		Radio:        fakeRadio{tr: tr},
		Stack:        &fakeStack{tr: tr},
		Timers:       q,
		FrameCounter: nvstore.NewFrameCounter(&nvstore.MemoryRegisters{}, nvstore.DefaultLayout),
		Source:       lptick.RC{SysTicksPerUs: 16},
	}, state)
	require.NoError(t, err)

	s.ReconcileElapsedTime()

	next, _ := q.NearestPending()
	assert.Equal(t, 4*time.Second, next.Remaining)
	assert.Same(t, state, s.State())
}

func TestOutcomeSlept(t *testing.T) {
	assert.False(t, OutcomeBusy.Slept())
	assert.False(t, OutcomeDue.Slept())
	assert.True(t, OutcomeSlept.Slept())
	assert.True(t, OutcomePadSlept.Slept())
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "DEEP_RETENTION", ModeDeepWithRetention.String())
	assert.Equal(t, "UNKNOWN", SleepMode(7).String())
	assert.Equal(t, "PAD|TIMER", (WakeupPad | WakeupTimer).String())
	assert.Equal(t, "NONE", WakeupSource(0).String())
	assert.Equal(t, "DEEP_BACK", MCUStatusDeepBack.String())
	assert.Equal(t, "LONG_SLEPT", OutcomeLongSlept.String())
	assert.Equal(t, "HIGH", LevelHigh.String())
}
