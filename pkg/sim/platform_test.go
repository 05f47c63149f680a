package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/pm"
)

func newTestPlatform(t *testing.T, kind lptick.Kind) *Platform {
	t.Helper()
	source, err := lptick.New(kind, 16)
	require.NoError(t, err)
	return NewPlatform(source, 16)
}

func TestPlatformCounters(t *testing.T) {
	tests := []struct {
		name  string
		kind  lptick.Kind
		after time.Duration
		tick  uint32
		sys   uint32
	}{
		{"crystal one second", lptick.KindCrystal, time.Second, 32768, 16_000_000},
		{"rc one second", lptick.KindRC, time.Second, 32000, 16_000_000},
		{"crystal 125ms", lptick.KindCrystal, 125 * time.Millisecond, 4096, 2_000_000},
		{"rc 1ms", lptick.KindRC, time.Millisecond, 32, 16_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlatform(t, tt.kind)
			p.Advance(tt.after)
			if got := p.Tick32k(); got != tt.tick {
				t.Errorf("Tick32k() = %d, want %d", got, tt.tick)
			}
			if got := p.SysTick(); got != tt.sys {
				t.Errorf("SysTick() = %d, want %d", got, tt.sys)
			}
		})
	}
}

func TestPlatformSysTickWraps(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	// 2^32 system ticks at 16 per microsecond.
	p.Advance(268435456 * time.Microsecond)
	assert.Equal(t, uint32(0), p.SysTick())
}

func TestPlatformSleepToDeadline(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	p.Advance(time.Second)

	p.Sleep(pm.ModeDeepWithRetention, pm.WakeupTimer, p.SysTick()+250*16000)

	assert.Equal(t, 1250*time.Millisecond, p.Now())
	assert.Equal(t, 250*time.Millisecond, p.Asleep())
	assert.Equal(t, pm.MCUStatusRetentionBack, p.MCUStatus())
	assert.False(t, p.TakeReset())
}

func TestPlatformLongSleep(t *testing.T) {
	p := newTestPlatform(t, lptick.KindRC)
	p.LongSleep(pm.ModeDeepWithRetention, pm.WakeupTimer, 32000*600)
	assert.Equal(t, 10*time.Minute, p.Now())
}

func TestPlatformDeepSleepResets(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	p.ConfigurePadWakeup(3, pm.LevelHigh, true)

	p.LongSleep(pm.ModeDeepSleep, pm.WakeupTimer, 32768)

	require.True(t, p.TakeReset())
	assert.Equal(t, pm.MCUStatusDeepBack, p.MCUStatus())
	_, armed := p.PadArmed(3)
	assert.False(t, armed, "reset disarms pads")
	assert.False(t, p.TakeReset())
}

func TestPlatformNoSleepWhileResetPending(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	p.Reset(pm.MCUStatusPowerOn)

	p.Sleep(pm.ModeDeepWithRetention, pm.WakeupTimer, p.SysTick()+16000)

	assert.Equal(t, time.Duration(0), p.Now())
	assert.Equal(t, 0, p.Sleeps())
}

func TestPlatformPadWakeup(t *testing.T) {
	t.Run("wakes early on armed edge", func(t *testing.T) {
		p := newTestPlatform(t, lptick.KindCrystal)
		p.ConfigurePadWakeup(3, pm.LevelHigh, true)
		p.SchedulePin(40*time.Millisecond, 3, true)

		p.Sleep(pm.ModeDeepWithRetention, pm.WakeupTimer|pm.WakeupPad, 100*16000)

		assert.Equal(t, 40*time.Millisecond, p.Now())
		assert.True(t, p.ReadPin(3))
	})

	t.Run("ignores edge without pad source", func(t *testing.T) {
		p := newTestPlatform(t, lptick.KindCrystal)
		p.ConfigurePadWakeup(3, pm.LevelHigh, true)
		p.SchedulePin(40*time.Millisecond, 3, true)

		p.Sleep(pm.ModeDeepWithRetention, pm.WakeupTimer, 100*16000)

		assert.Equal(t, 100*time.Millisecond, p.Now())
		assert.True(t, p.ReadPin(3), "pin change still applies")
	})

	t.Run("ignores wrong level", func(t *testing.T) {
		p := newTestPlatform(t, lptick.KindCrystal)
		p.ConfigurePadWakeup(3, pm.LevelLow, true)
		p.SchedulePin(40*time.Millisecond, 3, true)

		p.Sleep(pm.ModeDeepWithRetention, pm.WakeupTimer|pm.WakeupPad, 100*16000)

		assert.Equal(t, 100*time.Millisecond, p.Now())
	})
}

func TestPlatformPadOnlySleepHalts(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	p.ConfigurePadWakeup(3, pm.LevelHigh, true)

	p.Sleep(pm.ModeDeepSleep, pm.WakeupPad, p.SysTick())
	require.True(t, p.Halted())

	p.Advance(time.Hour)
	assert.True(t, p.Halted())
	assert.Equal(t, time.Hour, p.Asleep())

	p.SchedulePin(time.Minute, 3, true)
	p.Advance(2 * time.Minute)

	assert.False(t, p.Halted())
	assert.Equal(t, time.Hour+2*time.Minute, p.Now())
	assert.Equal(t, time.Hour+time.Minute, p.Asleep())
	require.True(t, p.TakeReset())
	assert.Equal(t, pm.MCUStatusDeepBack, p.MCUStatus())
}

func TestPlatformSetPinWakesHalted(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	p.ConfigurePadWakeup(3, pm.LevelLow, true)
	p.SetPin(3, true)

	p.Sleep(pm.ModeDeepSleep, pm.WakeupPad, 0)
	require.True(t, p.Halted())

	p.SetPin(3, false)
	assert.False(t, p.Halted())
	assert.True(t, p.TakeReset())
}

func TestPlatformIRQDepth(t *testing.T) {
	p := newTestPlatform(t, lptick.KindCrystal)
	m1 := p.DisableIRQ()
	m2 := p.DisableIRQ()
	assert.True(t, p.IRQMasked())
	p.RestoreIRQ(m2)
	assert.True(t, p.IRQMasked())
	p.RestoreIRQ(m1)
	assert.False(t, p.IRQMasked())
	p.RestoreIRQ(m1)
	assert.False(t, p.IRQMasked())
}
