package device_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/config"
	"github.com/thsensor/thsensor-go/pkg/device"
	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/nvstore"
	"github.com/thsensor/thsensor-go/pkg/pm"
	"github.com/thsensor/thsensor-go/pkg/sim"
)

type board struct {
	profile  *config.Config
	platform *sim.Platform
	radio    *sim.Radio
	regs     *nvstore.MemoryRegisters
	stack    *sim.Stack
	adv      *sim.Advertiser
	battery  *sim.Battery
}

func newBoard(t *testing.T) *board {
	t.Helper()
	profile := config.Default()
	profile.Device.ID = "a4c138fffe2b1c3d"
	profile.Commissioning.JitterSeed = 1

	source, err := profile.TickSource()
	require.NoError(t, err)

	return &board{
		profile:  profile,
		platform: sim.NewPlatform(source, profile.Clock.SysTicksPerUs),
		radio:    sim.NewRadio(),
		regs:     &nvstore.MemoryRegisters{},
		stack:    sim.NewStack(sim.StackConfig{}),
		adv:      &sim.Advertiser{},
		battery:  sim.NewBattery(3000),
	}
}

func (b *board) config() device.Config {
	return device.Config{
		Profile:    b.profile,
		Platform:   b.platform,
		Radio:      b.radio,
		Registers:  b.regs,
		Stack:      b.stack,
		Advertiser: b.adv,
		Battery:    b.battery,
	}
}

func (b *board) boot(t *testing.T) *device.Device {
	t.Helper()
	d, err := device.Boot(b.config())
	require.NoError(t, err)
	return d
}

func TestBootValidatesConfig(t *testing.T) {
	b := newBoard(t)

	cfg := b.config()
	cfg.Profile = nil
	_, err := device.Boot(cfg)
	assert.ErrorIs(t, err, device.ErrNoProfile)

	cfg = b.config()
	cfg.Registers = nil
	_, err = device.Boot(cfg)
	assert.ErrorIs(t, err, device.ErrNoRegisters)

	cfg = b.config()
	cfg.Stack = nil
	_, err = device.Boot(cfg)
	assert.Error(t, err)

	cfg = b.config()
	cfg.Profile.Clock.Source = "sundial"
	_, err = device.Boot(cfg)
	assert.ErrorIs(t, err, lptick.ErrUnknownKind)
}

func TestBootRestoresFrameCounterAfterDeepSleep(t *testing.T) {
	b := newBoard(t)
	nvstore.NewFrameCounter(b.regs, nvstore.DefaultLayout).Save(4242)
	b.platform.Reset(pm.MCUStatusDeepBack)
	require.True(t, b.platform.TakeReset())

	d := b.boot(t)

	v, ok := d.RestoredFrameCounter()
	assert.True(t, ok)
	assert.Equal(t, uint32(4242), v)
	assert.Equal(t, uint32(4242), b.stack.OutgoingFrameCounter())
	assert.False(t, nvstore.NewFrameCounter(b.regs, nvstore.DefaultLayout).Valid(),
		"restore must consume the record")
}

func TestBootIgnoresFrameCounterAfterPowerOn(t *testing.T) {
	b := newBoard(t)
	nvstore.NewFrameCounter(b.regs, nvstore.DefaultLayout).Save(4242)

	d := b.boot(t)

	_, ok := d.RestoredFrameCounter()
	assert.False(t, ok)
	assert.Equal(t, uint32(0), b.stack.OutgoingFrameCounter())
	assert.False(t, nvstore.NewFrameCounter(b.regs, nvstore.DefaultLayout).Valid())
}

func TestBootArmsWakePins(t *testing.T) {
	b := newBoard(t)
	b.profile.Power.WakePins = []config.Pin{{Pin: 3, Level: "low"}}

	d := b.boot(t)

	level, armed := b.platform.PadArmed(3)
	assert.True(t, armed)
	assert.Equal(t, pm.LevelLow, level)
	require.Len(t, d.WakePins(), 1)
}

func TestFirstStepStartsSteering(t *testing.T) {
	b := newBoard(t)
	d := b.boot(t)

	out, err := d.Step()
	require.NoError(t, err)

	assert.Equal(t, pm.OutcomeSlept, out, "device should sleep until the jittered steer timer")
	assert.Equal(t, commissioning.StateSteering, d.Controller().State())
	assert.NotEqual(t, 0, int(d.Controller().Context().SteerTimer))
	assert.True(t, d.Fallback().Active())
	assert.True(t, b.adv.Running())
	assert.Equal(t, "a4c138fffe2b1c3d", b.adv.Info().DeviceID)
	assert.Equal(t, 0, b.stack.Steers)
	assert.False(t, b.platform.IRQMasked())
	assert.Equal(t, pm.MCUStatusRetentionBack, b.platform.MCUStatus())
}

func TestStepJoinsAfterJitter(t *testing.T) {
	b := newBoard(t)
	d := b.boot(t)

	for i := 0; i < 20 && d.Controller().State() != commissioning.StateJoined; i++ {
		_, err := d.Step()
		require.NoError(t, err)
	}

	assert.Equal(t, commissioning.StateJoined, d.Controller().State())
	assert.Equal(t, 1, b.stack.Steers)
	assert.False(t, d.Fallback().Active())
	assert.Less(t, b.platform.Now(), commissioning.MaxJitter*time.Millisecond+time.Second)
	assert.Equal(t, 0, d.Timers().Len())
}

func TestStepHibernatesOnLowBattery(t *testing.T) {
	b := newBoard(t)
	b.profile.Power.LowBatteryMv = 2200
	b.profile.Power.LowBatterySleep = 30 * time.Minute
	b.battery.Set(2100)
	d := b.boot(t)

	out, err := d.Step()
	require.NoError(t, err)

	assert.Equal(t, pm.OutcomeLongSlept, out)
	assert.Equal(t, 1, d.Hibernations())
	assert.Equal(t, 0, b.stack.Steers)
	assert.Equal(t, commissioning.StateUninitialized, d.Controller().State(),
		"stack callbacks must not run while hibernating")
	assert.InDelta(t, float64(30*time.Minute), float64(b.platform.Now()), float64(time.Millisecond))
	assert.True(t, nvstore.NewFrameCounter(b.regs, nvstore.DefaultLayout).Valid())
	assert.True(t, b.platform.TakeReset())
	assert.Equal(t, pm.MCUStatusDeepBack, b.platform.MCUStatus())
}

func TestCloseStopsFallback(t *testing.T) {
	b := newBoard(t)
	d := b.boot(t)
	_, err := d.Step()
	require.NoError(t, err)
	require.True(t, b.adv.Running())

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.False(t, b.adv.Running())

	_, err = d.Step()
	assert.ErrorIs(t, err, device.ErrClosed)
}

func TestBootIDPerBoot(t *testing.T) {
	b := newBoard(t)
	first := b.boot(t)
	b.stack.PowerCycle()
	second := b.boot(t)

	_, err := uuid.Parse(first.BootID())
	require.NoError(t, err)
	assert.NotEqual(t, first.BootID(), second.BootID())
}
