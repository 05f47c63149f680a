package sim

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/config"
	"github.com/thsensor/thsensor-go/pkg/device"
	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/persistence"
	"github.com/thsensor/thsensor-go/pkg/pm"
	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

func testProfile() *config.Config {
	p := config.Default()
	p.Device.ID = "a4c138fffe2b1c3d"
	p.Commissioning.JitterSeed = 1
	return p
}

func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	if cfg.Profile == nil {
		cfg.Profile = testProfile()
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRequiresProfile(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestSimulatorJoins(t *testing.T) {
	s := newTestSimulator(t, Config{})

	require.NoError(t, s.RunFor(10*time.Second))

	ctrl := s.Device().Controller()
	assert.Equal(t, commissioning.StateJoined, ctrl.State())
	assert.Equal(t, 1, s.Stack().Steers)
	assert.True(t, s.Indicator().Connected)
	require.NotEmpty(t, s.Indicator().Blinks)
	assert.Equal(t, commissioning.ConnectedBlinks, s.Indicator().Blinks[0].Times)
	assert.Equal(t, []time.Duration{commissioning.DefaultOTAQueryInterval}, s.Services().OTAQueries)
	assert.Equal(t, 1, s.Services().CheckIns)

	adv := s.Advertiser().(*Advertiser)
	assert.Equal(t, 1, adv.Starts(), "fallback radio runs while steering")
	assert.False(t, adv.Running())
	assert.Equal(t, commissioning.DefaultTiers.ResetTo, ctrl.Context().RejoinAttempts)
	assert.GreaterOrEqual(t, s.Now(), 10*time.Second)
}

func TestSimulatorSteerBackoff(t *testing.T) {
	s := newTestSimulator(t, Config{
		Stack: StackConfig{DefaultSteer: commissioning.StatusNoNetwork},
	})

	// The first attempt follows a jitter below 4.1 s, the next six follow
	// at 9216 ms each, the eighth only after 56 s more.
	require.NoError(t, s.RunFor(time.Minute))

	ctrl := s.Device().Controller()
	assert.Equal(t, 7, s.Stack().Steers)
	assert.Equal(t, uint32(7), ctrl.Context().RejoinAttempts)
	assert.Equal(t, commissioning.StateSteering, ctrl.State())
	assert.NotEqual(t, timerqueue.NoHandle, ctrl.Context().SteerTimer)
	assert.True(t, s.Advertiser().(*Advertiser).Running())
	assert.Greater(t, s.Platform().Asleep(), 55*time.Second, "device sleeps between attempts")
}

func TestSimulatorRejoinAfterParentLost(t *testing.T) {
	s := newTestSimulator(t, Config{
		Stack: StackConfig{
			RejoinOutcomes: []commissioning.Status{commissioning.StatusRejoinFailure},
		},
	})
	require.NoError(t, s.RunFor(10*time.Second))
	require.Equal(t, commissioning.StateJoined, s.Device().Controller().State())

	s.Stack().Inject(commissioning.StatusParentLost)
	_, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, commissioning.StateRejoinPending, s.Device().Controller().State())

	_, err = s.Step()
	require.NoError(t, err)
	ctrl := s.Device().Controller()
	assert.Equal(t, commissioning.StateRejoinBackoff, ctrl.State())
	assert.NotEqual(t, timerqueue.NoHandle, ctrl.Context().RejoinTimer)

	require.NoError(t, s.RunFor(commissioning.DefaultRejoinBackoff+time.Second))

	assert.Equal(t, commissioning.StateJoined, ctrl.State())
	assert.Len(t, s.Stack().Rejoins, 2)
	assert.Equal(t, timerqueue.NoHandle, ctrl.Context().RejoinTimer)
	assert.Equal(t, 0, s.Device().Timers().Len())
	assert.Equal(t, 1, s.Boots())
}

func TestSimulatorHibernationRestoresFrameCounter(t *testing.T) {
	profile := testProfile()
	profile.Power.LowBatteryMv = 2200
	profile.Power.LowBatterySleep = 30 * time.Minute
	s := newTestSimulator(t, Config{Profile: profile})

	require.NoError(t, s.RunFor(10*time.Second))
	require.Equal(t, uint32(1), s.Stack().OutgoingFrameCounter())

	s.Battery().Set(2100)
	out, err := s.Step()
	require.NoError(t, err)

	assert.Equal(t, pm.OutcomeLongSlept, out)
	assert.Equal(t, 2, s.Boots())
	assert.Equal(t, pm.MCUStatusDeepBack, s.Platform().MCUStatus())
	v, ok := s.Device().RestoredFrameCounter()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, uint32(1), s.Stack().OutgoingFrameCounter(), "restored counter, not the NV copy")
	assert.GreaterOrEqual(t, s.Now(), 30*time.Minute)

	// Still low: hibernates again straight after boot.
	_, err = s.Step()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Boots())

	s.Battery().Set(3000)
	require.NoError(t, s.RunFor(time.Second))
	assert.Equal(t, commissioning.StateJoined, s.Device().Controller().State(), "joined state survives deep sleep")
	assert.Equal(t, 3, s.Boots())
}

func TestSimulatorOTARebootIsColdBoot(t *testing.T) {
	s := newTestSimulator(t, Config{})
	require.NoError(t, s.RunFor(10*time.Second))

	s.Stack().InjectOTA(commissioning.OTAComplete, true)
	_, err := s.Step()
	require.NoError(t, err)

	assert.Equal(t, 1, s.Services().Reboots)
	assert.Equal(t, 2, s.Boots())
	assert.Equal(t, pm.MCUStatusPowerOn, s.Platform().MCUStatus())
	_, ok := s.Device().RestoredFrameCounter()
	assert.False(t, ok)
	assert.Equal(t, uint32(1)+FrameCounterNVStep, s.Stack().OutgoingFrameCounter(), "cold boot resumes from the NV copy")
}

func TestSimulatorIdleDeepSleepWakesOnPin(t *testing.T) {
	profile := testProfile()
	profile.Power.DeepSleepOnIdle = true
	profile.Power.WakePins = []config.Pin{{Pin: 3, Level: "low"}}
	s := newTestSimulator(t, Config{Profile: profile})

	require.NoError(t, s.RunFor(10*time.Second))
	require.True(t, s.Platform().Halted(), "joined with no timers pending: pad-only deep sleep")
	assert.False(t, s.Device().Scheduler().WakeupPinActive(s.Device().WakePins()))

	out, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, pm.OutcomePadSlept, out)

	// The pad was flipped to the high edge since the pin idles low.
	require.NoError(t, s.SetPin(3, true))

	assert.False(t, s.Platform().Halted())
	assert.Equal(t, 2, s.Boots())
	assert.Equal(t, pm.MCUStatusDeepBack, s.Platform().MCUStatus())
	_, ok := s.Device().RestoredFrameCounter()
	assert.True(t, ok)
}

func TestSimulatorOnBootSeesEveryDevice(t *testing.T) {
	profile := testProfile()
	profile.Power.LowBatteryMv = 2200
	s := newTestSimulator(t, Config{Profile: profile})

	var booted []*device.Device
	s.OnBoot(func(d *device.Device) { booted = append(booted, d) })
	require.Len(t, booted, 1)

	s.Battery().Set(2000)
	_, err := s.Step()
	require.NoError(t, err)

	require.Len(t, booted, 2)
	assert.NotEqual(t, booted[0].BootID(), booted[1].BootID())
}

func TestSimulatorPersistentStorage(t *testing.T) {
	dir := t.TempDir()
	store := persistence.NewNetworkStateStore(filepath.Join(dir, "network.json"))

	first := newTestSimulator(t, Config{NetworkState: store})
	require.NoError(t, first.RunFor(10*time.Second))
	require.NoError(t, first.Close())

	second := newTestSimulator(t, Config{NetworkState: store})
	require.NoError(t, second.RunFor(time.Second))

	assert.Equal(t, commissioning.StateJoined, second.Device().Controller().State())
	assert.Equal(t, 0, second.Stack().Steers, "a commissioned device does not steer again")
}

func TestSimulatorEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.zlog")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)

	s := newTestSimulator(t, Config{EventLogger: fl})
	require.NoError(t, s.RunFor(10*time.Second))
	require.NoError(t, fl.Close())

	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	counts := map[log.Category]int{}
	var joined bool
	for {
		e, err := r.Next()
		if err != nil {
			break
		}
		counts[e.Category]++
		assert.Equal(t, s.Device().BootID(), e.BootID)
		assert.Equal(t, "a4c138fffe2b1c3d", e.DeviceID)
		if e.StateChange != nil && e.StateChange.NewState == commissioning.StateJoined.String() {
			joined = true
		}
	}
	assert.True(t, joined)
	assert.Positive(t, counts[log.CategorySleep])
	assert.Positive(t, counts[log.CategoryWake])
	assert.Positive(t, counts[log.CategoryTimer])
	assert.Equal(t, 1, counts[log.CategoryPersist], "one restore attempt at boot")
}
