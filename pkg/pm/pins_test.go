package pm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshPinWakeupPolarity(t *testing.T) {
	tests := []struct {
		name  string
		high  bool
		level WakeupLevel
		want  WakeupLevel
	}{
		{"high at trigger high flips to low", true, LevelHigh, LevelLow},
		{"low at trigger low flips to high", false, LevelLow, LevelHigh},
		{"high with trigger low unchanged", true, LevelLow, LevelLow},
		{"low with trigger high unchanged", false, LevelHigh, LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.platform.pins[4] = tt.high
			cfg := []PinConfig{{Pin: 4, Level: tt.level}}

			f.sched.RefreshPinWakeupPolarity(cfg)

			assert.Equal(t, tt.want, cfg[0].Level)
			level, armed := f.platform.pads[4]
			assert.True(t, armed)
			assert.Equal(t, tt.want, level)
		})
	}
}

func TestRefreshPinWakeupPolarityMultiplePins(t *testing.T) {
	f := newFixture(t)
	f.platform.pins[1] = true
	f.platform.pins[2] = false
	cfg := []PinConfig{
		{Pin: 1, Level: LevelHigh},
		{Pin: 2, Level: LevelHigh},
	}

	f.sched.RefreshPinWakeupPolarity(cfg)

	assert.Equal(t, []PinConfig{{Pin: 1, Level: LevelLow}, {Pin: 2, Level: LevelHigh}}, cfg)
}

func TestRefreshPinWakeupPolarityRearmsClearedPads(t *testing.T) {
	f := newFixture(t)
	cfg := []PinConfig{{Pin: 1, Level: LevelLow}, {Pin: 7, Level: LevelHigh}}
	f.sched.ArmPinWakeupSources(cfg)

	// Pads cleared behind the scheduler's back, pins idle at non-trigger levels.
	f.platform.pads = make(map[PinID]WakeupLevel)
	f.platform.pins[1] = true
	f.platform.pins[7] = false

	f.sched.RefreshPinWakeupPolarity(cfg)

	assert.Equal(t, map[PinID]WakeupLevel{1: LevelLow, 7: LevelHigh}, f.platform.pads)
}

func TestArmPinWakeupSources(t *testing.T) {
	f := newFixture(t)
	cfg := []PinConfig{{Pin: 1, Level: LevelLow}, {Pin: 7, Level: LevelHigh}}

	f.sched.ArmPinWakeupSources(cfg)

	assert.Equal(t, map[PinID]WakeupLevel{1: LevelLow, 7: LevelHigh}, f.platform.pads)
	assert.True(t, f.sched.padArmed)

	f.sched.ArmPinWakeupSources(nil)
	assert.False(t, f.sched.padArmed)
}

func TestWakeupPinActive(t *testing.T) {
	f := newFixture(t)
	cfg := []PinConfig{{Pin: 1, Level: LevelLow}, {Pin: 2, Level: LevelHigh}}

	f.platform.pins[1] = true
	f.platform.pins[2] = false
	assert.False(t, f.sched.WakeupPinActive(cfg))

	f.platform.pins[2] = true
	assert.True(t, f.sched.WakeupPinActive(cfg))

	f.platform.pins[2] = false
	f.platform.pins[1] = false
	assert.True(t, f.sched.WakeupPinActive(cfg))

	assert.False(t, f.sched.WakeupPinActive(nil))
}
