package pm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCounterSurvivesDeepSleep(t *testing.T) {
	f := newFixture(t)
	f.stack.counter = 0x12345678

	require.NoError(t, f.sched.Sleep(ModeDeepSleep, WakeupTimer, time.Second))

	// Persist happens before the radio goes down and before sleep.
	require.NotEmpty(t, f.tr.calls)
	assert.Equal(t, "persist", f.tr.calls[0])
	assert.Less(t, indexOf(f.tr.calls, "persist"), indexOf(f.tr.calls, "sleep"))

	f.platform.status = MCUStatusDeepBack
	assert.True(t, f.sched.FrameCounterRestorable())

	v, ok := f.sched.ReadPersistedFrameCounter()
	assert.True(t, ok)
	assert.Equal(t, uint32(0x12345678), v)

	// Read-once.
	assert.False(t, f.sched.FrameCounterRestorable())
	v, ok = f.sched.ReadPersistedFrameCounter()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestFrameCounterNotRestoredAfterPowerOn(t *testing.T) {
	f := newFixture(t)
	f.stack.counter = 77

	require.NoError(t, f.sched.Sleep(ModeDeepSleep, WakeupPad, 0))
	f.platform.status = MCUStatusPowerOn

	assert.False(t, f.sched.FrameCounterRestorable())
	_, ok := f.sched.ReadPersistedFrameCounter()
	assert.False(t, ok)

	// The flag was consumed anyway.
	f.platform.status = MCUStatusDeepBack
	_, ok = f.sched.ReadPersistedFrameCounter()
	assert.False(t, ok)
}

func TestRetentionSleepDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	f.stack.counter = 5
	f.queue.Schedule(noop, nil, time.Second)

	f.sched.EvaluateAndSleep()

	assert.NotContains(t, f.tr.calls, "persist")
	f.platform.status = MCUStatusDeepBack
	_, ok := f.sched.ReadPersistedFrameCounter()
	assert.False(t, ok)
}

func indexOf(calls []string, s string) int {
	for i, c := range calls {
		if c == s {
			return i
		}
	}
	return -1
}
