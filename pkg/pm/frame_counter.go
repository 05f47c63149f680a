package pm

import (
	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/metrics"
)

// FrameCounterRestorable reports whether a persisted frame counter is
// present and the MCU came back from a non-retention deep sleep.
func (s *Scheduler) FrameCounterRestorable() bool {
	return s.platform.MCUStatus() == MCUStatusDeepBack && s.fc.Valid()
}

// ReadPersistedFrameCounter returns the frame counter saved before the last
// deep sleep. It clears the valid flag, so only the first call after a wake
// can succeed. After any other kind of reset it reports false.
func (s *Scheduler) ReadPersistedFrameCounter() (uint32, bool) {
	deepBack := s.platform.MCUStatus() == MCUStatusDeepBack
	v, ok := s.fc.Take()
	ok = ok && deepBack
	if !ok {
		v = 0
	}

	metrics.RecordFrameCounter("restore", ok)
	s.events.Emit(log.Event{
		Layer:        log.LayerPower,
		Category:     log.CategoryPersist,
		FrameCounter: &log.FrameCounterEvent{Action: "restore", Value: v, Valid: ok},
	})
	return v, ok
}

func (s *Scheduler) persistFrameCounter() {
	v := s.stack.OutgoingFrameCounter()
	s.fc.Save(v)

	metrics.RecordFrameCounter("persist", true)
	s.events.Emit(log.Event{
		Layer:        log.LayerPower,
		Category:     log.CategoryPersist,
		FrameCounter: &log.FrameCounterEvent{Action: "persist", Value: v, Valid: true},
	})
}
