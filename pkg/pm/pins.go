package pm

// ArmPinWakeupSources enables a pad wakeup for every configured pin.
// An empty cfg disarms pad wakeups for later sleeps.
func (s *Scheduler) ArmPinWakeupSources(cfg []PinConfig) {
	for _, p := range cfg {
		s.platform.ConfigurePadWakeup(p.Pin, p.Level, true)
	}
	s.padArmed = len(cfg) > 0
}

// RefreshPinWakeupPolarity flips the trigger level of every pin that
// already sits at its trigger level, so the next real edge is seen, and
// re-arms every pad. cfg is updated in place.
func (s *Scheduler) RefreshPinWakeupPolarity(cfg []PinConfig) {
	for i := range cfg {
		high := s.platform.ReadPin(cfg[i].Pin)
		flip := (high && cfg[i].Level == LevelHigh) || (!high && cfg[i].Level == LevelLow)
		if flip {
			cfg[i].Level = cfg[i].Level.opposite()
			s.debugLog("RefreshPinWakeupPolarity: flipped",
				"pin", cfg[i].Pin, "level", cfg[i].Level)
		}
		s.platform.ConfigurePadWakeup(cfg[i].Pin, cfg[i].Level, true)
	}
}

// WakeupPinActive reports whether any configured pin reads its trigger
// level.
func (s *Scheduler) WakeupPinActive(cfg []PinConfig) bool {
	for _, p := range cfg {
		high := s.platform.ReadPin(p.Pin)
		if high == (p.Level == LevelHigh) {
			return true
		}
	}
	return false
}
