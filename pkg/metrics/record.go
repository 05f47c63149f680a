package metrics

import "time"

// RecordSleep records a sleep entry.
func RecordSleep(mode, variant string, requested time.Duration) {
	SleepsTotal.WithLabelValues(mode, variant).Inc()
	SleepRequested.Observe(requested.Seconds())
}

// RecordSleepSkip records an idle iteration that did not sleep.
func RecordSleepSkip(reason string) {
	SleepSkipsTotal.WithLabelValues(reason).Inc()
}

// RecordSlept records reconciled sleep time.
func RecordSlept(elapsed time.Duration) {
	if elapsed > 0 {
		SleptSeconds.Add(elapsed.Seconds())
	}
}

// RecordFrameCounter records a frame counter persist or restore.
func RecordFrameCounter(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	FrameCounterOps.WithLabelValues(op, result).Inc()
}

// RecordCommissioningStatus records a commissioning outcome callback.
func RecordCommissioningStatus(status string) {
	CommissioningStatus.WithLabelValues(status).Inc()
}

// RecordRetry records a scheduled retry and the attempt counter.
func RecordRetry(kind string, attempts uint32) {
	RetriesScheduled.WithLabelValues(kind).Inc()
	RejoinAttempts.Set(float64(attempts))
}

// RecordAttempts records the attempt counter without a retry.
func RecordAttempts(attempts uint32) {
	RejoinAttempts.Set(float64(attempts))
}

// RecordJoined records the joined state.
func RecordJoined(joined bool) {
	Joined.Set(boolGauge(joined))
}

// RecordFallbackRadio records the fallback radio state.
func RecordFallbackRadio(active bool) {
	FallbackRadioActive.Set(boolGauge(active))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
