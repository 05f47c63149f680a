package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "thsensor"
)

var (
	// SleepsTotal counts sleep entries by mode and variant.
	SleepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pm",
			Name:      "sleeps_total",
			Help:      "Total number of sleep entries",
		},
		[]string{"mode", "variant"}, // variant: short/long/pad
	)

	// SleepSkipsTotal counts idle iterations that did not sleep.
	SleepSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pm",
			Name:      "sleep_skips_total",
			Help:      "Idle iterations that returned without sleeping",
		},
		[]string{"reason"}, // busy/no_timer/due
	)

	// SleepRequested measures the requested sleep duration.
	SleepRequested = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pm",
			Name:      "sleep_requested_seconds",
			Help:      "Requested sleep duration in seconds",
			Buckets:   []float64{.01, .1, .5, 1, 5, 10, 30, 60, 120, 360, 900},
		},
	)

	// SleptSeconds accumulates the reconciled time spent asleep.
	SleptSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pm",
			Name:      "slept_seconds_total",
			Help:      "Total time spent asleep in seconds",
		},
	)

	// FrameCounterOps counts NV frame counter persists and restores.
	FrameCounterOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pm",
			Name:      "frame_counter_ops_total",
			Help:      "NV frame counter operations",
		},
		[]string{"op", "result"}, // op: persist/restore, result: ok/invalid
	)

	// CommissioningStatus counts commissioning callbacks by status.
	CommissioningStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commissioning",
			Name:      "status_total",
			Help:      "Commissioning outcome callbacks by status",
		},
		[]string{"status"},
	)

	// RetriesScheduled counts retry timers by kind.
	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commissioning",
			Name:      "retries_scheduled_total",
			Help:      "Retry timers scheduled",
		},
		[]string{"kind"}, // steer/rejoin
	)

	// RejoinAttempts tracks the current rejoin attempt counter.
	RejoinAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "commissioning",
			Name:      "rejoin_attempts",
			Help:      "Current rejoin attempt counter",
		},
	)

	// Joined is 1 while the device is joined to a network.
	Joined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "commissioning",
			Name:      "joined",
			Help:      "Whether the device is joined (1) or not (0)",
		},
	)

	// FallbackRadioActive is 1 while the fallback radio is requested.
	FallbackRadioActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dualmode",
			Name:      "fallback_active",
			Help:      "Whether the fallback radio is active (1) or not (0)",
		},
	)

	// Uptime tracks exporter uptime.
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Simulator uptime in seconds",
		},
	)
)
