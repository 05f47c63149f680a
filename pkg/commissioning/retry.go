package commissioning

import (
	"time"

	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/metrics"
	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// Retry constants.
const (
	// MaxAttempts is the saturation value of the attempt counter.
	MaxAttempts = 200

	// MaxJitter bounds the initial steer jitter (exclusive).
	MaxJitter = 0x0FFF

	// tickUnit converts attempt counts into delays (1024 ms).
	tickUnit = 1024 * time.Millisecond
)

// Tiers is the steer retry backoff curve.
type Tiers struct {
	// ShortBelow is the attempt count below which Short applies.
	ShortBelow uint32

	// Short is the delay of the first tier.
	Short time.Duration

	// MediumBelow is the attempt count below which Medium applies. From
	// MediumBelow on, the delay is attempts * 1024 ms.
	MediumBelow uint32

	// Medium is the delay of the second tier.
	Medium time.Duration

	// ResetTo is the attempt counter value after a successful join.
	ResetTo uint32
}

// DefaultTiers is the production backoff curve.
var DefaultTiers = Tiers{
	ShortBelow:  7,
	Short:       9 * tickUnit,
	MediumBelow: 55,
	Medium:      55 * tickUnit,
	ResetTo:     55,
}

// Delay returns the steer retry delay for an attempt count.
func (t Tiers) Delay(attempts uint32) time.Duration {
	switch {
	case attempts < t.ShortBelow:
		return t.Short
	case attempts < t.MediumBelow:
		return t.Medium
	default:
		return time.Duration(attempts) * tickUnit
	}
}

// SteerRetryDelay returns the default steer retry delay for an attempt
// count.
func SteerRetryDelay(attempts uint32) time.Duration {
	return DefaultTiers.Delay(attempts)
}

// scheduleSteerRetry replaces the steer timer with one at the backoff delay.
func (c *Controller) scheduleSteerRetry() {
	c.cancelSteer()

	if c.ctx.RejoinAttempts < MaxAttempts {
		c.ctx.RejoinAttempts++
	}
	delay := c.tiers.Delay(c.ctx.RejoinAttempts)

	c.scheduleSteer(delay, "retry")
	metrics.RecordRetry("steer", c.ctx.RejoinAttempts)
}

// jitter returns a pseudo-random delay in [1, MaxJitter) milliseconds.
func (c *Controller) jitter() time.Duration {
	var j int
	for j == 0 {
		j = c.rng.Intn(MaxJitter)
	}
	return time.Duration(j) * time.Millisecond
}

func (c *Controller) scheduleSteer(delay time.Duration, reason string) {
	c.ctx.SteerTimer = c.timers.Schedule(c.steerTimerFired, nil, delay)
	c.timerEvent("steer", "schedule", delay)
	c.debugLog("steer scheduled", "delay", delay, "reason", reason, "attempts", c.ctx.RejoinAttempts)
}

func (c *Controller) cancelSteer() {
	if c.ctx.SteerTimer == timerqueue.NoHandle {
		return
	}
	c.timers.Cancel(c.ctx.SteerTimer)
	c.ctx.SteerTimer = timerqueue.NoHandle
	c.timerEvent("steer", "cancel", 0)
}

func (c *Controller) cancelRejoin() {
	if c.ctx.RejoinTimer == timerqueue.NoHandle {
		return
	}
	c.timers.Cancel(c.ctx.RejoinTimer)
	c.ctx.RejoinTimer = timerqueue.NoHandle
	c.timerEvent("rejoin", "cancel", 0)
}

// steerTimerFired starts steering. The timer is one-shot.
func (c *Controller) steerTimerFired(any) int {
	c.ctx.SteerTimer = timerqueue.NoHandle
	c.timerEvent("steer", "fire", 0)
	c.stack.StartNetworkSteer()
	c.setState(StateSteering, "TIMER")
	return -1
}

// rejoinTimerFired requests a rejoin and repeats every backoff period until
// cancelled. It stops itself once the device is factory new.
func (c *Controller) rejoinTimerFired(any) int {
	if c.stack.IsFactoryNew() {
		c.ctx.RejoinTimer = timerqueue.NoHandle
		c.timerEvent("rejoin", "stop", 0)
		return -1
	}
	c.timerEvent("rejoin", "fire", 0)
	c.requestRejoin()
	c.setState(StateRejoinPending, "TIMER")
	return 0
}

func (c *Controller) timerEvent(kind, action string, delay time.Duration) {
	c.events.Emit(log.Event{
		Layer:    log.LayerTimer,
		Category: log.CategoryTimer,
		Timer: &log.TimerEvent{
			Kind:    kind,
			Action:  action,
			Delay:   delay,
			Attempt: c.ctx.RejoinAttempts,
		},
	})
}
