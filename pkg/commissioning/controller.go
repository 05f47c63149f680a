package commissioning

import (
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/metrics"
	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// Controller defaults.
const (
	// DefaultOTAQueryInterval is the period of the firmware update query.
	DefaultOTAQueryInterval = 15 * time.Minute

	// DefaultRejoinBackoff is the wait after a failed rejoin.
	DefaultRejoinBackoff = 6 * time.Minute

	// ConnectedBlinks is the number of blinks shown after joining.
	ConnectedBlinks = 7

	// ConnectedBlinkPeriod is the on and off time of each blink.
	ConnectedBlinkPeriod = 500 * time.Millisecond
)

// Configuration errors.
var (
	ErrNoStack    = errors.New("commissioning: network stack is required")
	ErrNoTimers   = errors.New("commissioning: timers are required")
	ErrNoFallback = errors.New("commissioning: fallback radio is required")
)

// Context is the commissioning state owned by the application.
type Context struct {
	// SteerTimer is the pending steer timer, or timerqueue.NoHandle.
	SteerTimer timerqueue.Handle

	// RejoinTimer is the pending rejoin backoff timer, or
	// timerqueue.NoHandle.
	RejoinTimer timerqueue.Handle

	// RejoinAttempts counts failed steers. It saturates at MaxAttempts.
	RejoinAttempts uint32
}

// Config configures a Controller.
type Config struct {
	Stack    NetworkStack
	Timers   Timers
	Fallback FallbackRadio

	// Indicator, Services and Identify are optional.
	Indicator Indicator
	Services  Services
	Identify  IdentifyHandler

	// OTAQueryInterval defaults to DefaultOTAQueryInterval.
	OTAQueryInterval time.Duration

	// RejoinBackoff defaults to DefaultRejoinBackoff.
	RejoinBackoff time.Duration

	// Tiers defaults to DefaultTiers.
	Tiers *Tiers

	// Rand is the jitter source. Defaults to a time-seeded source.
	Rand *rand.Rand

	// Logger is the optional operational logger.
	Logger *slog.Logger

	// Events is the optional event emitter.
	Events *log.Emitter
}

// Controller is the commissioning state machine.
type Controller struct {
	stack     NetworkStack
	timers    Timers
	fallback  FallbackRadio
	indicator Indicator
	services  Services
	identify  IdentifyHandler

	otaInterval   time.Duration
	rejoinBackoff time.Duration
	tiers         Tiers
	rng           *rand.Rand

	ctx   *Context
	state State

	onStateChange func(from, to State)

	logger *slog.Logger
	events *log.Emitter
}

// NewController creates a controller over ctx. A nil ctx starts from zero.
func NewController(cfg Config, ctx *Context) (*Controller, error) {
	switch {
	case cfg.Stack == nil:
		return nil, ErrNoStack
	case cfg.Timers == nil:
		return nil, ErrNoTimers
	case cfg.Fallback == nil:
		return nil, ErrNoFallback
	}

	c := &Controller{
		stack:         cfg.Stack,
		timers:        cfg.Timers,
		fallback:      cfg.Fallback,
		indicator:     cfg.Indicator,
		services:      cfg.Services,
		identify:      cfg.Identify,
		otaInterval:   cfg.OTAQueryInterval,
		rejoinBackoff: cfg.RejoinBackoff,
		tiers:         DefaultTiers,
		rng:           cfg.Rand,
		ctx:           ctx,
		logger:        cfg.Logger,
		events:        cfg.Events,
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.services == nil {
		c.services = noopServices{}
	}
	if c.otaInterval <= 0 {
		c.otaInterval = DefaultOTAQueryInterval
	}
	if c.rejoinBackoff <= 0 {
		c.rejoinBackoff = DefaultRejoinBackoff
	}
	if cfg.Tiers != nil {
		c.tiers = *cfg.Tiers
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.ctx == nil {
		c.ctx = &Context{}
	}
	return c, nil
}

// Context returns the commissioning context.
func (c *Controller) Context() *Context {
	return c.ctx
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// OnStateChange sets a callback for state transitions.
func (c *Controller) OnStateChange(fn func(from, to State)) {
	c.onStateChange = fn
}

// OnInit handles the stack init callback.
func (c *Controller) OnInit(status InitStatus, joined bool) {
	c.debugLog("OnInit", "status", status, "joined", joined)

	if status == InitSuccess {
		if joined {
			c.stack.SetPollRate(PollRateDefault)
			c.services.StartOTAQuery(c.otaInterval)
			c.services.StartCheckIn()
			c.setState(StateJoined, "INIT")
			return
		}

		jitter := c.jitter()
		c.cancelSteer()
		c.scheduleSteer(jitter, "jitter")
		c.requestFallback()
		c.setState(StateSteering, "INIT")
		return
	}

	if joined {
		c.requestRejoin()
		c.setState(StateRejoinPending, "INIT_FAILURE")
	}
	c.requestFallback()
}

// OnCommissioning handles a commissioning outcome.
func (c *Controller) OnCommissioning(status Status) {
	c.debugLog("OnCommissioning", "status", status, "attempts", c.ctx.RejoinAttempts)
	metrics.RecordCommissioningStatus(status.String())

	switch status {
	case StatusSuccess:
		c.fallback.Stop()
		c.ctx.RejoinAttempts = c.tiers.ResetTo
		metrics.RecordAttempts(c.ctx.RejoinAttempts)

		c.indicator.Blink(ConnectedBlinks, ConnectedBlinkPeriod, ConnectedBlinkPeriod)
		c.stack.SetPollRate(PollRateDefault)
		c.cancelSteer()
		c.cancelRejoin()
		c.services.StartCheckIn()
		c.services.StartOTAQuery(c.otaInterval)
		c.indicator.ShowConnected(true)
		c.setState(StateJoined, status.String())

	case StatusNoNetwork, StatusTCLKExFailure, StatusTargetFailure:
		c.scheduleSteerRetry()
		c.indicator.ShowConnected(false)
		c.requestFallback()
		c.setState(StateSteering, status.String())

	case StatusNoScanResponse, StatusParentLost:
		if !c.stack.IsFactoryNew() {
			c.requestRejoin()
			c.setState(StateRejoinPending, status.String())
		}
		c.indicator.ShowConnected(false)
		c.requestFallback()

	case StatusRejoinFailure:
		if !c.stack.IsFactoryNew() {
			c.cancelRejoin()
			c.ctx.RejoinTimer = c.timers.Schedule(c.rejoinTimerFired, nil, c.rejoinBackoff)
			c.timerEvent("rejoin", "schedule", c.rejoinBackoff)
			metrics.RecordRetry("rejoin", c.ctx.RejoinAttempts)
			c.setState(StateRejoinBackoff, status.String())
		}
		c.indicator.ShowConnected(false)
		c.requestFallback()

	default:
		// Transient: the stack reports again.
	}
}

// OnIdentify forwards an identify request.
func (c *Controller) OnIdentify(endpoint uint8, srcAddr uint16, identifyTime uint16) {
	if c.identify != nil {
		c.identify.Identify(endpoint, srcAddr, identifyTime)
	}
}

// OnOTAEvent handles firmware upgrade progress.
func (c *Controller) OnOTAEvent(evt OTAEvent, success bool) {
	c.debugLog("OnOTAEvent", "event", evt, "success", success)

	switch evt {
	case OTAStart:
		if success {
			c.stack.SetPollRate(PollRateQueue)
		}
	case OTAComplete:
		c.stack.SetPollRate(PollRateDefault)
		if success {
			c.services.Reboot()
		} else {
			c.services.StartOTAQuery(c.otaInterval)
		}
	case OTAImageDone:
		c.stack.SetPollRate(PollRateDefault)
	}
}

// OnLeaveConfirm handles a leave confirm. A successful leave ends any
// rejoin backoff.
func (c *Controller) OnLeaveConfirm(success bool) {
	if success {
		c.cancelRejoin()
	}
}

func (c *Controller) setState(s State, reason string) {
	old := c.state
	if old == s {
		return
	}
	c.state = s
	metrics.RecordJoined(s == StateJoined)
	c.events.Emit(log.Event{
		Layer:    log.LayerCommissioning,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
	if c.onStateChange != nil {
		c.onStateChange(old, s)
	}
}

func (c *Controller) requestFallback() {
	c.fallback.RequestStart()
}

func (c *Controller) requestRejoin() {
	c.stack.RequestRejoinWithBackoff(c.stack.ChannelMask(), c.stack.ScanDuration())
}

func (c *Controller) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// Compile-time interface satisfaction check.
var _ Callbacks = (*Controller)(nil)
