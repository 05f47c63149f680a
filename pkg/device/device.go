package device

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/config"
	"github.com/thsensor/thsensor-go/pkg/dualmode"
	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/nvstore"
	"github.com/thsensor/thsensor-go/pkg/pm"
	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// Device errors.
var (
	ErrNoProfile   = errors.New("device: profile is required")
	ErrNoRegisters = errors.New("device: analog registers are required")
	ErrClosed      = errors.New("device: closed")
)

// EventHandler receives every callback the network stack delivers.
type EventHandler interface {
	commissioning.Callbacks
	OnOTAEvent(evt commissioning.OTAEvent, success bool)
	OnLeaveConfirm(success bool)
}

// Stack is the network stack as seen by the device.
type Stack interface {
	pm.Stack
	commissioning.NetworkStack

	// Start initializes the stack. It reports back through h.OnInit.
	Start(h EventHandler) error

	// RestoreFrameCounter sets the outgoing frame counter after a deep
	// sleep.
	RestoreFrameCounter(v uint32)

	// Task runs one stack task cycle and delivers pending callbacks.
	Task()
}

// Battery reads the supply voltage.
type Battery interface {
	MilliVolts() uint16
}

// Config configures a Device.
type Config struct {
	Profile *config.Config

	Platform  pm.Platform
	Radio     pm.Radio
	Registers nvstore.Registers
	Stack     Stack

	// Advertiser is the fallback radio.
	Advertiser dualmode.Advertiser

	// Optional collaborators.
	Indicator commissioning.Indicator
	Services  commissioning.Services
	Identify  commissioning.IdentifyHandler
	Battery   Battery

	// Logger is the optional operational logger.
	Logger *slog.Logger

	// EventLogger receives core events. Nil disables the event log.
	EventLogger log.Logger
}

// Device is one booted sensor.
type Device struct {
	profile *config.Config
	bootID  string

	platform pm.Platform
	stack    Stack
	battery  Battery

	queue    *timerqueue.Queue
	sched    *pm.Scheduler
	ctrl     *commissioning.Controller
	fallback *dualmode.Switch
	pins     []pm.PinConfig

	restoredCounter uint32
	counterRestored bool
	hibernations    int
	closed          bool

	logger *slog.Logger
	events *log.Emitter
}

// Boot brings the device up. It mirrors the firmware start-up order: tick
// source, timer queue, frame counter restore, wake pins, radio switch,
// commissioning controller, and finally the network stack.
func Boot(cfg Config) (*Device, error) {
	if cfg.Profile == nil {
		return nil, ErrNoProfile
	}
	if cfg.Registers == nil {
		return nil, ErrNoRegisters
	}
	if cfg.Platform == nil || cfg.Radio == nil || cfg.Stack == nil || cfg.Advertiser == nil {
		return nil, fmt.Errorf("device: platform, radio, stack and advertiser are required")
	}
	profile := cfg.Profile

	source, err := profile.TickSource()
	if err != nil {
		return nil, fmt.Errorf("device: tick source: %w", err)
	}

	d := &Device{
		profile:  profile,
		bootID:   uuid.New().String(),
		platform: cfg.Platform,
		stack:    cfg.Stack,
		battery:  cfg.Battery,
		pins:     profile.PinConfigs(),
		logger:   cfg.Logger,
	}
	d.events = log.NewEmitter(cfg.EventLogger, d.bootID)
	d.events.SetDeviceID(profile.Device.ID)

	d.queue = timerqueue.New(cfg.Platform, profile.Clock.SysTicksPerUs)

	d.sched, err = pm.NewScheduler(pm.Config{
		Platform:        cfg.Platform,
		Radio:           cfg.Radio,
		Stack:           cfg.Stack,
		Timers:          d.queue,
		FrameCounter:    nvstore.NewFrameCounter(cfg.Registers, nvstore.DefaultLayout),
		Source:          source,
		SysTicksPerUs:   profile.Clock.SysTicksPerUs,
		ShortSleepMax:   profile.Power.ShortSleepMax,
		DeepSleepOnIdle: profile.Power.DeepSleepOnIdle,
		Logger:          cfg.Logger,
		Events:          d.events,
	}, nil)
	if err != nil {
		return nil, err
	}

	// Read once, before the stack sends its first secured frame.
	if v, ok := d.sched.ReadPersistedFrameCounter(); ok {
		d.restoredCounter, d.counterRestored = v, true
		cfg.Stack.RestoreFrameCounter(v)
	}

	d.sched.ArmPinWakeupSources(d.pins)

	d.fallback, err = dualmode.NewSwitch(dualmode.SwitchConfig{
		Advertiser: cfg.Advertiser,
		Info: dualmode.DeviceInfo{
			DeviceID: profile.Device.ID,
			Name:     profile.Device.Name,
			Firmware: profile.Device.Firmware,
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	seed := profile.Commissioning.JitterSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tiers := profile.SteerTiers()
	d.ctrl, err = commissioning.NewController(commissioning.Config{
		Stack:            cfg.Stack,
		Timers:           d.queue,
		Fallback:         d.fallback,
		Indicator:        cfg.Indicator,
		Services:         cfg.Services,
		Identify:         cfg.Identify,
		OTAQueryInterval: profile.Commissioning.OTAQueryInterval,
		RejoinBackoff:    profile.Commissioning.RejoinBackoff,
		Tiers:            &tiers,
		Rand:             rand.New(rand.NewSource(seed)),
		Logger:           cfg.Logger,
		Events:           d.events,
	}, nil)
	if err != nil {
		return nil, err
	}

	if err := cfg.Stack.Start(d.ctrl); err != nil {
		return nil, fmt.Errorf("device: stack start: %w", err)
	}

	d.debugLog("Boot: device up",
		"bootID", d.bootID,
		"mcu", cfg.Platform.MCUStatus(),
		"clock", source.Kind(),
		"frameCounterRestored", d.counterRestored)
	return d, nil
}

// Step runs one main-loop iteration and returns what the sleep scheduler
// did.
func (d *Device) Step() (pm.Outcome, error) {
	if d.closed {
		return pm.OutcomeBusy, ErrClosed
	}

	if d.lowBattery() {
		d.hibernations++
		d.debugLog("Step: low battery, hibernating", "sleep", d.profile.Power.LowBatterySleep)
		err := d.sched.LongSleep(pm.ModeDeepSleep, pm.WakeupTimer, d.profile.Power.LowBatterySleep)
		return pm.OutcomeLongSlept, err
	}

	d.queue.Process()
	d.stack.Task()

	if err := d.fallback.Poll(); err != nil {
		d.events.Emit(log.Event{
			Layer:    log.LayerCommissioning,
			Category: log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerCommissioning,
				Message: err.Error(),
				Context: "fallback radio start",
			},
		})
	}

	d.sched.RefreshPinWakeupPolarity(d.pins)
	return d.sched.EvaluateAndSleep(), nil
}

func (d *Device) lowBattery() bool {
	if d.battery == nil || d.profile.Power.LowBatteryMv == 0 {
		return false
	}
	return d.battery.MilliVolts() < d.profile.Power.LowBatteryMv
}

// Close stops the fallback radio. The device cannot be stepped afterwards.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.fallback.Stop()
	return nil
}

// BootID returns the ID of this boot.
func (d *Device) BootID() string { return d.bootID }

// Controller returns the commissioning controller.
func (d *Device) Controller() *commissioning.Controller { return d.ctrl }

// Scheduler returns the sleep scheduler.
func (d *Device) Scheduler() *pm.Scheduler { return d.sched }

// Timers returns the timer queue.
func (d *Device) Timers() *timerqueue.Queue { return d.queue }

// Fallback returns the fallback radio switch.
func (d *Device) Fallback() *dualmode.Switch { return d.fallback }

// WakePins returns the current wake pin configuration.
func (d *Device) WakePins() []pm.PinConfig { return d.pins }

// RestoredFrameCounter returns the frame counter restored at boot.
func (d *Device) RestoredFrameCounter() (uint32, bool) {
	return d.restoredCounter, d.counterRestored
}

// Hibernations returns how often the low battery guard fired.
func (d *Device) Hibernations() int { return d.hibernations }

func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
