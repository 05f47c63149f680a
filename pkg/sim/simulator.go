package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thsensor/thsensor-go/pkg/config"
	"github.com/thsensor/thsensor-go/pkg/device"
	"github.com/thsensor/thsensor-go/pkg/dualmode"
	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/nvstore"
	"github.com/thsensor/thsensor-go/pkg/persistence"
	"github.com/thsensor/thsensor-go/pkg/pm"
)

// DefaultActiveTime is the virtual time charged for a loop iteration that
// did not sleep.
const DefaultActiveTime = time.Millisecond

// ErrNoProfile is returned when Config.Profile is nil.
var ErrNoProfile = errors.New("sim: profile is required")

// Config configures a Simulator.
type Config struct {
	Profile *config.Config

	// Registers backs the analog registers. Nil keeps them in memory.
	Registers nvstore.Registers

	// NetworkState persists the stack state. Nil keeps it in memory.
	NetworkState *persistence.NetworkStateStore

	// Advertiser is the fallback radio. Nil uses an in-memory Advertiser.
	Advertiser dualmode.Advertiser

	Stack StackConfig

	// BatteryMv is the initial battery voltage. Zero selects 3000 mV.
	BatteryMv uint16

	// ActiveTime defaults to DefaultActiveTime.
	ActiveTime time.Duration

	Logger      *slog.Logger
	EventLogger log.Logger
}

// Simulator runs a Device on simulated hardware.
type Simulator struct {
	cfg Config

	platform   *Platform
	radio      *Radio
	registers  nvstore.Registers
	stack      *Stack
	advertiser dualmode.Advertiser
	indicator  *Indicator
	services   *Services
	battery    *Battery

	dev   *device.Device
	boots int

	onBoot func(*device.Device)
}

// New creates a Simulator and boots the device.
func New(cfg Config) (*Simulator, error) {
	if cfg.Profile == nil {
		return nil, ErrNoProfile
	}
	source, err := cfg.Profile.TickSource()
	if err != nil {
		return nil, err
	}
	if cfg.ActiveTime <= 0 {
		cfg.ActiveTime = DefaultActiveTime
	}
	if cfg.BatteryMv == 0 {
		cfg.BatteryMv = 3000
	}

	s := &Simulator{
		cfg:        cfg,
		platform:   NewPlatform(source, cfg.Profile.Clock.SysTicksPerUs),
		radio:      NewRadio(),
		registers:  cfg.Registers,
		advertiser: cfg.Advertiser,
		indicator:  NewIndicator(cfg.Logger),
		battery:    NewBattery(cfg.BatteryMv),
	}
	if s.registers == nil {
		s.registers = &nvstore.MemoryRegisters{}
	}
	if s.advertiser == nil {
		s.advertiser = &Advertiser{}
	}
	stackCfg := cfg.Stack
	stackCfg.Store = cfg.NetworkState
	if stackCfg.Logger == nil {
		stackCfg.Logger = cfg.Logger
	}
	s.stack = NewStack(stackCfg)
	s.services = NewServices(s.platform)

	if err := s.boot(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) boot() error {
	dev, err := device.Boot(device.Config{
		Profile:     s.cfg.Profile,
		Platform:    s.platform,
		Radio:       s.radio,
		Registers:   s.registers,
		Stack:       s.stack,
		Advertiser:  s.advertiser,
		Indicator:   s.indicator,
		Services:    s.services,
		Identify:    s.indicator,
		Battery:     s.battery,
		Logger:      s.cfg.Logger,
		EventLogger: s.cfg.EventLogger,
	})
	if err != nil {
		return fmt.Errorf("boot %d: %w", s.boots+1, err)
	}
	s.dev = dev
	s.boots++
	if s.onBoot != nil {
		s.onBoot(dev)
	}
	return nil
}

// Step runs one main-loop iteration. When the platform reset during the
// iteration the device is rebooted before Step returns. A halted platform
// is left alone until a pin wakes it.
func (s *Simulator) Step() (pm.Outcome, error) {
	if s.platform.Halted() {
		return pm.OutcomePadSlept, nil
	}

	out, err := s.dev.Step()
	if err != nil {
		return out, err
	}
	if !out.Slept() {
		s.platform.Advance(s.cfg.ActiveTime)
	}
	if err := s.resetIfPending(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Simulator) resetIfPending() error {
	if !s.platform.TakeReset() {
		return nil
	}
	s.debugLog("platform reset", "status", s.platform.MCUStatus(), "at", s.platform.Now())
	if err := s.dev.Close(); err != nil {
		return err
	}
	s.stack.PowerCycle()
	s.radio = NewRadio()
	return s.boot()
}

// RunFor steps until d of virtual time has passed. A halted platform
// idles through the rest of the window unless a scheduled pin change
// wakes it.
func (s *Simulator) RunFor(d time.Duration) error {
	end := s.platform.Now() + d
	for s.platform.Now() < end {
		if s.platform.Halted() {
			s.platform.Advance(end - s.platform.Now())
			if err := s.resetIfPending(); err != nil {
				return err
			}
			continue
		}
		if _, err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// SetPin drives a pin. A pin that wakes a halted platform reboots the
// device.
func (s *Simulator) SetPin(pin pm.PinID, level bool) error {
	s.platform.SetPin(pin, level)
	return s.resetIfPending()
}

// OnBoot sets a callback run after every boot, including the first one if
// set before New returns. Use it to re-attach observers to the new device.
func (s *Simulator) OnBoot(fn func(*device.Device)) {
	s.onBoot = fn
	if fn != nil && s.dev != nil {
		fn(s.dev)
	}
}

// Close shuts the device down.
func (s *Simulator) Close() error {
	return s.dev.Close()
}

// Device returns the running device.
func (s *Simulator) Device() *device.Device { return s.dev }

// Boots counts boots, including the first.
func (s *Simulator) Boots() int { return s.boots }

// Now returns the virtual time since power-on.
func (s *Simulator) Now() time.Duration { return s.platform.Now() }

func (s *Simulator) Platform() *Platform             { return s.platform }
func (s *Simulator) Radio() *Radio                   { return s.radio }
func (s *Simulator) Stack() *Stack                   { return s.stack }
func (s *Simulator) Indicator() *Indicator           { return s.indicator }
func (s *Simulator) Services() *Services             { return s.services }
func (s *Simulator) Battery() *Battery               { return s.battery }
func (s *Simulator) Registers() nvstore.Registers    { return s.registers }
func (s *Simulator) Advertiser() dualmode.Advertiser { return s.advertiser }

func (s *Simulator) debugLog(msg string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, args...)
	}
}

var _ device.Battery = (*Battery)(nil)
