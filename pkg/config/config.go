package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/lptick"
	"github.com/thsensor/thsensor-go/pkg/pm"
)

// Config is a device profile.
type Config struct {
	Device        Device        `yaml:"device"`
	Clock         Clock         `yaml:"clock"`
	Power         Power         `yaml:"power"`
	Commissioning Commissioning `yaml:"commissioning"`
	Storage       Storage       `yaml:"storage"`
	Log           Log           `yaml:"log"`
	Metrics       Metrics       `yaml:"metrics"`
	Fallback      Fallback      `yaml:"fallback"`
}

// Device identifies the device.
type Device struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Firmware string `yaml:"firmware"`
}

// Clock selects the tick sources.
type Clock struct {
	// Source is "crystal" or "rc".
	Source string `yaml:"source"`

	SysTicksPerUs uint32 `yaml:"sys_ticks_per_us"`
}

// Pin is one wake pin.
type Pin struct {
	Pin uint16 `yaml:"pin"`

	// Level is "low" or "high".
	Level string `yaml:"level"`
}

// Power configures the sleep scheduler.
type Power struct {
	ShortSleepMax   time.Duration `yaml:"short_sleep_max"`
	DeepSleepOnIdle bool          `yaml:"deep_sleep_on_idle"`
	WakePins        []Pin         `yaml:"wake_pins"`

	// LowBatteryMv is the battery voltage below which the device
	// hibernates. Zero disables the guard.
	LowBatteryMv uint16 `yaml:"low_battery_mv"`

	// LowBatterySleep is the hibernation time.
	LowBatterySleep time.Duration `yaml:"low_battery_sleep"`
}

// Tiers is the steer retry curve.
type Tiers struct {
	ShortBelow  uint32        `yaml:"short_below"`
	Short       time.Duration `yaml:"short"`
	MediumBelow uint32        `yaml:"medium_below"`
	Medium      time.Duration `yaml:"medium"`
	ResetTo     uint32        `yaml:"reset_to"`
}

// Commissioning configures the commissioning controller.
type Commissioning struct {
	OTAQueryInterval time.Duration `yaml:"ota_query_interval"`
	RejoinBackoff    time.Duration `yaml:"rejoin_backoff"`
	Tiers            Tiers         `yaml:"steer_tiers"`

	// JitterSeed fixes the jitter source. Zero seeds from the clock.
	JitterSeed int64 `yaml:"jitter_seed"`
}

// Storage configures persistent files of the simulator.
type Storage struct {
	// NVPath is the analog register image. Empty keeps registers in memory.
	NVPath string `yaml:"nv_path"`

	// NetworkStatePath is the simulated stack's network state.
	NetworkStatePath string `yaml:"network_state_path"`
}

// Log configures logging.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Events is the .zlog event log path. Empty disables it.
	Events string `yaml:"events"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Fallback configures the host stand-in for the fallback radio.
type Fallback struct {
	// MDNS advertises the device over mDNS while the fallback is active.
	MDNS bool `yaml:"mdns"`

	Interface string `yaml:"interface"`
	Port      int    `yaml:"port"`
}

// Default returns the reference board profile.
func Default() *Config {
	t := commissioning.DefaultTiers
	return &Config{
		Device: Device{
			Name:     "thsensor",
			Firmware: "dev",
		},
		Clock: Clock{
			Source:        lptick.KindCrystal.String(),
			SysTicksPerUs: lptick.DefaultSysTicksPerUs,
		},
		Power: Power{
			ShortSleepMax:   pm.DefaultShortSleepMax,
			LowBatterySleep: 30 * time.Minute,
		},
		Commissioning: Commissioning{
			OTAQueryInterval: commissioning.DefaultOTAQueryInterval,
			RejoinBackoff:    commissioning.DefaultRejoinBackoff,
			Tiers: Tiers{
				ShortBelow:  t.ShortBelow,
				Short:       t.Short,
				MediumBelow: t.MediumBelow,
				Medium:      t.Medium,
				ResetTo:     t.ResetTo,
			},
		},
		Log: Log{Level: "info"},
	}
}

// Parse parses a profile on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a profile file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error(), Cause: err}
	}
	return cfg, nil
}

// Validate checks the profile.
func (c *Config) Validate() error {
	if _, err := lptick.ParseKind(c.Clock.Source); err != nil {
		return &LoadError{Message: "clock.source", Cause: err}
	}
	if c.Clock.SysTicksPerUs == 0 || c.Clock.SysTicksPerUs > 64 {
		return &LoadError{Message: fmt.Sprintf("clock.sys_ticks_per_us %d out of range 1..64", c.Clock.SysTicksPerUs)}
	}
	if limit := c.MaxShortSleep(); c.Power.ShortSleepMax <= 0 || c.Power.ShortSleepMax > limit {
		return &LoadError{Message: fmt.Sprintf("power.short_sleep_max %v out of range (0, %v]", c.Power.ShortSleepMax, limit)}
	}
	for i, p := range c.Power.WakePins {
		if _, err := ParseLevel(p.Level); err != nil {
			return &LoadError{Message: fmt.Sprintf("power.wake_pins[%d]", i), Cause: err}
		}
	}
	if c.Power.LowBatteryMv > 0 && c.Power.LowBatterySleep <= 0 {
		return &LoadError{Message: "power.low_battery_sleep must be positive when low_battery_mv is set"}
	}

	t := c.Commissioning.Tiers
	if t.ShortBelow > t.MediumBelow {
		return &LoadError{Message: "commissioning.steer_tiers: short_below exceeds medium_below"}
	}
	if t.Short <= 0 || t.Medium <= 0 {
		return &LoadError{Message: "commissioning.steer_tiers: delays must be positive"}
	}
	if t.ResetTo > commissioning.MaxAttempts {
		return &LoadError{Message: fmt.Sprintf("commissioning.steer_tiers.reset_to exceeds %d", commissioning.MaxAttempts)}
	}
	if c.Commissioning.RejoinBackoff <= 0 || c.Commissioning.OTAQueryInterval <= 0 {
		return &LoadError{Message: "commissioning: intervals must be positive"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &LoadError{Message: fmt.Sprintf("log.level %q unknown", c.Log.Level)}
	}
	return nil
}

// MaxShortSleep is the longest sleep whose system tick deadline stays
// within half the 32-bit counter range.
func (c *Config) MaxShortSleep() time.Duration {
	ticksPerMs := uint64(c.Clock.SysTicksPerUs) * 1000
	if ticksPerMs == 0 {
		return 0
	}
	return time.Duration(math.MaxInt32/ticksPerMs) * time.Millisecond
}

// TickSource returns the configured 32 kHz source.
func (c *Config) TickSource() (lptick.Source, error) {
	kind, err := lptick.ParseKind(c.Clock.Source)
	if err != nil {
		return nil, err
	}
	return lptick.New(kind, c.Clock.SysTicksPerUs)
}

// PinConfigs returns the wake pins in scheduler form. It assumes a
// validated profile.
func (c *Config) PinConfigs() []pm.PinConfig {
	pins := make([]pm.PinConfig, 0, len(c.Power.WakePins))
	for _, p := range c.Power.WakePins {
		level, _ := ParseLevel(p.Level)
		pins = append(pins, pm.PinConfig{Pin: pm.PinID(p.Pin), Level: level})
	}
	return pins
}

// SteerTiers returns the steer retry curve in controller form.
func (c *Config) SteerTiers() commissioning.Tiers {
	t := c.Commissioning.Tiers
	return commissioning.Tiers{
		ShortBelow:  t.ShortBelow,
		Short:       t.Short,
		MediumBelow: t.MediumBelow,
		Medium:      t.Medium,
		ResetTo:     t.ResetTo,
	}
}

// ParseLevel parses "low" or "high".
func ParseLevel(s string) (pm.WakeupLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return pm.LevelLow, nil
	case "high", "1":
		return pm.LevelHigh, nil
	}
	return 0, fmt.Errorf("unknown wake level %q", s)
}
