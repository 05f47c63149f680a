package sim

import (
	"errors"
	"log/slog"
	"time"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/dualmode"
	"github.com/thsensor/thsensor-go/pkg/pm"
)

// Radio is a simulated transceiver.
type Radio struct {
	powered    bool
	channel    uint8
	powerDowns int
}

// NewRadio returns a powered radio.
func NewRadio() *Radio {
	return &Radio{powered: true}
}

func (r *Radio) PowerDown() {
	r.powered = false
	r.powerDowns++
}

func (r *Radio) Restore(channel uint8) {
	r.powered = true
	r.channel = channel
}

// Powered reports whether the radio is on.
func (r *Radio) Powered() bool { return r.powered }

// Channel returns the channel last restored.
func (r *Radio) Channel() uint8 { return r.channel }

// PowerDowns counts power downs.
func (r *Radio) PowerDowns() int { return r.powerDowns }

// Blink is one indicator blink request.
type Blink struct {
	Times   int
	On, Off time.Duration
}

// Identify is one identify request.
type Identify struct {
	Endpoint     uint8
	SrcAddr      uint16
	IdentifyTime uint16
}

// Indicator records LED and display output.
type Indicator struct {
	Blinks     []Blink
	Identifies []Identify
	Connected  bool

	logger *slog.Logger
}

// NewIndicator creates an Indicator. logger may be nil.
func NewIndicator(logger *slog.Logger) *Indicator {
	return &Indicator{logger: logger}
}

func (i *Indicator) Blink(times int, on, off time.Duration) {
	i.Blinks = append(i.Blinks, Blink{Times: times, On: on, Off: off})
	i.info("led blink", "times", times, "on", on, "off", off)
}

func (i *Indicator) ShowConnected(connected bool) {
	i.Connected = connected
	i.info("display", "connected", connected)
}

// Identify records an identify request and blinks once per second of
// identify time.
func (i *Indicator) Identify(endpoint uint8, srcAddr uint16, identifyTime uint16) {
	i.Identifies = append(i.Identifies, Identify{endpoint, srcAddr, identifyTime})
	i.Blink(int(identifyTime), 500*time.Millisecond, 500*time.Millisecond)
}

func (i *Indicator) info(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Info(msg, args...)
	}
}

// Services records the periodic services started by the controller. A
// reboot request resets the platform.
type Services struct {
	platform *Platform

	OTAQueries []time.Duration
	CheckIns   int
	Reboots    int
}

// NewServices creates Services that reboot platform.
func NewServices(platform *Platform) *Services {
	return &Services{platform: platform}
}

func (s *Services) StartOTAQuery(interval time.Duration) {
	s.OTAQueries = append(s.OTAQueries, interval)
}

func (s *Services) StartCheckIn() { s.CheckIns++ }

func (s *Services) Reboot() {
	s.Reboots++
	s.platform.Reset(pm.MCUStatusPowerOn)
}

// Battery is a settable supply voltage.
type Battery struct {
	mv uint16
}

// NewBattery returns a battery at mv.
func NewBattery(mv uint16) *Battery {
	return &Battery{mv: mv}
}

func (b *Battery) MilliVolts() uint16 { return b.mv }

// Set changes the voltage.
func (b *Battery) Set(mv uint16) { b.mv = mv }

// ErrAdvertiserFailed is returned by a failing Advertiser.
var ErrAdvertiserFailed = errors.New("sim: advertiser start failed")

// Advertiser is an in-memory fallback radio.
type Advertiser struct {
	// Fail makes Start return ErrAdvertiserFailed.
	Fail bool

	running bool
	info    dualmode.DeviceInfo
	starts  int
	stops   int
}

func (a *Advertiser) Start(info dualmode.DeviceInfo) error {
	if a.Fail {
		return ErrAdvertiserFailed
	}
	a.running = true
	a.info = info
	a.starts++
	return nil
}

func (a *Advertiser) Stop() error {
	a.running = false
	a.stops++
	return nil
}

// Running reports whether the advertiser is up.
func (a *Advertiser) Running() bool { return a.running }

// Info returns the last advertised device.
func (a *Advertiser) Info() dualmode.DeviceInfo { return a.info }

// Starts counts successful starts.
func (a *Advertiser) Starts() int { return a.starts }

// Compile-time interface satisfaction checks.
var (
	_ pm.Radio                      = (*Radio)(nil)
	_ commissioning.Indicator       = (*Indicator)(nil)
	_ commissioning.IdentifyHandler = (*Indicator)(nil)
	_ commissioning.Services        = (*Services)(nil)
	_ dualmode.Advertiser           = (*Advertiser)(nil)
)
