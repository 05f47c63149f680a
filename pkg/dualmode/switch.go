package dualmode

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/thsensor/thsensor-go/pkg/metrics"
)

// ErrNoAdvertiser is returned by NewSwitch without an advertiser.
var ErrNoAdvertiser = errors.New("dualmode: advertiser is required")

// Advertiser is the secondary radio.
type Advertiser interface {
	// Start begins advertising the device.
	Start(info DeviceInfo) error

	// Stop ends advertising.
	Stop() error
}

// DeviceInfo is what the fallback radio advertises.
type DeviceInfo struct {
	// DeviceID is the device IEEE address in hex.
	DeviceID string

	// Name is the advertised name.
	Name string

	// Firmware is the firmware version string.
	Firmware string
}

// SwitchConfig configures a Switch.
type SwitchConfig struct {
	Advertiser Advertiser
	Info       DeviceInfo

	// Logger is the optional operational logger.
	Logger *slog.Logger
}

// Switch arbitrates between Zigbee and the fallback radio.
type Switch struct {
	mu sync.Mutex

	adv  Advertiser
	info DeviceInfo

	startRequested bool
	active         bool
	lastErr        error

	onChange func(active bool)

	logger *slog.Logger
}

// NewSwitch creates a Switch with the fallback radio off.
func NewSwitch(cfg SwitchConfig) (*Switch, error) {
	if cfg.Advertiser == nil {
		return nil, ErrNoAdvertiser
	}
	return &Switch{
		adv:    cfg.Advertiser,
		info:   cfg.Info,
		logger: cfg.Logger,
	}, nil
}

// RequestStart asks for the fallback radio. It only sets a flag; the radio
// starts on the next Poll.
func (s *Switch) RequestStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startRequested = true
}

// Stop takes the fallback radio down now and drops a pending request.
func (s *Switch) Stop() {
	s.mu.Lock()
	s.startRequested = false
	wasActive := s.active
	s.active = false
	cb := s.onChange
	s.mu.Unlock()

	if !wasActive {
		return
	}
	metrics.RecordFallbackRadio(false)
	if err := s.adv.Stop(); err != nil {
		s.debugLog("Stop: advertiser stop failed", "error", err)
	}
	if cb != nil {
		cb(false)
	}
}

// Poll services a pending start request. It returns the advertiser error,
// if any; the request is dropped either way and is raised again by the
// next commissioning failure.
func (s *Switch) Poll() error {
	s.mu.Lock()
	if !s.startRequested {
		s.mu.Unlock()
		return nil
	}
	s.startRequested = false
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.adv.Start(s.info); err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.debugLog("Poll: advertiser start failed", "error", err)
		return err
	}

	s.mu.Lock()
	s.active = true
	s.lastErr = nil
	cb := s.onChange
	s.mu.Unlock()

	metrics.RecordFallbackRadio(true)
	s.debugLog("Poll: fallback radio active", "device", s.info.DeviceID)
	if cb != nil {
		cb(true)
	}
	return nil
}

// Active reports whether the fallback radio is up.
func (s *Switch) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending reports whether a start request waits for Poll.
func (s *Switch) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startRequested
}

// LastError returns the error of the last failed start.
func (s *Switch) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnChange sets a callback for radio state changes.
func (s *Switch) OnChange(fn func(active bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Switch) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
