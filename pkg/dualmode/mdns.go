package dualmode

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// mDNS service constants.
const (
	// ServiceType is the DNS-SD service type of the fallback advertisement.
	ServiceType = "_thsensor._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the advertised port.
	DefaultPort = 5683

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// MDNSConfig configures the mDNS advertiser.
type MDNSConfig struct {
	// Interface restricts advertising to one interface. Empty means all.
	Interface string

	// Port is the advertised port. Zero selects DefaultPort.
	Port int

	// TTL is the DNS record TTL. Zero keeps the zeroconf default.
	TTL time.Duration
}

// MDNSAdvertiser advertises the device over mDNS.
type MDNSAdvertiser struct {
	config MDNSConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates an mDNS advertiser.
func NewMDNSAdvertiser(config MDNSConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// InstanceName returns the service instance name for info.
func InstanceName(info DeviceInfo) string {
	name := "THS-" + info.DeviceID
	if info.DeviceID == "" {
		name = "THS-" + info.Name
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// TXTRecords returns the TXT strings for info.
func TXTRecords(info DeviceInfo) []string {
	txt := []string{"mode=fallback"}
	if info.DeviceID != "" {
		txt = append(txt, "id="+info.DeviceID)
	}
	if info.Name != "" {
		txt = append(txt, "name="+info.Name)
	}
	if info.Firmware != "" {
		txt = append(txt, "fw="+info.Firmware)
	}
	return txt
}

// Start registers the service, replacing a running registration.
func (a *MDNSAdvertiser) Start(info DeviceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := a.config.Port
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		InstanceName(info),
		ServiceType,
		Domain,
		port,
		TXTRecords(info),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register fallback service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the registration.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// Running reports whether a registration is active.
func (a *MDNSAdvertiser) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// interfaces returns nil (all interfaces) unless one is configured.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Compile-time interface satisfaction check.
var _ Advertiser = (*MDNSAdvertiser)(nil)
