package commissioning

import (
	"time"

	"github.com/thsensor/thsensor-go/pkg/timerqueue"
)

// Callbacks is the interface the network stack calls. The Controller
// implements it and is registered once at startup.
type Callbacks interface {
	// OnInit reports stack initialization and whether the device is
	// already on a network.
	OnInit(status InitStatus, joined bool)

	// OnCommissioning reports a commissioning outcome.
	OnCommissioning(status Status)

	// OnIdentify reports an identify request for an endpoint.
	OnIdentify(endpoint uint8, srcAddr uint16, identifyTime uint16)
}

// NetworkStack is the part of the Zigbee stack the controller drives.
type NetworkStack interface {
	StartNetworkSteer()
	RequestRejoinWithBackoff(channelMask uint32, scanDuration uint8)
	SetPollRate(rate PollRate)
	IsFactoryNew() bool
	ChannelMask() uint32
	ScanDuration() uint8
}

// Timers schedules and cancels retry timers.
type Timers interface {
	Schedule(cb timerqueue.Callback, arg any, delay time.Duration) timerqueue.Handle
	Cancel(h timerqueue.Handle)
}

// FallbackRadio is the secondary (BLE) radio.
type FallbackRadio interface {
	// RequestStart asks the main loop to bring the radio up.
	RequestStart()

	// Stop takes the radio down.
	Stop()
}

// Indicator is the visible device state: LED and display.
type Indicator interface {
	Blink(times int, on, off time.Duration)
	ShowConnected(connected bool)
}

// Services are the periodic application services that run while joined.
type Services interface {
	StartOTAQuery(interval time.Duration)
	StartCheckIn()
	Reboot()
}

// IdentifyHandler handles identify requests.
type IdentifyHandler interface {
	Identify(endpoint uint8, srcAddr uint16, identifyTime uint16)
}

type noopIndicator struct{}

func (noopIndicator) Blink(int, time.Duration, time.Duration) {}
func (noopIndicator) ShowConnected(bool)                      {}

type noopServices struct{}

func (noopServices) StartOTAQuery(time.Duration) {}
func (noopServices) StartCheckIn()               {}
func (noopServices) Reboot()                     {}
