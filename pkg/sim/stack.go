package sim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/thsensor/thsensor-go/pkg/commissioning"
	"github.com/thsensor/thsensor-go/pkg/device"
	"github.com/thsensor/thsensor-go/pkg/persistence"
)

// Stack defaults.
const (
	// AllChannels is the 2.4 GHz channel mask 11-26.
	AllChannels uint32 = 0x07FFF800

	DefaultScanDuration uint8  = 3
	DefaultChannel      uint8  = 11
	DefaultPanID        uint16 = 0x1A62

	// FrameCounterNVStep is how far ahead the NV copy of the frame counter
	// is written, so a cold boot never reuses a counter.
	FrameCounterNVStep uint32 = 1024
)

// ErrNotStarted is returned when the stack is used before Start.
var ErrNotStarted = errors.New("sim: stack not started")

// StackConfig configures a Stack.
type StackConfig struct {
	// Store persists the network state. Nil keeps it in memory only.
	Store *persistence.NetworkStateStore

	// SteerOutcomes are reported by successive steering attempts. When
	// exhausted, DefaultSteer is reported. The zero value is SUCCESS.
	SteerOutcomes []commissioning.Status
	DefaultSteer  commissioning.Status

	// RejoinOutcomes are reported by successive rejoin requests. When
	// exhausted, DefaultRejoin is reported. The zero value is SUCCESS.
	RejoinOutcomes []commissioning.Status
	DefaultRejoin  commissioning.Status

	// FailInit makes Start report InitFailure.
	FailInit bool

	Logger *slog.Logger
}

// Rejoin is one recorded rejoin request.
type Rejoin struct {
	ChannelMask  uint32
	ScanDuration uint8
}

// Stack is a scripted network stack. Outcomes of steering and rejoin
// requests are queued and reported from the next Task call, the way the
// real stack reports from its task loop.
type Stack struct {
	cfg     StackConfig
	handler device.EventHandler

	state    persistence.NetworkState
	counter  uint32
	restored bool

	pending []func(device.EventHandler)

	steerOutcomes  []commissioning.Status
	rejoinOutcomes []commissioning.Status

	Steers    int
	Rejoins   []Rejoin
	PollRates []commissioning.PollRate
	Paused    int
	Resumed   int

	logger *slog.Logger
}

// NewStack creates a factory-new stack.
func NewStack(cfg StackConfig) *Stack {
	return &Stack{
		cfg:            cfg,
		state:          persistence.NetworkState{FactoryNew: true},
		steerOutcomes:  append([]commissioning.Status(nil), cfg.SteerOutcomes...),
		rejoinOutcomes: append([]commissioning.Status(nil), cfg.RejoinOutcomes...),
		logger:         cfg.Logger,
	}
}

// Start loads the network state and queues the init callback.
func (s *Stack) Start(h device.EventHandler) error {
	if s.cfg.Store != nil {
		st, err := s.cfg.Store.Load()
		if err != nil {
			return fmt.Errorf("load network state: %w", err)
		}
		if st != nil {
			s.state = *st
		}
	}
	s.handler = h
	if !s.restored {
		s.counter = s.state.OutgoingFrameCounter
	}

	status := commissioning.InitSuccess
	if s.cfg.FailInit {
		status = commissioning.InitFailure
	}
	joined := s.Joined()
	s.enqueue(func(h device.EventHandler) { h.OnInit(status, joined) })
	s.debugLog("Start", "joined", joined, "factoryNew", s.state.FactoryNew, "frameCounter", s.counter)
	return nil
}

// PowerCycle drops everything held in RAM. Persisted network state and the
// outcome scripts survive.
func (s *Stack) PowerCycle() {
	s.handler = nil
	s.pending = nil
	s.counter = 0
	s.restored = false
}

// Task delivers the callbacks queued before this call.
func (s *Stack) Task() {
	if s.handler == nil {
		return
	}
	batch := s.pending
	s.pending = nil
	for _, fn := range batch {
		fn(s.handler)
	}
}

// Busy reports queued callbacks.
func (s *Stack) Busy() bool { return len(s.pending) > 0 }

func (s *Stack) TaskDone() bool { return true }

func (s *Stack) OutgoingFrameCounter() uint32 { return s.counter }

// RestoreFrameCounter sets the RAM frame counter. A restored counter takes
// precedence over the NV copy loaded by Start.
func (s *Stack) RestoreFrameCounter(v uint32) {
	s.debugLog("RestoreFrameCounter", "value", v)
	s.counter = v
	s.restored = true
}

// CurrentChannel returns the operating channel.
func (s *Stack) CurrentChannel() uint8 {
	if s.state.Channel == 0 {
		return DefaultChannel
	}
	return s.state.Channel
}

func (s *Stack) PauseSecondClock()  { s.Paused++ }
func (s *Stack) ResumeSecondClock() { s.Resumed++ }

// StartNetworkSteer sends a beacon request and queues the next steering
// outcome.
func (s *Stack) StartNetworkSteer() {
	s.Steers++
	s.sendFrame()
	status := next(&s.steerOutcomes, s.cfg.DefaultSteer)
	if status == commissioning.StatusSuccess {
		s.join()
	}
	s.debugLog("StartNetworkSteer", "attempt", s.Steers, "outcome", status)
	s.Inject(status)
}

// RequestRejoinWithBackoff queues the next rejoin outcome.
func (s *Stack) RequestRejoinWithBackoff(channelMask uint32, scanDuration uint8) {
	s.Rejoins = append(s.Rejoins, Rejoin{ChannelMask: channelMask, ScanDuration: scanDuration})
	s.sendFrame()
	status := next(&s.rejoinOutcomes, s.cfg.DefaultRejoin)
	if status == commissioning.StatusSuccess {
		s.join()
	}
	s.debugLog("RequestRejoinWithBackoff", "mask", fmt.Sprintf("0x%08X", channelMask), "outcome", status)
	s.Inject(status)
}

func (s *Stack) SetPollRate(rate commissioning.PollRate) {
	s.PollRates = append(s.PollRates, rate)
}

func (s *Stack) IsFactoryNew() bool { return s.state.FactoryNew }

func (s *Stack) ChannelMask() uint32 { return AllChannels }

func (s *Stack) ScanDuration() uint8 { return DefaultScanDuration }

// Joined reports whether the stack holds network credentials.
func (s *Stack) Joined() bool {
	return !s.state.FactoryNew && s.state.PanID != 0
}

// Inject queues a commissioning callback.
func (s *Stack) Inject(status commissioning.Status) {
	s.enqueue(func(h device.EventHandler) { h.OnCommissioning(status) })
}

// InjectOTA queues an OTA progress callback.
func (s *Stack) InjectOTA(evt commissioning.OTAEvent, success bool) {
	s.enqueue(func(h device.EventHandler) { h.OnOTAEvent(evt, success) })
}

// InjectIdentify queues an identify callback.
func (s *Stack) InjectIdentify(endpoint uint8, srcAddr uint16, identifyTime uint16) {
	s.enqueue(func(h device.EventHandler) { h.OnIdentify(endpoint, srcAddr, identifyTime) })
}

// Leave leaves the network, returning the stack to factory new, and queues
// the leave confirm.
func (s *Stack) Leave() error {
	s.state.FactoryNew = true
	s.state.PanID = 0
	s.state.Channel = 0
	if err := s.save(); err != nil {
		return err
	}
	s.enqueue(func(h device.EventHandler) { h.OnLeaveConfirm(true) })
	return nil
}

// QueueSteerOutcomes appends steering outcomes to the script.
func (s *Stack) QueueSteerOutcomes(statuses ...commissioning.Status) {
	s.steerOutcomes = append(s.steerOutcomes, statuses...)
}

// QueueRejoinOutcomes appends rejoin outcomes to the script.
func (s *Stack) QueueRejoinOutcomes(statuses ...commissioning.Status) {
	s.rejoinOutcomes = append(s.rejoinOutcomes, statuses...)
}

// NetworkState returns a copy of the network state.
func (s *Stack) NetworkState() persistence.NetworkState { return s.state }

func (s *Stack) join() {
	s.state.FactoryNew = false
	s.state.PanID = DefaultPanID
	s.state.Channel = DefaultChannel
	if err := s.save(); err != nil && s.logger != nil {
		s.logger.Warn("network state save failed", "error", err)
	}
}

func (s *Stack) sendFrame() {
	s.counter++
	if s.counter >= s.state.OutgoingFrameCounter {
		s.state.OutgoingFrameCounter = s.counter + FrameCounterNVStep
		if err := s.save(); err != nil && s.logger != nil {
			s.logger.Warn("network state save failed", "error", err)
		}
	}
}

func (s *Stack) save() error {
	if s.cfg.Store == nil {
		return nil
	}
	st := s.state
	if err := s.cfg.Store.Save(&st); err != nil {
		return err
	}
	s.state.Version, s.state.SavedAt = st.Version, st.SavedAt
	return nil
}

func (s *Stack) enqueue(fn func(device.EventHandler)) {
	s.pending = append(s.pending, fn)
}

func (s *Stack) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func next(script *[]commissioning.Status, def commissioning.Status) commissioning.Status {
	if len(*script) == 0 {
		return def
	}
	st := (*script)[0]
	*script = (*script)[1:]
	return st
}

var _ device.Stack = (*Stack)(nil)
