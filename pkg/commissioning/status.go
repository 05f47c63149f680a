package commissioning

// InitStatus is the result of stack initialization.
type InitStatus uint8

const (
	// InitSuccess means the stack initialized.
	InitSuccess InitStatus = 0

	// InitFailure means initialization failed, e.g. no parent answered.
	InitFailure InitStatus = 1
)

// String returns the init status name.
func (s InitStatus) String() string {
	switch s {
	case InitSuccess:
		return "SUCCESS"
	case InitFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Status is a commissioning outcome reported by the stack.
type Status uint8

// Commissioning outcome codes.
const (
	StatusSuccess Status = iota
	StatusInProgress
	StatusNotAACapable
	StatusNoNetwork
	StatusTargetFailure
	StatusFormationFailure
	StatusNoIdentifyQueryResponse
	StatusBindingTableFull
	StatusNoScanResponse
	StatusNotPermitted
	StatusTCLKExFailure
	StatusParentLost
	StatusRejoinFailure
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusNotAACapable:
		return "NOT_AA_CAPABLE"
	case StatusNoNetwork:
		return "NO_NETWORK"
	case StatusTargetFailure:
		return "TARGET_FAILURE"
	case StatusFormationFailure:
		return "FORMATION_FAILURE"
	case StatusNoIdentifyQueryResponse:
		return "NO_IDENTIFY_QUERY_RESPONSE"
	case StatusBindingTableFull:
		return "BINDING_TABLE_FULL"
	case StatusNoScanResponse:
		return "NO_SCAN_RESPONSE"
	case StatusNotPermitted:
		return "NOT_PERMITTED"
	case StatusTCLKExFailure:
		return "TCLK_EX_FAILURE"
	case StatusParentLost:
		return "PARENT_LOST"
	case StatusRejoinFailure:
		return "REJOIN_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus returns the Status with the given name.
func ParseStatus(name string) (Status, bool) {
	for s := StatusSuccess; s <= StatusRejoinFailure; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// State is the commissioning lifecycle state.
type State uint8

const (
	// StateUninitialized is the state before the stack reported init.
	StateUninitialized State = iota

	// StateSteering means a steer is scheduled or running.
	StateSteering

	// StateJoined means the device is on a network.
	StateJoined

	// StateRejoinPending means a rejoin request is outstanding.
	StateRejoinPending

	// StateRejoinBackoff means the device waits before the next rejoin.
	StateRejoinBackoff
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateSteering:
		return "STEERING"
	case StateJoined:
		return "JOINED"
	case StateRejoinPending:
		return "REJOIN_PENDING"
	case StateRejoinBackoff:
		return "REJOIN_BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// PollRate selects how often a sleepy end device polls its parent.
type PollRate uint8

const (
	// PollRateDefault is the normal rate.
	PollRateDefault PollRate = iota

	// PollRateQueue is the fast rate used while data is queued for the
	// device, e.g. during a firmware download.
	PollRateQueue
)

// String returns the rate name.
func (r PollRate) String() string {
	switch r {
	case PollRateDefault:
		return "DEFAULT"
	case PollRateQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// OTAEvent is a firmware upgrade progress event.
type OTAEvent uint8

const (
	// OTAStart is sent when a download starts.
	OTAStart OTAEvent = iota

	// OTAComplete is sent when the upgrade finished or aborted.
	OTAComplete

	// OTAImageDone is sent when the image was fully received.
	OTAImageDone
)

// String returns the event name.
func (e OTAEvent) String() string {
	switch e {
	case OTAStart:
		return "START"
	case OTAComplete:
		return "COMPLETE"
	case OTAImageDone:
		return "IMAGE_DONE"
	default:
		return "UNKNOWN"
	}
}
