package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// StateVersion is the current version of both state file formats.
const StateVersion = 1

// AnalogRegisterCount is the size of the analog register space.
const AnalogRegisterCount = 256

// AnalogImage is a snapshot of the analog register space.
type AnalogImage struct {
	// Version is the image format version.
	Version int `cbor:"1,keyasint"`

	// SavedAt is when the image was last written.
	SavedAt time.Time `cbor:"2,keyasint"`

	// Registers holds one byte per analog register address.
	Registers []byte `cbor:"3,keyasint"`
}

var (
	imageEncMode cbor.EncMode
	imageDecMode cbor.DecMode
)

func init() {
	var err error

	imageEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create analog image encoder mode: %v", err))
	}

	imageDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create analog image decoder mode: %v", err))
	}
}

// AnalogStore manages persistence of the analog register image.
type AnalogStore struct {
	mu   sync.Mutex
	path string
}

// NewAnalogStore creates a store writing to path.
func NewAnalogStore(path string) *AnalogStore {
	return &AnalogStore{path: path}
}

// Save writes the image to disk.
func (s *AnalogStore) Save(img *AnalogImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	img.Version = StateVersion
	img.SavedAt = time.Now()

	data, err := imageEncMode.Marshal(img)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Load reads the image from disk.
// Returns nil, nil if the file doesn't exist (registers never written).
func (s *AnalogStore) Load() (*AnalogImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	img := &AnalogImage{}
	if err := imageDecMode.Unmarshal(data, img); err != nil {
		return nil, fmt.Errorf("decode analog image %s: %w", s.path, err)
	}
	if len(img.Registers) != AnalogRegisterCount {
		return nil, fmt.Errorf("analog image %s: %d registers, want %d",
			s.path, len(img.Registers), AnalogRegisterCount)
	}
	return img, nil
}

// Clear removes the image file.
func (s *AnalogStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}

// NetworkState is the Zigbee stack state kept in NV by the host stack.
type NetworkState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// FactoryNew is true until the device joins a network for the first time
	// and again after a factory reset.
	FactoryNew bool `json:"factory_new"`

	// Channel is the operating channel (11-26).
	Channel uint8 `json:"channel,omitempty"`

	// PanID is the PAN of the joined network.
	PanID uint16 `json:"pan_id,omitempty"`

	// PollRate is the last configured poll rate attribute.
	PollRate time.Duration `json:"poll_rate,omitempty"`

	// OutgoingFrameCounter is the NV copy of the security frame counter.
	OutgoingFrameCounter uint32 `json:"outgoing_frame_counter"`
}

// NetworkStateStore manages persistence of NetworkState to a JSON file.
type NetworkStateStore struct {
	mu   sync.Mutex
	path string
}

// NewNetworkStateStore creates a store writing to path.
func NewNetworkStateStore(path string) *NetworkStateStore {
	return &NetworkStateStore{path: path}
}

// Save persists the network state to disk.
func (s *NetworkStateStore) Save(state *NetworkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Load reads the network state from disk.
// Returns nil, nil if the file doesn't exist (factory-new device).
func (s *NetworkStateStore) Load() (*NetworkState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &NetworkState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *NetworkStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
