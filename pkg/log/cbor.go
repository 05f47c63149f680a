package log

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Event map keys. Envelope fields use 1-9 and payloads 10-15, one payload
// per event, chosen by its category:
//
//	10 Sleep         CategorySleep    {1 mode, 2 wakeup, 3 duration, 4 long}
//	11 Wake          CategoryWake     {1 ticks, 2 elapsed, 3 remainder, 4 clock}
//	12 FrameCounter  CategoryPersist  {1 action, 2 value, 3 valid}
//	13 Timer         CategoryTimer    {1 kind, 2 action, 3 delay, 4 attempt}
//	14 StateChange   CategoryState    {1 old, 2 new, 3 reason}
//	15 Error         CategoryError    {1 layer, 2 message, 3 context}
//
// Durations are encoded as integer nanoseconds.

// ErrPayloadMismatch is returned for an event that carries more than one
// payload or a payload that does not belong to its category.
var ErrPayloadMismatch = errors.New("log: event payload does not match category")

var (
	logEncMode cbor.EncMode
	logDecMode cbor.DecMode
)

func init() {
	var err error

	// Canonical so the same event always produces the same bytes in a .zlog.
	logEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encoder mode: %v", err))
	}

	// Unknown keys are skipped so older tools can read logs from newer
	// firmware builds.
	logDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decoder mode: %v", err))
	}
}

// CheckPayload verifies that event carries at most one payload and that
// the payload matches its category. Events without a payload pass.
func CheckPayload(event Event) error {
	var (
		n   int
		cat Category
	)
	set := func(present bool, c Category) {
		if present {
			n++
			cat = c
		}
	}
	set(event.Sleep != nil, CategorySleep)
	set(event.Wake != nil, CategoryWake)
	set(event.FrameCounter != nil, CategoryPersist)
	set(event.Timer != nil, CategoryTimer)
	set(event.StateChange != nil, CategoryState)
	set(event.Error != nil, CategoryError)

	switch {
	case n == 0:
		return nil
	case n > 1:
		return fmt.Errorf("%w: %d payloads", ErrPayloadMismatch, n)
	case cat != event.Category:
		return fmt.Errorf("%w: %s payload in %s event", ErrPayloadMismatch, cat, event.Category)
	}
	return nil
}

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	if err := CheckPayload(event); err != nil {
		return nil, err
	}
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes CBOR bytes into an Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if err := CheckPayload(event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a stream encoder for .zlog files.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder for .zlog files.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
