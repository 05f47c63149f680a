package lptick

import (
	"errors"
	"fmt"
	"strings"
)

// Oscillator frequencies.
const (
	// CrystalHz is the nominal frequency of the external 32k crystal.
	CrystalHz = 32768

	// RCHz is the nominal frequency of the internal 32k RC oscillator.
	RCHz = 32000

	// DefaultSysTicksPerUs is the system timer rate of the reference board.
	DefaultSysTicksPerUs = 16
)

// ErrUnknownKind is returned when a clock source name cannot be parsed.
var ErrUnknownKind = errors.New("unknown 32k clock source")

// Kind identifies a 32 kHz clock source.
type Kind uint8

const (
	// KindCrystal is the external 32768 Hz crystal.
	KindCrystal Kind = iota

	// KindRC is the internal 32000 Hz RC oscillator.
	KindRC
)

// String returns the configuration name of the source.
func (k Kind) String() string {
	switch k {
	case KindCrystal:
		return "crystal"
	case KindRC:
		return "rc"
	default:
		return "unknown"
	}
}

// ParseKind parses "crystal" or "rc" (case insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crystal", "xtal", "ext":
		return KindCrystal, nil
	case "rc", "internal":
		return KindRC, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Source converts ticks of one 32 kHz oscillator.
type Source interface {
	// Kind identifies the oscillator.
	Kind() Kind

	// Hz is the nominal oscillator frequency.
	Hz() uint32

	// Split converts a tick count into whole milliseconds and the
	// sub-millisecond remainder expressed in system timer ticks.
	Split(ticks uint32) (ms uint32, remSysTicks uint32)

	// Ticks converts milliseconds into oscillator ticks.
	Ticks(ms uint32) uint32
}

// New returns the Source for kind. sysTicksPerUs of zero selects
// DefaultSysTicksPerUs.
func New(kind Kind, sysTicksPerUs uint32) (Source, error) {
	if sysTicksPerUs == 0 {
		sysTicksPerUs = DefaultSysTicksPerUs
	}
	switch kind {
	case KindCrystal:
		return Crystal{SysTicksPerUs: sysTicksPerUs}, nil
	case KindRC:
		return RC{SysTicksPerUs: sysTicksPerUs}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
}

// Elapsed returns the ticks between mark and now on a free-running 32-bit
// counter. Unsigned subtraction handles a single wraparound.
func Elapsed(now, mark uint32) uint32 {
	return now - mark
}

// Crystal converts ticks of the 32768 Hz crystal.
//
// 4096 crystal ticks are exactly 125 ms, so the conversion works in blocks
// of 4096 to stay inside 32-bit arithmetic for the full counter range.
type Crystal struct {
	SysTicksPerUs uint32
}

// Kind returns KindCrystal.
func (Crystal) Kind() Kind { return KindCrystal }

// Hz returns CrystalHz.
func (Crystal) Hz() uint32 { return CrystalHz }

// Split converts crystal ticks into milliseconds and a system tick remainder.
func (c Crystal) Split(ticks uint32) (uint32, uint32) {
	ms := (ticks / 4096) * 125
	rem := ticks % 4096

	// rem*125 is in units of 1/4096 ms.
	scaled := rem * 125
	ms += scaled / 4096
	frac := scaled % 4096

	// frac/4096 ms in microseconds is frac*1000/4096 == frac*125/512.
	us := (frac * 125) / 512
	return ms, us * c.SysTicksPerUs
}

// Ticks converts milliseconds into crystal ticks.
func (Crystal) Ticks(ms uint32) uint32 {
	return uint32(uint64(ms) * CrystalHz / 1000)
}

// RC converts ticks of the 32000 Hz internal oscillator.
type RC struct {
	SysTicksPerUs uint32
}

// Kind returns KindRC.
func (RC) Kind() Kind { return KindRC }

// Hz returns RCHz.
func (RC) Hz() uint32 { return RCHz }

// Split converts RC ticks into milliseconds and a system tick remainder.
func (r RC) Split(ticks uint32) (uint32, uint32) {
	ms := ticks / 32
	rem := (ticks % 32) * (r.SysTicksPerUs * 1000 / 32)
	return ms, rem
}

// Ticks converts milliseconds into RC ticks.
func (RC) Ticks(ms uint32) uint32 {
	return ms * 32
}

// Compile-time interface satisfaction checks.
var (
	_ Source = Crystal{}
	_ Source = RC{}
)
