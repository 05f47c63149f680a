package nvstore

// Flag values of the frame counter record.
const (
	FlagValid   byte = 0x5A
	FlagCleared byte = 0x00
)

// Layout places the frame counter record in the register space.
type Layout struct {
	// FlagAddr is the address of the flag byte.
	FlagAddr uint8

	// CounterAddr is the address of the least significant counter byte;
	// the record uses CounterAddr..CounterAddr+3.
	CounterAddr uint8
}

// DefaultLayout is the record placement on the reference board.
var DefaultLayout = Layout{
	FlagAddr:    0x3A,
	CounterAddr: 0x35,
}

// FrameCounter stores the outgoing frame counter in analog registers.
type FrameCounter struct {
	regs   Registers
	layout Layout
}

// NewFrameCounter creates a FrameCounter over regs.
func NewFrameCounter(regs Registers, layout Layout) *FrameCounter {
	return &FrameCounter{regs: regs, layout: layout}
}

// Save writes v and marks the record valid.
func (f *FrameCounter) Save(v uint32) {
	a := f.layout.CounterAddr
	f.regs.WriteAnalog(f.layout.FlagAddr, FlagValid)
	f.regs.WriteAnalog(a, byte(v))
	f.regs.WriteAnalog(a+1, byte(v>>8))
	f.regs.WriteAnalog(a+2, byte(v>>16))
	f.regs.WriteAnalog(a+3, byte(v>>24))
}

// Valid reports whether the record holds an unconsumed value.
func (f *FrameCounter) Valid() bool {
	return f.regs.ReadAnalog(f.layout.FlagAddr) == FlagValid
}

// Take consumes the record. It clears the flag and returns the stored value
// together with whether the flag was set before the call.
func (f *FrameCounter) Take() (uint32, bool) {
	valid := f.Valid()
	f.regs.WriteAnalog(f.layout.FlagAddr, FlagCleared)
	if !valid {
		return 0, false
	}
	return f.read(), true
}

// Invalidate clears the flag without reading.
func (f *FrameCounter) Invalidate() {
	f.regs.WriteAnalog(f.layout.FlagAddr, FlagCleared)
}

func (f *FrameCounter) read() uint32 {
	a := f.layout.CounterAddr
	return uint32(f.regs.ReadAnalog(a+3))<<24 |
		uint32(f.regs.ReadAnalog(a+2))<<16 |
		uint32(f.regs.ReadAnalog(a+1))<<8 |
		uint32(f.regs.ReadAnalog(a))
}
