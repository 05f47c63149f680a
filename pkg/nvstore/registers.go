package nvstore

import (
	"sync"

	"github.com/thsensor/thsensor-go/pkg/persistence"
)

// Registers is byte-addressable analog register storage.
type Registers interface {
	ReadAnalog(addr uint8) byte
	WriteAnalog(addr uint8, v byte)
}

// MemoryRegisters keeps the register space in memory. The zero value is
// ready to use.
type MemoryRegisters struct {
	mu   sync.Mutex
	regs [persistence.AnalogRegisterCount]byte
}

// ReadAnalog returns the register at addr.
func (m *MemoryRegisters) ReadAnalog(addr uint8) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// WriteAnalog sets the register at addr.
func (m *MemoryRegisters) WriteAnalog(addr uint8, v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = v
}

// FileRegisters is a write-through register space backed by an
// persistence.AnalogStore, so register contents survive process restarts.
type FileRegisters struct {
	mu    sync.Mutex
	store *persistence.AnalogStore
	regs  []byte
	err   error
}

// OpenFileRegisters loads the register image at path, starting from all
// zeros when no image exists yet.
func OpenFileRegisters(path string) (*FileRegisters, error) {
	store := persistence.NewAnalogStore(path)
	img, err := store.Load()
	if err != nil {
		return nil, err
	}

	f := &FileRegisters{
		store: store,
		regs:  make([]byte, persistence.AnalogRegisterCount),
	}
	if img != nil {
		copy(f.regs, img.Registers)
	}
	return f, nil
}

// ReadAnalog returns the register at addr.
func (f *FileRegisters) ReadAnalog(addr uint8) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[addr]
}

// WriteAnalog sets the register at addr and writes the image through.
// A failed write is kept and reported by Err; the in-memory value is
// updated regardless.
func (f *FileRegisters) WriteAnalog(addr uint8, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.regs[addr] = v
	img := &persistence.AnalogImage{Registers: append([]byte(nil), f.regs...)}
	if err := f.store.Save(img); err != nil && f.err == nil {
		f.err = err
	}
}

// Err returns the first write-through failure, if any.
func (f *FileRegisters) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Compile-time interface satisfaction checks.
var (
	_ Registers = (*MemoryRegisters)(nil)
	_ Registers = (*FileRegisters)(nil)
)
