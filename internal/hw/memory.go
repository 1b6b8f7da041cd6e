package hw

import (
	"encoding/binary"
	"fmt"
)

// memEndian matches the byte order of the modeled hardware.
var memEndian = binary.LittleEndian

// Memory models a contiguous region of physical memory starting at a
// fixed physical base address. Page tables live inside this region and
// every hardware word is read and written through it, so table state is
// observable bit-for-bit.
type Memory struct {
	base uint64
	data []byte
}

// NewMemory creates a physical memory region of the given size based at
// the given physical address.
func NewMemory(base, size uint64) *Memory {
	return &Memory{
		base: base,
		data: make([]byte, size),
	}
}

// Base returns the physical base address of the region.
func (m *Memory) Base() uint64 { return m.base }

// Size returns the size of the region in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.data)) }

// Contains reports whether [paddr, paddr+length) lies inside the region.
func (m *Memory) Contains(paddr, length uint64) bool {
	return paddr >= m.base && paddr+length >= paddr &&
		paddr+length <= m.base+uint64(len(m.data))
}

// Read64 reads a doubleword at the given physical address.
func (m *Memory) Read64(paddr uint64) (uint64, error) {
	if !m.Contains(paddr, 8) {
		return 0, fmt.Errorf("memory read out of bounds: paddr=0x%x base=0x%x size=0x%x", paddr, m.base, len(m.data))
	}
	return memEndian.Uint64(m.data[paddr-m.base:]), nil
}

// Write64 writes a doubleword at the given physical address.
func (m *Memory) Write64(paddr, value uint64) error {
	if !m.Contains(paddr, 8) {
		return fmt.Errorf("memory write out of bounds: paddr=0x%x base=0x%x size=0x%x", paddr, m.base, len(m.data))
	}
	memEndian.PutUint64(m.data[paddr-m.base:], value)
	return nil
}

// Slice returns the backing bytes for [paddr, paddr+length). The slice
// aliases the region, so writes through it are real memory writes.
func (m *Memory) Slice(paddr, length uint64) ([]byte, error) {
	if !m.Contains(paddr, length) {
		return nil, fmt.Errorf("memory slice out of bounds: paddr=0x%x len=0x%x", paddr, length)
	}
	off := paddr - m.base
	return m.data[off : off+length], nil
}

// Zero clears [paddr, paddr+length).
func (m *Memory) Zero(paddr, length uint64) error {
	b, err := m.Slice(paddr, length)
	if err != nil {
		return err
	}
	clear(b)
	return nil
}
