package hw

import "fmt"

// Allocator hands out page-table-sized regions of physical memory
// during bootstrap. Regions are naturally aligned to their size and
// returned zeroed; there is no free operation, matching a boot-time
// bump allocator.
type Allocator struct {
	mem  *Memory
	next uint64
}

// NewAllocator creates an allocator over the unclaimed portion of mem
// starting at the given physical address.
func NewAllocator(mem *Memory, start uint64) *Allocator {
	return &Allocator{mem: mem, next: start}
}

// AllocRegion allocates a zeroed region of 1<<sizeBits bytes, aligned
// to its own size.
func (a *Allocator) AllocRegion(sizeBits uint) (uint64, error) {
	size := uint64(1) << sizeBits
	paddr := (a.next + size - 1) &^ (size - 1)
	if !a.mem.Contains(paddr, size) {
		return 0, fmt.Errorf("alloc region of 2^%d bytes: out of physical memory at 0x%x", sizeBits, a.next)
	}
	if err := a.mem.Zero(paddr, size); err != nil {
		return 0, err
	}
	a.next = paddr + size
	return paddr, nil
}

// Watermark returns the next unallocated physical address.
func (a *Allocator) Watermark() uint64 { return a.next }
