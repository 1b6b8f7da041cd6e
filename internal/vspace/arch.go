package vspace

import "github.com/robs-cse/seL4/internal/cap"

// Hardware geometry of the radix-tree page table. Entry width and
// index bits are architecture contracts; the number of levels is
// configurable between 2 and 4 (Sv32-like through Sv48-like).
const (
	PageBits    = 12 // 4KiB base pages
	PTIndexBits = 9  // 512 entries per table
	PTEBytes    = 8
	PTSizeBits  = PageBits // one table occupies exactly one page

	// ASID layout: low bits index inside a pool, high bits index the
	// directory.
	ASIDLowBits  = 9
	ASIDHighBits = 7

	// ASIDPoolBits is the size of the memory block an ASID pool is
	// carved from.
	ASIDPoolBits = PageBits

	// ITASID is the ASID of the initial thread's address space.
	ITASID uint64 = 1
)

func mask(bits uint) uint64 {
	return (1 << bits) - 1
}

// Config fixes the geometry and layout of one modeled machine. It is
// carried explicitly (no package globals) so tests can instantiate
// independent kernels.
type Config struct {
	// Levels is the number of page-table levels (2..4).
	Levels uint

	// KernelBase is the first virtual address of the kernel window;
	// user mappings must lie strictly below it.
	KernelBase uint64

	// PhysBase is the physical address the kernel window maps to.
	PhysBase uint64

	// KernelWindowBits sizes the kernel window.
	KernelWindowBits uint

	// PPTRTop is the base of the upper kernel region covered by the
	// shared global table chain; individual global kernel frames are
	// mapped at 4KiB granularity above it.
	PPTRTop uint64

	// StackBase and StackBits place each kernel image's private
	// execution stack.
	StackBase uint64
	StackBits uint
}

// LevelPageBits returns the number of address bits a single entry at
// the given level translates (level 1 = root).
func (c Config) LevelPageBits(level uint) uint {
	return PageBits + PTIndexBits*(c.Levels-level)
}

// PTIndex extracts the table index for vaddr at the given level.
func (c Config) PTIndex(vaddr uint64, level uint) uint64 {
	return (vaddr >> c.LevelPageBits(level)) & mask(PTIndexBits)
}

// SlotAddr returns the physical address of the PTE slot for vaddr in
// the table at tablePAddr, which sits at the given level.
func (c Config) SlotAddr(tablePAddr, vaddr uint64, level uint) uint64 {
	return tablePAddr + c.PTIndex(vaddr, level)*PTEBytes
}

// PageBitsForSize returns the address bits covered by a frame of the
// given size class.
func (c Config) PageBitsForSize(sz cap.PageSize) uint {
	return PageBits + PTIndexBits*uint(sz)
}

// SizeValid reports whether the size class fits the configured tree.
func (c Config) SizeValid(sz cap.PageSize) bool {
	return uint(sz) < c.Levels
}

// LevelForSize returns the level whose slots hold leaves of the given
// size class.
func (c Config) LevelForSize(sz cap.PageSize) uint {
	return c.Levels - uint(sz)
}

// CheckVPAlignment reports whether vaddr is aligned to the size class.
func (c Config) CheckVPAlignment(sz cap.PageSize, vaddr uint64) bool {
	return vaddr&mask(c.PageBitsForSize(sz)) == 0
}
