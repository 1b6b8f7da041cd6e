// Package cap models the capability values handled by the
// address-space subsystem. Capabilities are immutable values: updates
// go through With* constructors that return a new value, never in-place
// mutation, so invocation decode stays side-effect free until the
// perform phase writes the slot.
package cap

// ASIDInvalid is the "unmapped" sentinel for mapping metadata. ASID 0
// is never handed out to user address spaces.
const ASIDInvalid uint64 = 0

// PageSize is the size class of a frame. The number of address bits a
// class covers depends on the configured page-table geometry, so the
// translation lives with the architecture config, not here.
type PageSize uint8

const (
	Page4K PageSize = iota
	PageMega
	PageGiga
	PageTera
)

// Cap is one capability value. The concrete types below form a closed
// set of kinds.
type Cap interface {
	isCap()
}

// NullCap occupies empty slots.
type NullCap struct{}

func (NullCap) isCap() {}

// UntypedCap designates unclaimed memory that objects can be carved
// from.
type UntypedCap struct {
	Ptr       uint64 // physical base
	SizeBits  uint
	IsDevice  bool
	FreeIndex uint64
}

func (UntypedCap) isCap() {}

// WithFreeIndex returns a copy with the free index updated.
func (c UntypedCap) WithFreeIndex(idx uint64) UntypedCap {
	c.FreeIndex = idx
	return c
}

// MaxFreeIndex is the free index of a fully consumed untyped region.
func (c UntypedCap) MaxFreeIndex() uint64 {
	return 1 << c.SizeBits
}

// PageTableCap designates a page table. A table at depth 1 that the
// ASID directory points at directly is an address-space root; any other
// table becomes mapped when installed as a non-leaf entry under a bound
// root.
type PageTableCap struct {
	BasePtr    uint64 // physical address of the table
	IsMapped   bool
	MappedASID uint64
	MappedAddr uint64
}

func (PageTableCap) isCap() {}

// WithMapping returns a copy recording an installed mapping.
func (c PageTableCap) WithMapping(asid, vaddr uint64) PageTableCap {
	c.IsMapped = true
	c.MappedASID = asid
	c.MappedAddr = vaddr
	return c
}

// WithoutMapping returns a copy with the mapped flag cleared.
func (c PageTableCap) WithoutMapping() PageTableCap {
	c.IsMapped = false
	return c
}

// FrameCap designates a physical frame together with its cached
// mapping metadata. MappedASID == ASIDInvalid means unmapped; otherwise
// the hardware leaf entry at (MappedASID, MappedAddr) points at this
// frame.
type FrameCap struct {
	BasePtr    uint64 // physical base of the frame
	Size       PageSize
	Rights     VMRights
	IsDevice   bool
	MappedASID uint64
	MappedAddr uint64
}

func (FrameCap) isCap() {}

// WithMapping returns a copy recording where the frame is mapped.
func (c FrameCap) WithMapping(asid, vaddr uint64) FrameCap {
	c.MappedASID = asid
	c.MappedAddr = vaddr
	return c
}

// WithoutMapping returns a copy with the mapping metadata cleared.
func (c FrameCap) WithoutMapping() FrameCap {
	c.MappedASID = ASIDInvalid
	c.MappedAddr = 0
	return c
}

// Mapped reports whether the frame is currently mapped somewhere.
func (c FrameCap) Mapped() bool {
	return c.MappedASID != ASIDInvalid
}

// ASIDControlCap authorizes creation of ASID pools.
type ASIDControlCap struct{}

func (ASIDControlCap) isCap() {}

// ASIDPoolCap designates one ASID pool. PoolPtr is the physical frame
// backing the pool, which doubles as its identity.
type ASIDPoolCap struct {
	ASIDBase uint64
	PoolPtr  uint64
}

func (ASIDPoolCap) isCap() {}
