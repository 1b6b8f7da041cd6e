package vspace

import (
	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
)

// Attributes are the architecture mapping attributes supplied with a
// frame invocation.
type Attributes struct {
	ExecuteNever bool
}

// AttributesFromWord decodes attributes from an invocation argument.
func AttributesFromWord(w uint64) Attributes {
	return Attributes{ExecuteNever: w&1 != 0}
}

// MappingEntries bundles a computed hardware entry with the exact
// slot(s) it must be written to. Constructing it performs all fallible
// validation; applying it cannot fail. This split keeps capability
// state and hardware state atomic from the caller's perspective.
type MappingEntries struct {
	Entry PTE
	Slots []uint64
}

// CreateSafeMappingEntries walks to the slot implied by the frame size
// and returns the entry plus its target slot. It is pure with respect
// to hardware state; on a failed walk it returns a destination lookup
// failure and touches nothing.
func (k *Kernel) CreateSafeMappingEntries(base, vaddr uint64, sz cap.PageSize, rights cap.VMRights, attrs Attributes, root uint64) (MappingEntries, error) {
	entry := MakeUserPTE(base, !attrs.ExecuteNever, rights)

	res, err := k.LookupSlot(root, vaddr, k.Cfg.LevelForSize(sz))
	if err != nil {
		return MappingEntries{}, &syserr.FailedLookupError{WasSource: false, Fault: err}
	}
	return MappingEntries{Entry: entry, Slots: []uint64{res.SlotAddr}}, nil
}

// UpdateEntries writes the computed entry to its slots and issues the
// synchronization fence. Perform-phase only.
func (k *Kernel) UpdateEntries(m MappingEntries) {
	for _, slot := range m.Slots {
		k.writePTE(slot, m.Entry)
	}
	k.HW.Fence()
}

// InstallPageTable installs the table at childPAddr as a non-leaf entry
// in the tree under root, at the slot for vaddr one level above the
// child's level. Perform-phase only: the slot has been validated empty.
func (k *Kernel) InstallPageTable(slotAddr, childPAddr uint64) {
	k.writePTE(slotAddr, NewTablePTE(childPAddr))
	k.HW.Fence()
}

// UnmapPageTable removes the entry referencing the table at tablePAddr
// from the address space bound to asid. If the address space or the
// referencing slot cannot be found the table is already unreachable and
// the call is a no-op: unmap is idempotent with respect to a torn-down
// address space.
func (k *Kernel) UnmapPageTable(asid, vaddr, tablePAddr uint64) {
	slot, err := k.lookupTableParentSlot(asid, vaddr, tablePAddr)
	if err != nil {
		return
	}
	k.writePTE(slot, InvalidPTE())
	k.HW.Fence()
}

// UnmapFrame removes the leaf entry for a frame of size sz at
// (asid, vaddr). A missing address space, missing slot, or a slot that
// no longer points at framePAddr makes the call a no-op.
func (k *Kernel) UnmapFrame(sz cap.PageSize, asid, vaddr, framePAddr uint64) {
	root, err := k.FindVSpaceForASID(asid)
	if err != nil {
		return
	}
	res, err := k.LookupSlot(root, vaddr, k.Cfg.LevelForSize(sz))
	if err != nil {
		return
	}
	e := k.readPTE(res.SlotAddr)
	if !e.IsLeaf() || e.PAddr() != framePAddr {
		return
	}
	k.writePTE(res.SlotAddr, InvalidPTE())
	k.HW.Fence()
}

// ClearFrame zeroes the physical region backing an object being
// recycled, such as a page table that was just unmapped.
func (k *Kernel) ClearFrame(paddr uint64, sizeBits uint) {
	if err := k.HW.Mem.Zero(paddr, 1<<sizeBits); err != nil {
		panic("vspace: clearing memory outside physical memory: " + err.Error())
	}
}
