// Package vspace implements the virtual-address-space core: the radix
// page-table walkers, the ASID directory, mapping operations, VM fault
// packaging, and kernel-image replication. All kernel state hangs off a
// Kernel value; there are no package globals, so tests build as many
// independent machines as they need.
package vspace

import (
	"fmt"

	"github.com/robs-cse/seL4/internal/hw"
	"github.com/robs-cse/seL4/internal/tcb"
)

// Kernel is the address-space management state of one hart.
type Kernel struct {
	HW    *hw.Hardware
	Alloc *hw.Allocator
	Cfg   Config

	// asidTable is the top level of the two-level ASID directory.
	asidTable [1 << ASIDHighBits]*ASIDPool

	// kernelTables holds the global kernel page tables, one per level;
	// index 0 is the kernel root. The chain covers the region above
	// PPTRTop so individual kernel frames can be mapped at 4KiB
	// granularity.
	kernelTables []uint64

	// CurThread is the thread whose invocation is being processed.
	CurThread *tcb.TCB

	curImage *KernelImage
}

// NewKernel allocates and wires the global kernel tables and maps the
// kernel window, leaving the machine ready for address-space
// construction.
func NewKernel(cfg Config, h *hw.Hardware, alloc *hw.Allocator) (*Kernel, error) {
	if cfg.Levels < 2 || cfg.Levels > 4 {
		return nil, fmt.Errorf("unsupported page table depth %d (want 2..4)", cfg.Levels)
	}

	k := &Kernel{HW: h, Alloc: alloc, Cfg: cfg}

	for level := uint(0); level < cfg.Levels; level++ {
		pt, err := alloc.AllocRegion(PTSizeBits)
		if err != nil {
			return nil, fmt.Errorf("allocating kernel page table for level %d: %w", level+1, err)
		}
		k.kernelTables = append(k.kernelTables, pt)
	}

	// Link the global chain at PPTRTop so MapKernelFrame can install
	// 4KiB leaves at the deepest level.
	for level := uint(1); level < cfg.Levels; level++ {
		slot := cfg.SlotAddr(k.kernelTables[level-1], cfg.PPTRTop, level)
		k.writePTE(slot, NewTablePTE(k.kernelTables[level]))
	}

	k.mapKernelWindow()
	return k, nil
}

// readPTE reads a hardware entry. Table walks only ever visit slots
// inside physical memory; anything else is a fatal internal
// inconsistency, not a handled error.
func (k *Kernel) readPTE(slotAddr uint64) PTE {
	v, err := k.HW.Mem.Read64(slotAddr)
	if err != nil {
		panic(fmt.Sprintf("vspace: pte read outside physical memory: %v", err))
	}
	return PTE(v)
}

// PTEAt returns the hardware entry currently held in the slot at
// slotAddr.
func (k *Kernel) PTEAt(slotAddr uint64) PTE {
	return k.readPTE(slotAddr)
}

func (k *Kernel) writePTE(slotAddr uint64, p PTE) {
	if err := k.HW.Mem.Write64(slotAddr, uint64(p)); err != nil {
		panic(fmt.Sprintf("vspace: pte write outside physical memory: %v", err))
	}
}

// mapKernelWindow fills the kernel root with giant-page leaves mapping
// the kernel window onto physical memory. Window mappings are global,
// kernel-only and RWX.
func (k *Kernel) mapKernelWindow() {
	entrySize := uint64(1) << k.Cfg.LevelPageBits(1)
	n := (uint64(1) << k.Cfg.KernelWindowBits) / entrySize
	if n == 0 {
		n = 1
	}
	first := k.Cfg.PTIndex(k.Cfg.KernelBase, 1)
	for i := uint64(0); i < n; i++ {
		slot := k.kernelTables[0] + (first+i)*PTEBytes
		k.writePTE(slot, MakeKernelPTE(k.Cfg.PhysBase+entrySize*i))
	}
}

// MapKernelFrame installs a single global 4KiB kernel mapping in the
// shared table chain. vaddr must lie in the region the chain covers.
func (k *Kernel) MapKernelFrame(paddr, vaddr uint64) error {
	if vaddr < k.Cfg.PPTRTop {
		return fmt.Errorf("kernel frame vaddr 0x%x below PPTRTop 0x%x", vaddr, k.Cfg.PPTRTop)
	}
	slot := k.Cfg.SlotAddr(k.kernelTables[k.Cfg.Levels-1], vaddr, k.Cfg.Levels)
	k.writePTE(slot, MakeKernelPTE(paddr))
	k.HW.Fence()
	return nil
}

// KernelRoot returns the physical address of the global kernel root
// table.
func (k *Kernel) KernelRoot() uint64 { return k.kernelTables[0] }

// ActivateKernelVSpace installs the global kernel tables as the active
// translation root.
func (k *Kernel) ActivateKernelVSpace() {
	k.HW.SetVSpaceRoot(k.kernelTables[0], 0)
}

// CopyGlobalMappings copies the kernel window entries from the global
// kernel root into a freshly created address-space root.
func (k *Kernel) CopyGlobalMappings(newRoot uint64) {
	for i := k.Cfg.PTIndex(k.Cfg.KernelBase, 1); i < 1<<PTIndexBits; i++ {
		e := k.readPTE(k.kernelTables[0] + i*PTEBytes)
		k.writePTE(newRoot+i*PTEBytes, e)
	}
}
