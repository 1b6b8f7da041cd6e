package vspace

import (
	"fmt"

	"github.com/robs-cse/seL4/internal/cap"
)

// CreateInitialAddressSpace builds the address space for the initial
// thread: a fresh root carrying the global kernel mappings, plus the
// intermediate page tables needed to back the virtual region
// [start, end) with 4KiB mappings. The returned capabilities are
// already installed.
func (k *Kernel) CreateInitialAddressSpace(start, end uint64) (cap.PageTableCap, []cap.PageTableCap, error) {
	rootPAddr, err := k.Alloc.AllocRegion(PTSizeBits)
	if err != nil {
		return cap.PageTableCap{}, nil, fmt.Errorf("allocating initial root: %w", err)
	}
	k.CopyGlobalMappings(rootPAddr)

	rootCap := cap.PageTableCap{
		BasePtr:    rootPAddr,
		IsMapped:   true,
		MappedASID: ITASID,
	}

	var tables []cap.PageTableCap
	for level := uint(2); level <= k.Cfg.Levels; level++ {
		step := uint64(1) << k.Cfg.LevelPageBits(level-1)
		for vptr := start &^ (step - 1); vptr < end; vptr += step {
			pt, err := k.Alloc.AllocRegion(PTSizeBits)
			if err != nil {
				return cap.PageTableCap{}, nil, fmt.Errorf("allocating level %d table: %w", level, err)
			}
			ptCap := cap.PageTableCap{
				BasePtr:    pt,
				IsMapped:   true,
				MappedASID: ITASID,
				MappedAddr: vptr,
			}
			if err := k.MapITPageTable(rootCap, ptCap, level); err != nil {
				return cap.PageTableCap{}, nil, err
			}
			tables = append(tables, ptCap)
		}
	}
	return rootCap, tables, nil
}

// MapITPageTable installs a boot-time page table at the level it
// belongs to, under the initial root.
func (k *Kernel) MapITPageTable(root cap.PageTableCap, pt cap.PageTableCap, level uint) error {
	res, err := k.LookupSlot(root.BasePtr, pt.MappedAddr, level-1)
	if err != nil {
		return fmt.Errorf("mapping boot page table at 0x%x level %d: %w", pt.MappedAddr, level, err)
	}
	k.InstallPageTable(res.SlotAddr, pt.BasePtr)
	return nil
}

// MapITFrame installs a boot-time 4KiB user mapping (RWX, user) for the
// initial task image.
func (k *Kernel) MapITFrame(root cap.PageTableCap, frame cap.FrameCap) error {
	res, err := k.LookupSlot(root.BasePtr, frame.MappedAddr, k.Cfg.LevelForSize(cap.Page4K))
	if err != nil {
		return fmt.Errorf("mapping boot frame at 0x%x: %w", frame.MappedAddr, err)
	}
	k.writePTE(res.SlotAddr, NewLeafPTE(frame.BasePtr, true, true, true, true, false))
	k.HW.Fence()
	return nil
}

// WriteITASIDPool creates the boot ASID pool, binds the initial
// address-space root at ITASID, and installs the pool in the directory.
func (k *Kernel) WriteITASIDPool(poolFrame uint64, rootCap cap.PageTableCap) *ASIDPool {
	pool := NewASIDPool(0, poolFrame)
	pool.SetRoot(ITASID, rootCap.BasePtr)
	k.InstallPool(0, pool)
	return pool
}
