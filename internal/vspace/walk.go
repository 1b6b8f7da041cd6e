package vspace

import "github.com/robs-cse/seL4/internal/syserr"

// LookupSlotResult locates one PTE slot in the tree.
type LookupSlotResult struct {
	// SlotAddr is the physical address of the slot. On a failed walk
	// it is the deepest slot reached.
	SlotAddr uint64
	// Level is the level of the table containing SlotAddr (1 = root).
	Level uint
	// BitsLeft is the number of address bits the slot leaves
	// untranslated; it equals the page-size class a leaf in this slot
	// would have.
	BitsLeft uint
}

// LookupSlot walks from root to the slot for vaddr at targetLevel. The
// walk continues only through valid non-leaf pointer entries; if it
// stops early the deepest slot reached is returned together with a
// missing-capability fault naming the absent level's page-size class.
// A zero root is rejected as an invalid-root fault without touching
// memory.
func (k *Kernel) LookupSlot(root, vaddr uint64, targetLevel uint) (LookupSlotResult, error) {
	if targetLevel < 1 || targetLevel > k.Cfg.Levels {
		panic("vspace: lookup level out of range")
	}
	if root == 0 {
		return LookupSlotResult{}, syserr.ErrInvalidRoot
	}

	res := LookupSlotResult{
		SlotAddr: k.Cfg.SlotAddr(root, vaddr, 1),
		Level:    1,
		BitsLeft: k.Cfg.LevelPageBits(1),
	}
	for level := uint(2); level <= targetLevel; level++ {
		e := k.readPTE(res.SlotAddr)
		if !e.IsTable() {
			return res, &syserr.MissingCapabilityError{BitsLeft: res.BitsLeft}
		}
		res.SlotAddr = k.Cfg.SlotAddr(e.PAddr(), vaddr, level)
		res.Level = level
		res.BitsLeft = k.Cfg.LevelPageBits(level)
	}
	return res, nil
}

// lookupTableParentSlot recovers the slot that references the page
// table at tablePAddr inside the address space bound to asid. Page
// table capabilities carry no back-pointer to their parent slot, so the
// path is reconstructed by a second walk along vaddr.
func (k *Kernel) lookupTableParentSlot(asid, vaddr, tablePAddr uint64) (uint64, error) {
	root, err := k.FindVSpaceForASID(asid)
	if err != nil {
		return 0, err
	}

	slot := k.Cfg.SlotAddr(root, vaddr, 1)
	for level := uint(2); level <= k.Cfg.Levels; level++ {
		e := k.readPTE(slot)
		if !e.IsTable() {
			return 0, &syserr.MissingCapabilityError{BitsLeft: k.Cfg.LevelPageBits(level - 1)}
		}
		if e.PAddr() == tablePAddr {
			return slot, nil
		}
		slot = k.Cfg.SlotAddr(e.PAddr(), vaddr, level)
	}
	return 0, &syserr.MissingCapabilityError{BitsLeft: PageBits}
}

// lookupSlotBitsLeft walks at most maxDepth steps from root toward
// vaddr, stopping at the first entry that is not a valid table pointer.
// It never fails: the caller inspects BitsLeft to learn how deep the
// walk got.
func (k *Kernel) lookupSlotBitsLeft(root, vaddr uint64, maxDepth uint) LookupSlotResult {
	bitsLeft := PTIndexBits*k.Cfg.Levels + PageBits
	pt := root
	var res LookupSlotResult
	depth := maxDepth
	for {
		bitsLeft -= PTIndexBits
		idx := (vaddr >> bitsLeft) & mask(PTIndexBits)
		res.SlotAddr = pt + idx*PTEBytes
		res.Level++
		res.BitsLeft = bitsLeft
		depth--
		e := k.readPTE(res.SlotAddr)
		if !e.IsTable() || depth == 0 {
			return res
		}
		pt = e.PAddr()
	}
}
