package vspace

import (
	"errors"
	"testing"

	"github.com/robs-cse/seL4/internal/syserr"
)

func TestLookupSlotNullRoot(t *testing.T) {
	k := newTestKernel(t)
	if _, err := k.LookupSlot(0, 0x1000, k.Cfg.Levels); !errors.Is(err, syserr.ErrInvalidRoot) {
		t.Fatalf("null root walk: %v", err)
	}
}

func TestLookupSlotStopsAtMissingLevel(t *testing.T) {
	k := newTestKernel(t)
	root := mustAlloc(t, k, PTSizeBits)
	vaddr := uint64(0x1000)

	// Empty root: the walk stops immediately, naming the giga-page
	// size class of the missing level.
	res, err := k.LookupSlot(root, vaddr, k.Cfg.Levels)
	var missing *syserr.MissingCapabilityError
	if !errors.As(err, &missing) {
		t.Fatalf("walk on empty root: %v", err)
	}
	if missing.BitsLeft != 30 {
		t.Fatalf("missing level bits left = %d, want 30", missing.BitsLeft)
	}
	if res.Level != 1 || res.SlotAddr != k.Cfg.SlotAddr(root, vaddr, 1) {
		t.Fatalf("walk stopped at level %d slot 0x%x", res.Level, res.SlotAddr)
	}

	// One table deeper: the next missing level is the mega class.
	mid := mustAlloc(t, k, PTSizeBits)
	k.writePTE(k.Cfg.SlotAddr(root, vaddr, 1), NewTablePTE(mid))

	res, err = k.LookupSlot(root, vaddr, k.Cfg.Levels)
	if !errors.As(err, &missing) {
		t.Fatalf("walk with one table: %v", err)
	}
	if missing.BitsLeft != 21 {
		t.Fatalf("missing level bits left = %d, want 21", missing.BitsLeft)
	}
	if res.Level != 2 || res.SlotAddr != k.Cfg.SlotAddr(mid, vaddr, 2) {
		t.Fatalf("walk stopped at level %d slot 0x%x", res.Level, res.SlotAddr)
	}
}

func TestLookupSlotFullDepth(t *testing.T) {
	k := newTestKernel(t)
	root := mustAlloc(t, k, PTSizeBits)
	mid := mustAlloc(t, k, PTSizeBits)
	leaf := mustAlloc(t, k, PTSizeBits)

	// Indices differ at every level so a mixed-up shift shows.
	vaddr := uint64(5)<<30 | uint64(7)<<21 | uint64(9)<<12
	k.writePTE(k.Cfg.SlotAddr(root, vaddr, 1), NewTablePTE(mid))
	k.writePTE(k.Cfg.SlotAddr(mid, vaddr, 2), NewTablePTE(leaf))

	res, err := k.LookupSlot(root, vaddr, k.Cfg.Levels)
	if err != nil {
		t.Fatalf("full walk failed: %v", err)
	}
	if res.SlotAddr != leaf+9*PTEBytes {
		t.Fatalf("leaf slot 0x%x, want 0x%x", res.SlotAddr, leaf+9*PTEBytes)
	}
	if res.Level != 3 || res.BitsLeft != PageBits {
		t.Fatalf("walk result level %d bits %d", res.Level, res.BitsLeft)
	}

	// A shallower target stops the walk without touching lower levels.
	res, err = k.LookupSlot(root, vaddr, 2)
	if err != nil {
		t.Fatalf("level-2 walk failed: %v", err)
	}
	if res.SlotAddr != mid+7*PTEBytes || res.BitsLeft != 21 {
		t.Fatalf("level-2 walk stopped at 0x%x with %d bits", res.SlotAddr, res.BitsLeft)
	}
}

func TestLookupTableParentSlot(t *testing.T) {
	k := newTestKernel(t)
	root := newBoundSpace(t, k, 7)
	mid := mustAlloc(t, k, PTSizeBits)
	leaf := mustAlloc(t, k, PTSizeBits)

	vaddr := uint64(0x2000)
	rootSlot := k.Cfg.SlotAddr(root, vaddr, 1)
	midSlot := k.Cfg.SlotAddr(mid, vaddr, 2)
	k.writePTE(rootSlot, NewTablePTE(mid))
	k.writePTE(midSlot, NewTablePTE(leaf))

	slot, err := k.lookupTableParentSlot(7, vaddr, leaf)
	if err != nil {
		t.Fatalf("parent of leaf table: %v", err)
	}
	if slot != midSlot {
		t.Fatalf("parent slot 0x%x, want 0x%x", slot, midSlot)
	}

	slot, err = k.lookupTableParentSlot(7, vaddr, mid)
	if err != nil {
		t.Fatalf("parent of mid table: %v", err)
	}
	if slot != rootSlot {
		t.Fatalf("parent slot 0x%x, want 0x%x", slot, rootSlot)
	}

	// A table not on the path is unreachable.
	stranger := mustAlloc(t, k, PTSizeBits)
	if _, err := k.lookupTableParentSlot(7, vaddr, stranger); err == nil {
		t.Fatalf("found parent for unmapped table")
	}

	// An unbound ASID fails before any walk.
	if _, err := k.lookupTableParentSlot(8, vaddr, leaf); err == nil {
		t.Fatalf("found parent under unbound asid")
	}
}

func TestLookupSlotBitsLeftDepthLimit(t *testing.T) {
	k := newTestKernel(t)
	root := mustAlloc(t, k, PTSizeBits)
	mid := mustAlloc(t, k, PTSizeBits)
	leaf := mustAlloc(t, k, PTSizeBits)

	vaddr := uint64(0x3000)
	k.writePTE(k.Cfg.SlotAddr(root, vaddr, 1), NewTablePTE(mid))
	k.writePTE(k.Cfg.SlotAddr(mid, vaddr, 2), NewTablePTE(leaf))

	// The depth cap stops the walk even though the entry continues.
	res := k.lookupSlotBitsLeft(root, vaddr, 2)
	if res.Level != 2 || res.BitsLeft != 21 {
		t.Fatalf("capped walk reached level %d bits %d", res.Level, res.BitsLeft)
	}

	res = k.lookupSlotBitsLeft(root, vaddr, k.Cfg.Levels)
	if res.Level != 3 || res.BitsLeft != PageBits {
		t.Fatalf("full walk reached level %d bits %d", res.Level, res.BitsLeft)
	}
}
