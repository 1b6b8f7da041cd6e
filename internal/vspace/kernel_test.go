package vspace

import (
	"testing"

	"github.com/robs-cse/seL4/internal/hw"
)

const (
	testMemBase = 0x80000000
	testMemSize = 4 << 20
)

// testConfig is a Sv39-like three-level machine with a 1GiB kernel
// window. The stack region sits in the kernel-image range above
// PPTRTop.
func testConfig() Config {
	return Config{
		Levels:           3,
		KernelBase:       0x40_0000_0000,
		PhysBase:         testMemBase,
		KernelWindowBits: 30,
		PPTRTop:          0x40_4000_0000,
		StackBase:        0x40_4010_0000,
		StackBits:        PageBits,
	}
}

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	h := hw.New(testMemBase, testMemSize)
	alloc := hw.NewAllocator(h.Mem, testMemBase)
	k, err := NewKernel(testConfig(), h, alloc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	return k
}

func mustAlloc(t *testing.T, k *Kernel, sizeBits uint) uint64 {
	t.Helper()
	p, err := k.Alloc.AllocRegion(sizeBits)
	if err != nil {
		t.Fatalf("AllocRegion(%d): %v", sizeBits, err)
	}
	return p
}

// newBoundSpace creates a fresh root bound to asid, installing a pool
// in the directory if its slot is still empty.
func newBoundSpace(t *testing.T, k *Kernel, asid uint64) uint64 {
	t.Helper()
	idx := asid >> ASIDLowBits
	pool := k.PoolAt(idx)
	if pool == nil {
		pool = NewASIDPool(idx<<ASIDLowBits, mustAlloc(t, k, ASIDPoolBits))
		k.InstallPool(idx, pool)
	}
	root := mustAlloc(t, k, PTSizeBits)
	k.AssignASID(pool, asid, root)
	return root
}

func TestNewKernelRejectsBadDepth(t *testing.T) {
	h := hw.New(testMemBase, testMemSize)
	alloc := hw.NewAllocator(h.Mem, testMemBase)

	for _, levels := range []uint{0, 1, 5} {
		cfg := testConfig()
		cfg.Levels = levels
		if _, err := NewKernel(cfg, h, alloc); err == nil {
			t.Errorf("NewKernel accepted %d levels", levels)
		}
	}
}

func TestKernelWindowMapping(t *testing.T) {
	k := newTestKernel(t)
	cfg := k.Cfg

	slot := cfg.SlotAddr(k.KernelRoot(), cfg.KernelBase, 1)
	e := k.PTEAt(slot)
	if !e.IsLeaf() {
		t.Fatalf("kernel window entry is not a leaf: 0x%x", uint64(e))
	}
	if !e.Global() || e.User() {
		t.Fatalf("kernel window entry has wrong visibility: 0x%x", uint64(e))
	}
	if !e.Read() || !e.Write() || !e.Exec() {
		t.Fatalf("kernel window entry is not RWX: 0x%x", uint64(e))
	}
	if e.PAddr() != cfg.PhysBase {
		t.Fatalf("kernel window maps to 0x%x, want 0x%x", e.PAddr(), cfg.PhysBase)
	}

	// The global chain above PPTRTop links one table per level.
	res, err := k.LookupSlot(k.KernelRoot(), cfg.PPTRTop, cfg.Levels)
	if err != nil {
		t.Fatalf("global chain walk failed: %v", err)
	}
	if res.BitsLeft != PageBits {
		t.Fatalf("global chain stops at %d bits left", res.BitsLeft)
	}
}

func TestMapKernelFrame(t *testing.T) {
	k := newTestKernel(t)
	frame := mustAlloc(t, k, PageBits)
	vaddr := k.Cfg.PPTRTop + 0x1000

	if err := k.MapKernelFrame(frame, k.Cfg.PPTRTop-0x1000); err == nil {
		t.Fatalf("mapping below PPTRTop succeeded")
	}
	if err := k.MapKernelFrame(frame, vaddr); err != nil {
		t.Fatalf("MapKernelFrame: %v", err)
	}

	res, err := k.LookupSlot(k.KernelRoot(), vaddr, k.Cfg.Levels)
	if err != nil {
		t.Fatalf("walk to kernel frame failed: %v", err)
	}
	e := k.PTEAt(res.SlotAddr)
	if !e.IsLeaf() || e.PAddr() != frame {
		t.Fatalf("kernel frame entry 0x%x does not map 0x%x", uint64(e), frame)
	}
	if !e.Global() || e.User() {
		t.Fatalf("kernel frame entry has wrong visibility: 0x%x", uint64(e))
	}
}

func TestCopyGlobalMappings(t *testing.T) {
	k := newTestKernel(t)
	root := mustAlloc(t, k, PTSizeBits)

	k.CopyGlobalMappings(root)

	first := k.Cfg.PTIndex(k.Cfg.KernelBase, 1)
	for i := uint64(0); i < 1<<PTIndexBits; i++ {
		got := k.PTEAt(root + i*PTEBytes)
		if i < first {
			if got != InvalidPTE() {
				t.Fatalf("user half entry %d populated: 0x%x", i, uint64(got))
			}
			continue
		}
		want := k.PTEAt(k.KernelRoot() + i*PTEBytes)
		if got != want {
			t.Fatalf("kernel half entry %d: 0x%x, want 0x%x", i, uint64(got), uint64(want))
		}
	}
}
