package vspace

import (
	"testing"

	"github.com/robs-cse/seL4/internal/cap"
)

func TestPTEEncoding(t *testing.T) {
	// Table pointer: PPN shifted to bit 10, A|D|V, no permissions.
	e := NewTablePTE(0x80001000)
	if want := PTE(0x80001<<10 | PteA | PteD | PteV); e != want {
		t.Fatalf("NewTablePTE = 0x%x, want 0x%x", uint64(e), uint64(want))
	}
	if !e.IsTable() || e.IsLeaf() {
		t.Fatalf("table entry misclassified: 0x%x", uint64(e))
	}
	if e.PAddr() != 0x80001000 {
		t.Fatalf("table entry PAddr = 0x%x", e.PAddr())
	}

	// Full-permission global leaf.
	e = NewLeafPTE(0x80002000, true, true, true, true, true)
	if want := PTE(0x80002<<10 | 0xff); e != want {
		t.Fatalf("NewLeafPTE = 0x%x, want 0x%x", uint64(e), uint64(want))
	}
	if !e.IsLeaf() || e.IsTable() {
		t.Fatalf("leaf entry misclassified: 0x%x", uint64(e))
	}

	if InvalidPTE().Valid() {
		t.Fatalf("invalid entry reports valid")
	}

	// Execute-only is a legal leaf.
	e = NewLeafPTE(0x80003000, false, false, true, false, false)
	if !e.IsLeaf() {
		t.Fatalf("execute-only entry not a leaf: 0x%x", uint64(e))
	}
}

func TestMakeUserPTE(t *testing.T) {
	e := MakeUserPTE(0x80004000, true, cap.VMReadWrite)
	if !e.Read() || !e.Write() || !e.Exec() || !e.User() || e.Global() {
		t.Fatalf("read-write user entry: 0x%x", uint64(e))
	}

	e = MakeUserPTE(0x80004000, false, cap.VMReadOnly)
	if !e.Read() || e.Write() || e.Exec() || !e.User() {
		t.Fatalf("read-only non-exec entry: 0x%x", uint64(e))
	}

	// Kernel-only rights never set the user bit.
	e = MakeUserPTE(0x80004000, true, cap.VMKernelOnly)
	if e.User() {
		t.Fatalf("kernel-only entry is user accessible: 0x%x", uint64(e))
	}
}

func TestMakeKernelPTE(t *testing.T) {
	e := MakeKernelPTE(0x80005000)
	if !e.IsLeaf() || !e.Global() || e.User() {
		t.Fatalf("kernel entry: 0x%x", uint64(e))
	}
	if !e.Read() || !e.Write() || !e.Exec() {
		t.Fatalf("kernel entry not RWX: 0x%x", uint64(e))
	}
}

func TestWithPPN(t *testing.T) {
	e := NewLeafPTE(0x80006000, true, false, false, false, true)
	moved := e.WithPPN(e.PPN() + 3)
	if moved.PAddr() != 0x80009000 {
		t.Fatalf("WithPPN PAddr = 0x%x", moved.PAddr())
	}
	// Flag bits survive the PPN swap.
	if moved&PTE(mask(ptePPNShift)) != e&PTE(mask(ptePPNShift)) {
		t.Fatalf("WithPPN changed flag bits: 0x%x vs 0x%x", uint64(moved), uint64(e))
	}
}
