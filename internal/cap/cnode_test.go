package cap

import (
	"errors"
	"testing"

	"github.com/robs-cse/seL4/internal/syserr"
)

func TestSlotEmptiness(t *testing.T) {
	s := NewSlot(NullCap{})
	if !s.IsEmpty() {
		t.Fatalf("null slot not empty")
	}
	if err := EnsureEmptySlot(s); err != nil {
		t.Fatalf("EnsureEmptySlot on empty slot: %v", err)
	}

	s.Cap = FrameCap{BasePtr: 0x80001000}
	if s.IsEmpty() {
		t.Fatalf("occupied slot reported empty")
	}
	if err := EnsureEmptySlot(s); !errors.Is(err, syserr.ErrDeleteFirst) {
		t.Fatalf("EnsureEmptySlot on occupied slot: %v", err)
	}
}

func TestInsertTracksChildren(t *testing.T) {
	parent := NewSlot(UntypedCap{Ptr: 0x80001000, SizeBits: 12})
	dest := NewSlot(NullCap{})

	if err := EnsureNoChildren(parent); err != nil {
		t.Fatalf("fresh untyped has children: %v", err)
	}
	Insert(ASIDPoolCap{PoolPtr: 0x80001000}, parent, dest)

	if dest.IsEmpty() {
		t.Fatalf("insert left destination empty")
	}
	if err := EnsureNoChildren(parent); !errors.Is(err, syserr.ErrRevokeFirst) {
		t.Fatalf("EnsureNoChildren after insert: %v", err)
	}
}

func TestLookupTargetSlot(t *testing.T) {
	node := NewCNode(4)
	root := CNodeCap{Node: node}

	slot, err := LookupTargetSlot(root, 3, 4)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if slot != &node.Slots[3] {
		t.Fatalf("lookup resolved the wrong slot")
	}

	if _, err := LookupTargetSlot(root, 3, 5); err == nil {
		t.Fatalf("wrong depth resolved")
	}
	if _, err := LookupTargetSlot(root, 16, 4); err == nil {
		t.Fatalf("out of range index resolved")
	}

	_, err = LookupTargetSlot(FrameCap{}, 0, 4)
	var fl *syserr.FailedLookupError
	if !errors.As(err, &fl) || !errors.Is(fl.Fault, syserr.ErrInvalidRoot) {
		t.Fatalf("non-cnode root: %v", err)
	}
}
