package cap

import (
	"github.com/robs-cse/seL4/internal/syserr"
)

// Slot is one capability storage location (a CTE). ChildCount tracks
// capabilities derived from this slot's capability; untyped memory may
// only be retyped while it has no live children.
type Slot struct {
	Cap        Cap
	ChildCount int
}

// NewSlot returns a slot holding the given capability.
func NewSlot(c Cap) *Slot {
	return &Slot{Cap: c}
}

// IsEmpty reports whether the slot holds the null capability.
func (s *Slot) IsEmpty() bool {
	if s.Cap == nil {
		return true
	}
	_, null := s.Cap.(NullCap)
	return null
}

// EnsureEmptySlot fails with DeleteFirst if the slot is occupied.
func EnsureEmptySlot(s *Slot) error {
	if !s.IsEmpty() {
		return syserr.ErrDeleteFirst
	}
	return nil
}

// EnsureNoChildren fails with RevokeFirst if capabilities derived from
// this slot are still live.
func EnsureNoChildren(s *Slot) error {
	if s.ChildCount != 0 {
		return syserr.ErrRevokeFirst
	}
	return nil
}

// Insert writes a capability derived from parent into dest.
func Insert(c Cap, parent, dest *Slot) {
	dest.Cap = c
	parent.ChildCount++
}

// CNode is a power-of-two array of capability slots.
type CNode struct {
	RadixBits uint
	Slots     []Slot
}

// NewCNode creates a CNode with 1<<radixBits slots, all empty.
func NewCNode(radixBits uint) *CNode {
	n := &CNode{RadixBits: radixBits, Slots: make([]Slot, 1<<radixBits)}
	for i := range n.Slots {
		n.Slots[i].Cap = NullCap{}
	}
	return n
}

// CNodeCap designates a CNode.
type CNodeCap struct {
	Node *CNode
}

func (CNodeCap) isCap() {}

// LookupTargetSlot resolves (index, depth) against a CNode root
// capability, the slot-addressing path used by invocations that name a
// destination slot.
func LookupTargetSlot(root Cap, index uint64, depth uint) (*Slot, error) {
	nc, ok := root.(CNodeCap)
	if !ok || nc.Node == nil {
		return nil, &syserr.FailedLookupError{WasSource: false, Fault: syserr.ErrInvalidRoot}
	}
	if depth != nc.Node.RadixBits || index >= uint64(len(nc.Node.Slots)) {
		return nil, &syserr.FailedLookupError{
			WasSource: false,
			Fault:     &syserr.MissingCapabilityError{BitsLeft: depth},
		}
	}
	return &nc.Node.Slots[index], nil
}
