// Package invoke decodes and performs capability invocations against
// the address-space subsystem. Decoding is pure: it validates the
// message and capability state and computes an action, failing with a
// typed error and zero side effects. Performing an action is
// side-effecting and cannot fail once decode has succeeded; capability
// and hardware mutation happen together so the two never diverge.
package invoke

import (
	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
	"github.com/robs-cse/seL4/internal/vspace"
)

// Label identifies the requested operation.
type Label uint64

const (
	PageTableMap Label = iota + 1
	PageTableUnmap
	PageMap
	PageRemap
	PageUnmap
	PageGetAddress
	ASIDControlMakePool
	ASIDPoolAssign
)

// Message is one invocation as delivered by the syscall layer.
type Message struct {
	Label     Label
	Args      []uint64
	ExtraCaps []*cap.Slot
}

// Action is a fully validated invocation ready to perform.
type Action interface {
	perform(k *vspace.Kernel) error
}

// Decode validates an invocation of the capability held in slot and
// returns the action to perform. On success the current thread is
// marked for restart; on failure nothing has been touched.
func Decode(k *vspace.Kernel, msg Message, slot *cap.Slot) (Action, error) {
	var (
		a   Action
		err error
	)
	switch c := slot.Cap.(type) {
	case cap.PageTableCap:
		a, err = decodePageTableInvocation(k, msg, slot, c)
	case cap.FrameCap:
		a, err = decodeFrameInvocation(k, msg, slot, c)
	case cap.ASIDControlCap:
		a, err = decodeASIDControlInvocation(k, msg)
	case cap.ASIDPoolCap:
		a, err = decodeASIDPoolInvocation(k, msg, c)
	default:
		return nil, syserr.ErrIllegalOperation
	}
	if err != nil {
		return nil, err
	}
	if k.CurThread != nil {
		k.CurThread.State = tcb.StateRestart
	}
	return a, nil
}

// Perform applies a decoded action.
func Perform(k *vspace.Kernel, a Action) error {
	return a.perform(k)
}

// validateNativeRoot checks that an extra capability is a genuine bound
// address-space root. Each check is independently reachable: a
// non-page-table capability, a page-table capability never assigned to
// an ASID, and a capability whose ASID no longer resolves to its base
// (deleted or forged root).
func validateNativeRoot(k *vspace.Kernel, c cap.Cap, index int) (cap.PageTableCap, error) {
	pt, ok := c.(cap.PageTableCap)
	if !ok {
		return cap.PageTableCap{}, &syserr.InvalidCapabilityError{Index: index}
	}
	if !pt.IsMapped {
		return cap.PageTableCap{}, &syserr.InvalidCapabilityError{Index: index}
	}
	root, err := k.FindVSpaceForASID(pt.MappedASID)
	if err != nil {
		return cap.PageTableCap{}, &syserr.FailedLookupError{WasSource: false, Fault: err}
	}
	if root != pt.BasePtr {
		return cap.PageTableCap{}, &syserr.InvalidCapabilityError{Index: index}
	}
	return pt, nil
}
