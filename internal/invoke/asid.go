package invoke

import (
	"log/slog"

	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/vspace"
)

type asidControlAction struct {
	frame      uint64
	destSlot   *cap.Slot
	parentSlot *cap.Slot
	asidBase   uint64
	poolIndex  uint64
}

func (a asidControlAction) perform(k *vspace.Kernel) error {
	untyped := a.parentSlot.Cap.(cap.UntypedCap)
	a.parentSlot.Cap = untyped.WithFreeIndex(untyped.MaxFreeIndex())

	k.ClearFrame(a.frame, vspace.ASIDPoolBits)
	cap.Insert(cap.ASIDPoolCap{ASIDBase: a.asidBase, PoolPtr: a.frame}, a.parentSlot, a.destSlot)
	k.InstallPool(a.poolIndex, vspace.NewASIDPool(a.asidBase, a.frame))
	return nil
}

func decodeASIDControlInvocation(k *vspace.Kernel, msg Message) (Action, error) {
	if msg.Label != ASIDControlMakePool {
		return nil, syserr.ErrIllegalOperation
	}
	if len(msg.Args) < 2 || len(msg.ExtraCaps) < 2 {
		slog.Debug("ASIDControlMakePool: truncated message")
		return nil, syserr.ErrTruncatedMessage
	}
	index := msg.Args[0]
	depth := msg.Args[1]
	parentSlot := msg.ExtraCaps[0]
	root := msg.ExtraCaps[1].Cap

	// First free pool slot in the directory.
	var poolIndex uint64
	for poolIndex = 0; poolIndex < 1<<vspace.ASIDHighBits; poolIndex++ {
		if k.PoolAt(poolIndex) == nil {
			break
		}
	}
	if poolIndex == 1<<vspace.ASIDHighBits {
		return nil, syserr.ErrDeleteFirst
	}
	asidBase := poolIndex << vspace.ASIDLowBits

	untyped, ok := parentSlot.Cap.(cap.UntypedCap)
	if !ok || untyped.SizeBits != vspace.ASIDPoolBits || untyped.IsDevice {
		slog.Debug("ASIDControlMakePool: invalid untyped capability")
		return nil, &syserr.InvalidCapabilityError{Index: 1}
	}
	if err := cap.EnsureNoChildren(parentSlot); err != nil {
		return nil, err
	}

	destSlot, err := cap.LookupTargetSlot(root, index, uint(depth))
	if err != nil {
		return nil, err
	}
	if err := cap.EnsureEmptySlot(destSlot); err != nil {
		return nil, err
	}

	return asidControlAction{
		frame:      untyped.Ptr,
		destSlot:   destSlot,
		parentSlot: parentSlot,
		asidBase:   asidBase,
		poolIndex:  poolIndex,
	}, nil
}

type asidPoolAssignAction struct {
	asid     uint64
	pool     *vspace.ASIDPool
	rootSlot *cap.Slot
}

func (a asidPoolAssignAction) perform(k *vspace.Kernel) error {
	rootCap := a.rootSlot.Cap.(cap.PageTableCap)
	a.rootSlot.Cap = rootCap.WithMapping(a.asid, rootCap.MappedAddr)
	k.AssignASID(a.pool, a.asid, rootCap.BasePtr)
	return nil
}

func decodeASIDPoolInvocation(k *vspace.Kernel, msg Message, poolCap cap.ASIDPoolCap) (Action, error) {
	if msg.Label != ASIDPoolAssign {
		return nil, syserr.ErrIllegalOperation
	}
	if len(msg.ExtraCaps) < 1 {
		slog.Debug("ASIDPoolAssign: truncated message")
		return nil, syserr.ErrTruncatedMessage
	}
	rootSlot := msg.ExtraCaps[0]

	rootCap, ok := rootSlot.Cap.(cap.PageTableCap)
	if !ok || rootCap.IsMapped || rootCap.MappedASID != cap.ASIDInvalid {
		slog.Debug("ASIDPoolAssign: invalid vspace root")
		return nil, &syserr.InvalidCapabilityError{Index: 1}
	}

	pool := k.PoolAt(poolCap.ASIDBase >> vspace.ASIDLowBits)
	if pool == nil {
		return nil, &syserr.FailedLookupError{WasSource: false, Fault: syserr.ErrInvalidRoot}
	}
	if pool.Frame != poolCap.PoolPtr {
		return nil, &syserr.InvalidCapabilityError{Index: 0}
	}

	// First free in-pool slot; the slot whose resulting ASID would be
	// 0 is reserved.
	var i uint64
	for i = 0; i < 1<<vspace.ASIDLowBits; i++ {
		if poolCap.ASIDBase+i == 0 {
			continue
		}
		if pool.Root(i) == 0 {
			break
		}
	}
	if i == 1<<vspace.ASIDLowBits {
		return nil, syserr.ErrDeleteFirst
	}

	return asidPoolAssignAction{
		asid:     poolCap.ASIDBase + i,
		pool:     pool,
		rootSlot: rootSlot,
	}, nil
}
