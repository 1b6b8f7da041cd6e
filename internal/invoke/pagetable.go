package invoke

import (
	"log/slog"

	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/vspace"
)

type pageTableMapAction struct {
	slot     *cap.Slot
	newCap   cap.PageTableCap
	slotAddr uint64
}

func (a pageTableMapAction) perform(k *vspace.Kernel) error {
	a.slot.Cap = a.newCap
	k.InstallPageTable(a.slotAddr, a.newCap.BasePtr)
	return nil
}

type pageTableUnmapAction struct {
	slot *cap.Slot
	pt   cap.PageTableCap
}

func (a pageTableUnmapAction) perform(k *vspace.Kernel) error {
	if a.pt.IsMapped {
		k.UnmapPageTable(a.pt.MappedASID, a.pt.MappedAddr, a.pt.BasePtr)
		k.ClearFrame(a.pt.BasePtr, vspace.PTSizeBits)
	}
	a.slot.Cap = a.pt.WithoutMapping()
	return nil
}

func decodePageTableInvocation(k *vspace.Kernel, msg Message, slot *cap.Slot, pt cap.PageTableCap) (Action, error) {
	// A currently installed root is not a page table you can map or
	// unmap somewhere else.
	if pt.IsMapped && k.IsRootOf(pt.BasePtr, pt.MappedASID) {
		return nil, syserr.ErrIllegalOperation
	}

	if msg.Label == PageTableUnmap {
		return pageTableUnmapAction{slot: slot, pt: pt}, nil
	}
	if msg.Label != PageTableMap {
		return nil, syserr.ErrIllegalOperation
	}

	if len(msg.Args) < 2 || len(msg.ExtraCaps) < 1 {
		slog.Debug("PageTableMap: truncated message")
		return nil, syserr.ErrTruncatedMessage
	}
	vaddr := msg.Args[0]

	rootCap, err := validateNativeRoot(k, msg.ExtraCaps[0].Cap, 1)
	if err != nil {
		slog.Debug("PageTableMap: invalid root capability", "err", err)
		return nil, err
	}

	if vaddr >= k.Cfg.KernelBase {
		return nil, &syserr.InvalidArgumentError{Index: 0}
	}

	// Walk to the deepest already-populated level; the empty slot the
	// walk stops at is where the new table is installed, one level
	// below the deepest existing one. A walk that reaches leaf depth
	// has no room for another table.
	res, _ := k.LookupSlot(rootCap.BasePtr, vaddr, k.Cfg.Levels)
	if res.BitsLeft == vspace.PageBits || k.PTEAt(res.SlotAddr) != vspace.InvalidPTE() {
		return nil, syserr.ErrDeleteFirst
	}

	return pageTableMapAction{
		slot:     slot,
		newCap:   pt.WithMapping(rootCap.MappedASID, vaddr),
		slotAddr: res.SlotAddr,
	}, nil
}
