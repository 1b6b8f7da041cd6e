package invoke

import (
	"log/slog"

	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
	"github.com/robs-cse/seL4/internal/vspace"
)

type pageMapAction struct {
	slot    *cap.Slot
	newCap  cap.FrameCap
	entries vspace.MappingEntries
}

func (a pageMapAction) perform(k *vspace.Kernel) error {
	a.slot.Cap = a.newCap
	k.UpdateEntries(a.entries)
	return nil
}

type pageRemapAction struct {
	entries vspace.MappingEntries
}

func (a pageRemapAction) perform(k *vspace.Kernel) error {
	k.UpdateEntries(a.entries)
	return nil
}

type pageUnmapAction struct {
	slot  *cap.Slot
	frame cap.FrameCap
}

func (a pageUnmapAction) perform(k *vspace.Kernel) error {
	if a.frame.Mapped() {
		k.UnmapFrame(a.frame.Size, a.frame.MappedASID, a.frame.MappedAddr, a.frame.BasePtr)
	}
	a.slot.Cap = a.frame.WithoutMapping()
	return nil
}

type pageGetAddressAction struct {
	basePtr uint64
}

func (a pageGetAddressAction) perform(k *vspace.Kernel) error {
	// Reply with the frame's physical base in the first message
	// register.
	k.CurThread.SetRegister(tcb.RegMsg0, a.basePtr)
	k.CurThread.SetRegister(tcb.RegMsgInfo, 1)
	return nil
}

func decodeFrameInvocation(k *vspace.Kernel, msg Message, slot *cap.Slot, frame cap.FrameCap) (Action, error) {
	switch msg.Label {
	case PageMap:
		return decodePageMap(k, msg, slot, frame)
	case PageRemap:
		return decodePageRemap(k, msg, frame)
	case PageUnmap:
		return pageUnmapAction{slot: slot, frame: frame}, nil
	case PageGetAddress:
		return pageGetAddressAction{basePtr: frame.BasePtr}, nil
	default:
		slog.Debug("Page: illegal operation", "label", msg.Label)
		return nil, syserr.ErrIllegalOperation
	}
}

func decodePageMap(k *vspace.Kernel, msg Message, slot *cap.Slot, frame cap.FrameCap) (Action, error) {
	if len(msg.Args) < 3 || len(msg.ExtraCaps) < 1 {
		slog.Debug("PageMap: truncated message")
		return nil, syserr.ErrTruncatedMessage
	}
	vaddr := msg.Args[0]
	rightsMask := cap.RightsFromWord(msg.Args[1])
	attrs := vspace.AttributesFromWord(msg.Args[2])

	// A mapped frame may only be re-mapped at its recorded address;
	// that form changes rights, never location.
	if frame.Mapped() && frame.MappedAddr != vaddr {
		slog.Debug("PageMap: frame already mapped at a different vaddr",
			"mapped", frame.MappedAddr, "requested", vaddr)
		return nil, &syserr.InvalidCapabilityError{Index: 0}
	}

	rootCap, err := validateNativeRoot(k, msg.ExtraCaps[0].Cap, 1)
	if err != nil {
		slog.Debug("PageMap: invalid root capability", "err", err)
		return nil, err
	}

	vtop := vaddr + (uint64(1) << k.Cfg.PageBitsForSize(frame.Size)) - 1
	if vtop >= k.Cfg.KernelBase {
		return nil, &syserr.InvalidArgumentError{Index: 0}
	}
	if !k.Cfg.CheckVPAlignment(frame.Size, vaddr) {
		return nil, syserr.ErrAlignment
	}

	rights := cap.MaskVMRights(frame.Rights, rightsMask)
	entries, err := k.CreateSafeMappingEntries(frame.BasePtr, vaddr, frame.Size, rights, attrs, rootCap.BasePtr)
	if err != nil {
		return nil, err
	}

	return pageMapAction{
		slot:    slot,
		newCap:  frame.WithMapping(rootCap.MappedASID, vaddr),
		entries: entries,
	}, nil
}

func decodePageRemap(k *vspace.Kernel, msg Message, frame cap.FrameCap) (Action, error) {
	if len(msg.Args) < 2 || len(msg.ExtraCaps) < 1 {
		slog.Debug("PageRemap: truncated message")
		return nil, syserr.ErrTruncatedMessage
	}
	rightsMask := cap.RightsFromWord(msg.Args[0])
	attrs := vspace.AttributesFromWord(msg.Args[1])

	rootCap, err := validateNativeRoot(k, msg.ExtraCaps[0].Cap, 1)
	if err != nil {
		slog.Debug("PageRemap: invalid root capability", "err", err)
		return nil, err
	}

	// Remap only adjusts an existing mapping; a never-mapped frame is
	// rejected rather than treated as a fresh map.
	if !frame.Mapped() {
		slog.Debug("PageRemap: frame is not mapped")
		return nil, &syserr.InvalidCapabilityError{Index: 0}
	}
	vaddr := frame.MappedAddr

	rights := cap.MaskVMRights(frame.Rights, rightsMask)
	entries, err := k.CreateSafeMappingEntries(frame.BasePtr, vaddr, frame.Size, rights, attrs, rootCap.BasePtr)
	if err != nil {
		return nil, err
	}
	return pageRemapAction{entries: entries}, nil
}
