package vspace

import (
	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
)

// IPCBufferSizeBits is the required alignment of an IPC buffer.
const IPCBufferSizeBits = 9

// LookupIPCBuffer resolves a thread's registered IPC buffer pointer to
// a physical address through its buffer frame capability. Returns false
// when the thread has no usable buffer: wrong capability type, a device
// frame, or insufficient rights (a sender may use a read-only buffer, a
// receiver may not).
func (k *Kernel) LookupIPCBuffer(isReceiver bool, t *tcb.TCB) (uint64, bool) {
	frame, ok := t.BufferSlot.Cap.(cap.FrameCap)
	if !ok || frame.IsDevice {
		return 0, false
	}
	if frame.Rights == cap.VMReadWrite || (!isReceiver && frame.Rights == cap.VMReadOnly) {
		bits := k.Cfg.PageBitsForSize(frame.Size)
		return frame.BasePtr + (t.IPCBufferAddr & mask(bits)), true
	}
	return 0, false
}

// CheckValidIPCBuffer validates a prospective IPC buffer location: it
// must be backed by a non-device frame capability and aligned to the
// buffer granularity.
func CheckValidIPCBuffer(vptr uint64, c cap.Cap) error {
	frame, ok := c.(cap.FrameCap)
	if !ok || frame.IsDevice {
		return syserr.ErrIllegalOperation
	}
	if vptr&mask(IPCBufferSizeBits) != 0 {
		return syserr.ErrAlignment
	}
	return nil
}
