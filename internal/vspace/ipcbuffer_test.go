package vspace

import (
	"errors"
	"testing"

	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
)

func TestLookupIPCBuffer(t *testing.T) {
	k := newTestKernel(t)
	frame := cap.FrameCap{BasePtr: 0x80010000, Size: cap.Page4K, Rights: cap.VMReadWrite}

	th := tcb.New()
	th.IPCBufferAddr = 0x2200
	th.BufferSlot.Cap = frame

	paddr, ok := k.LookupIPCBuffer(true, th)
	if !ok {
		t.Fatalf("read-write buffer rejected")
	}
	// Only the in-frame offset of the registered pointer counts.
	if paddr != 0x80010200 {
		t.Fatalf("buffer resolved to 0x%x", paddr)
	}

	// Read-only is enough to send but not to receive.
	frame.Rights = cap.VMReadOnly
	th.BufferSlot.Cap = frame
	if _, ok := k.LookupIPCBuffer(false, th); !ok {
		t.Fatalf("read-only buffer rejected for sender")
	}
	if _, ok := k.LookupIPCBuffer(true, th); ok {
		t.Fatalf("read-only buffer accepted for receiver")
	}

	// Device frames and non-frame capabilities never qualify.
	frame.Rights = cap.VMReadWrite
	frame.IsDevice = true
	th.BufferSlot.Cap = frame
	if _, ok := k.LookupIPCBuffer(true, th); ok {
		t.Fatalf("device frame accepted")
	}
	th.BufferSlot.Cap = cap.NullCap{}
	if _, ok := k.LookupIPCBuffer(true, th); ok {
		t.Fatalf("empty buffer slot accepted")
	}
}

func TestCheckValidIPCBuffer(t *testing.T) {
	frame := cap.FrameCap{BasePtr: 0x80010000, Size: cap.Page4K, Rights: cap.VMReadWrite}

	if err := CheckValidIPCBuffer(0x2200, frame); err != nil {
		t.Fatalf("aligned buffer rejected: %v", err)
	}
	if err := CheckValidIPCBuffer(0x2208, frame); !errors.Is(err, syserr.ErrAlignment) {
		t.Fatalf("misaligned buffer: %v", err)
	}
	if err := CheckValidIPCBuffer(0x2200, cap.NullCap{}); !errors.Is(err, syserr.ErrIllegalOperation) {
		t.Fatalf("non-frame capability: %v", err)
	}
	frame.IsDevice = true
	if err := CheckValidIPCBuffer(0x2200, frame); !errors.Is(err, syserr.ErrIllegalOperation) {
		t.Fatalf("device frame: %v", err)
	}
}
