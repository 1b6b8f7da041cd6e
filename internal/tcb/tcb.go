// Package tcb carries the minimal thread surface the address-space
// subsystem touches: a register file for fault reporting and invocation
// replies, the restart marker set after successful mutating
// invocations, and the slots naming a thread's vspace root and IPC
// buffer.
package tcb

import "github.com/robs-cse/seL4/internal/cap"

// Register names the registers this subsystem reads or writes.
type Register int

const (
	RegFaultPC Register = iota // pc at the time of a fault (sepc)
	RegNextPC
	RegMsg0
	RegMsg1
	RegMsgInfo

	numRegisters
)

// State is the scheduling state of a thread.
type State int

const (
	StateInactive State = iota
	StateRunning
	StateRestart // re-run the faulted/blocked syscall
	StateBlocked
)

// VMFaultKind classifies a structured VM fault record.
type VMFaultKind int

const (
	FaultLoadAccess VMFaultKind = iota
	FaultStoreAccess
	FaultInstructionAccess
)

// VMFault is the structured fault record delivered to a thread's fault
// handler.
type VMFault struct {
	Addr             uint64
	Kind             VMFaultKind
	InstructionFault bool
}

// TCB is a thread control block.
type TCB struct {
	regs  [numRegisters]uint64
	State State

	// IPCBufferAddr is the thread's registered buffer pointer.
	IPCBufferAddr uint64

	// VTableSlot holds the thread's vspace root capability.
	VTableSlot *cap.Slot
	// BufferSlot holds the frame capability backing the IPC buffer.
	BufferSlot *cap.Slot

	// Fault is the pending fault record, if any.
	Fault *VMFault
}

// New returns an inactive thread with empty root and buffer slots.
func New() *TCB {
	return &TCB{
		VTableSlot: cap.NewSlot(cap.NullCap{}),
		BufferSlot: cap.NewSlot(cap.NullCap{}),
	}
}

// SetRegister writes a register.
func (t *TCB) SetRegister(r Register, v uint64) { t.regs[r] = v }

// Register reads a register.
func (t *TCB) Register(r Register) uint64 { return t.regs[r] }
