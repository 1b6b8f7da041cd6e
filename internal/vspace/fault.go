package vspace

import (
	"fmt"

	"github.com/robs-cse/seL4/internal/tcb"
)

// FaultType is the raw hardware fault classification.
type FaultType int

const (
	FaultTypeLoadPage FaultType = iota
	FaultTypeLoadAccess
	FaultTypeStorePage
	FaultTypeStoreAccess
	FaultTypeInstructionPage
	FaultTypeInstructionAccess
)

// HandleVMFault translates a raw fault into the structured record
// delivered to the faulting thread's fault handler. A VM fault is not
// an error of this subsystem; the error return covers only an
// unrecognized fault type.
func (k *Kernel) HandleVMFault(t *tcb.TCB, ft FaultType, addr uint64) (tcb.VMFault, error) {
	var f tcb.VMFault
	switch ft {
	case FaultTypeLoadPage, FaultTypeLoadAccess:
		f = tcb.VMFault{Addr: addr, Kind: tcb.FaultLoadAccess}
	case FaultTypeStorePage, FaultTypeStoreAccess:
		f = tcb.VMFault{Addr: addr, Kind: tcb.FaultStoreAccess}
	case FaultTypeInstructionPage, FaultTypeInstructionAccess:
		// Resume at the faulting instruction itself.
		t.SetRegister(tcb.RegNextPC, t.Register(tcb.RegFaultPC))
		f = tcb.VMFault{Addr: addr, Kind: tcb.FaultInstructionAccess, InstructionFault: true}
	default:
		return tcb.VMFault{}, fmt.Errorf("invalid VM fault type %d", ft)
	}
	t.Fault = &f
	return f, nil
}
