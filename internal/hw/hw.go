// Package hw models the hardware touched by address-space management:
// a physical memory region holding the page tables, the translation
// root register, and a software TLB that makes synchronization fences
// observable. All state hangs off an explicitly passed Hardware value
// so tests can instantiate independent machines.
package hw

// Hardware bundles the physical state of one hart.
type Hardware struct {
	Mem *Memory
	TLB *TLB

	rootPAddr uint64
	rootASID  uint16
}

// New creates a hardware model with a physical memory region of the
// given size based at the given address.
func New(base, size uint64) *Hardware {
	return &Hardware{
		Mem: NewMemory(base, size),
		TLB: &TLB{},
	}
}

// Fence orders all prior writes to translation structures before any
// subsequent translation on this hart. Models sfence.vma with no
// address or ASID argument: the whole translation cache is invalidated.
func (h *Hardware) Fence() {
	h.TLB.FlushAll()
}

// FlushASID invalidates all cached translations tagged with asid.
// Models sfence.vma x0, asid.
func (h *Hardware) FlushASID(asid uint16) {
	h.TLB.FlushASID(asid)
}

// SetVSpaceRoot installs the table at rootPAddr as the active
// translation root for asid. The switch implies a full fence.
func (h *Hardware) SetVSpaceRoot(rootPAddr uint64, asid uint16) {
	h.rootPAddr = rootPAddr
	h.rootASID = asid
	h.Fence()
}

// VSpaceRoot returns the active translation root and its ASID.
func (h *Hardware) VSpaceRoot() (uint64, uint16) {
	return h.rootPAddr, h.rootASID
}
