package vspace

import (
	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
)

// ASIDPool is one second-level node of the ASID directory, carved from
// a single physical frame. Each entry holds the root table of the
// address space bound to that ASID, or 0 when unbound.
type ASIDPool struct {
	// Base is the first ASID of the pool, aligned to 1<<ASIDLowBits.
	Base uint64
	// Frame is the physical frame backing the pool; it doubles as the
	// pool's identity for capability checks.
	Frame uint64

	roots [1 << ASIDLowBits]uint64
}

// NewASIDPool returns an empty pool.
func NewASIDPool(base, frame uint64) *ASIDPool {
	return &ASIDPool{Base: base, Frame: frame}
}

// Root returns the bound root for the in-pool index, or 0.
func (p *ASIDPool) Root(index uint64) uint64 {
	return p.roots[index&mask(ASIDLowBits)]
}

// SetRoot binds (or unbinds, with root 0) the in-pool index.
func (p *ASIDPool) SetRoot(index, root uint64) {
	p.roots[index&mask(ASIDLowBits)] = root
}

func poolIndex(asid uint64) uint64 {
	return (asid >> ASIDLowBits) & mask(ASIDHighBits)
}

// PoolAt returns the directory entry at the given pool index, or nil.
func (k *Kernel) PoolAt(index uint64) *ASIDPool {
	return k.asidTable[index&mask(ASIDHighBits)]
}

// InstallPool writes the directory entry at the given pool index.
func (k *Kernel) InstallPool(index uint64, pool *ASIDPool) {
	k.asidTable[index&mask(ASIDHighBits)] = pool
}

// FindVSpaceForASID resolves an ASID to its root table. An empty
// directory slot faults invalid-root; an empty in-pool slot faults
// missing-capability tagged with the top-level page-size class, which
// distinguishes "no pool" from "pool exists but slot empty".
func (k *Kernel) FindVSpaceForASID(asid uint64) (uint64, error) {
	pool := k.asidTable[poolIndex(asid)]
	if pool == nil {
		return 0, syserr.ErrInvalidRoot
	}
	root := pool.Root(asid)
	if root == 0 {
		return 0, &syserr.MissingCapabilityError{BitsLeft: k.Cfg.LevelPageBits(1)}
	}
	return root, nil
}

// IsRootOf reports whether basePtr is the genuinely bound root for
// asid. Used to reject stale or forged root capabilities before
// mutating through them.
func (k *Kernel) IsRootOf(basePtr, asid uint64) bool {
	root, err := k.FindVSpaceForASID(asid)
	return err == nil && root == basePtr
}

// AssignASID binds an address-space root into a pool slot: the global
// kernel mappings are copied into the root first so the kernel window
// is present in every address space.
func (k *Kernel) AssignASID(pool *ASIDPool, asid, root uint64) {
	k.CopyGlobalMappings(root)
	pool.SetRoot(asid, root)
}

// DeleteASID unbinds an address space from its ASID. Live translations
// tagged with the ASID are flushed before the slot can be reused, and
// the current root is re-resolved since it may have been this space.
func (k *Kernel) DeleteASID(asid, root uint64) {
	pool := k.asidTable[poolIndex(asid)]
	if pool == nil || pool.Root(asid) != root {
		return
	}
	k.HW.FlushASID(uint16(asid))
	pool.SetRoot(asid, 0)
	k.SetVMRoot(k.CurThread)
}

// DeleteASIDPool removes an entire pool from the directory.
func (k *Kernel) DeleteASIDPool(asidBase uint64, pool *ASIDPool) {
	if asidBase&mask(ASIDLowBits) != 0 {
		panic("vspace: asid pool base not aligned")
	}
	if k.asidTable[poolIndex(asidBase)] != pool {
		return
	}
	k.asidTable[poolIndex(asidBase)] = nil
	k.SetVMRoot(k.CurThread)
}

// SetVMRoot installs the translation root for a thread's vspace
// capability, falling back to the global kernel tables when the
// capability is absent or no longer consistent with the directory.
func (k *Kernel) SetVMRoot(t *tcb.TCB) {
	if t == nil {
		k.HW.SetVSpaceRoot(k.kernelTables[0], 0)
		return
	}
	rootCap, ok := t.VTableSlot.Cap.(cap.PageTableCap)
	if !ok {
		k.HW.SetVSpaceRoot(k.kernelTables[0], 0)
		return
	}
	root, err := k.FindVSpaceForASID(rootCap.MappedASID)
	if err != nil || root != rootCap.BasePtr {
		k.HW.SetVSpaceRoot(k.kernelTables[0], uint16(rootCap.MappedASID))
		return
	}
	k.HW.SetVSpaceRoot(root, uint16(rootCap.MappedASID))
}
