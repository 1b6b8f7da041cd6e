package vspace

import "github.com/robs-cse/seL4/internal/cap"

// PTE flag bits, matching the hardware entry layout exactly.
const (
	PteV = 1 << 0 // valid
	PteR = 1 << 1 // readable
	PteW = 1 << 2 // writable
	PteX = 1 << 3 // executable
	PteU = 1 << 4 // user accessible
	PteG = 1 << 5 // global
	PteA = 1 << 6 // accessed
	PteD = 1 << 7 // dirty

	pteSWShift  = 8 // two software bits
	ptePPNShift = 10
)

// PTE is one hardware page table entry. A valid entry with none of
// R/W/X set points at a next-level table; a valid entry with R or X set
// is a leaf. The zero value is the invalid entry.
type PTE uint64

// InvalidPTE is the all-zero, non-valid entry.
func InvalidPTE() PTE { return 0 }

// NewTablePTE builds a pointer entry referencing the table at
// tablePAddr. Pointer entries carry no permission or user bits.
func NewTablePTE(tablePAddr uint64) PTE {
	return PTE((tablePAddr>>PageBits)<<ptePPNShift) | PteA | PteD | PteV
}

// NewLeafPTE builds a leaf entry translating to paddr. Leaves are
// created accessed and dirty: the model does not emulate A/D trap
// updates.
func NewLeafPTE(paddr uint64, read, write, exec, user, global bool) PTE {
	p := PTE((paddr>>PageBits)<<ptePPNShift) | PteA | PteD | PteV
	if read {
		p |= PteR
	}
	if write {
		p |= PteW
	}
	if exec {
		p |= PteX
	}
	if user {
		p |= PteU
	}
	if global {
		p |= PteG
	}
	return p
}

// MakeUserPTE derives a user leaf entry from abstract rights. The
// global bit is never set on user mappings.
func MakeUserPTE(paddr uint64, executable bool, rights cap.VMRights) PTE {
	return NewLeafPTE(paddr,
		rights.GrantsRead(),
		rights.GrantsWrite(),
		executable,
		rights.GrantsUser(),
		false)
}

// MakeKernelPTE derives a global kernel leaf entry: RWX, never user.
func MakeKernelPTE(paddr uint64) PTE {
	return NewLeafPTE(paddr, true, true, true, false, true)
}

// Valid reports whether the entry is valid at all.
func (p PTE) Valid() bool { return p&PteV != 0 }

// IsTable reports whether the entry is a valid pointer to a next-level
// table.
func (p PTE) IsTable() bool {
	return p.Valid() && p&(PteR|PteW|PteX) == 0
}

// IsLeaf reports whether the entry is a valid leaf translation.
func (p PTE) IsLeaf() bool {
	return p.Valid() && p&(PteR|PteX) != 0
}

// PPN returns the physical page number field.
func (p PTE) PPN() uint64 { return uint64(p) >> ptePPNShift }

// WithPPN returns a copy with the physical page number replaced.
func (p PTE) WithPPN(ppn uint64) PTE {
	return PTE(uint64(p)&mask(ptePPNShift)) | PTE(ppn<<ptePPNShift)
}

// PAddr returns the physical address the entry translates to.
func (p PTE) PAddr() uint64 { return p.PPN() << PageBits }

// Read, Write, Exec, User, Global report the permission bits.
func (p PTE) Read() bool   { return p&PteR != 0 }
func (p PTE) Write() bool  { return p&PteW != 0 }
func (p PTE) Exec() bool   { return p&PteX != 0 }
func (p PTE) User() bool   { return p&PteU != 0 }
func (p PTE) Global() bool { return p&PteG != 0 }
