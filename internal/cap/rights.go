package cap

// VMRights is the abstract access level a mapping grants.
type VMRights uint8

const (
	VMKernelOnly VMRights = iota
	VMNoAccess
	VMReadOnly
	VMWriteOnly
	VMReadWrite
)

func (r VMRights) String() string {
	switch r {
	case VMKernelOnly:
		return "kernel-only"
	case VMNoAccess:
		return "no-access"
	case VMReadOnly:
		return "read-only"
	case VMWriteOnly:
		return "write-only"
	case VMReadWrite:
		return "read-write"
	}
	return "unknown"
}

// GrantsWrite reports whether a mapping with these rights is writable.
func (r VMRights) GrantsWrite() bool {
	return r != VMNoAccess && r != VMReadOnly
}

// GrantsRead reports whether a mapping with these rights is readable.
func (r VMRights) GrantsRead() bool {
	return r != VMNoAccess && r != VMWriteOnly
}

// GrantsUser reports whether the mapping is accessible from user mode.
func (r VMRights) GrantsUser() bool {
	return r != VMKernelOnly
}

// Rights is the rights mask supplied with an invocation.
type Rights struct {
	AllowRead  bool
	AllowWrite bool
	AllowGrant bool
}

// RightsFromWord decodes a rights mask from an invocation argument.
func RightsFromWord(w uint64) Rights {
	return Rights{
		AllowWrite: w&(1<<0) != 0,
		AllowRead:  w&(1<<1) != 0,
		AllowGrant: w&(1<<2) != 0,
	}
}

// MaskVMRights restricts vm rights by an invocation rights mask. The
// result never exceeds either input.
func MaskVMRights(r VMRights, mask Rights) VMRights {
	if r == VMNoAccess {
		return VMNoAccess
	}
	if r == VMReadOnly && mask.AllowRead {
		return VMReadOnly
	}
	if r == VMReadWrite && (mask.AllowRead || mask.AllowWrite) {
		switch {
		case !mask.AllowWrite:
			return VMReadOnly
		case !mask.AllowRead:
			return VMWriteOnly
		default:
			return VMReadWrite
		}
	}
	if r == VMWriteOnly && mask.AllowWrite {
		return VMWriteOnly
	}
	if r == VMKernelOnly {
		return VMKernelOnly
	}
	return VMNoAccess
}
