package hw

// TLBEntry caches one translation.
type TLBEntry struct {
	Valid    bool
	VPN      uint64 // virtual page number
	PPN      uint64 // physical page number
	Flags    uint64 // leaf entry permission bits
	PageSize uint64 // for superpages
	ASID     uint16
	Global   bool
}

// TLB is a direct-mapped software translation cache. It exists so that
// fence and flush behavior is observable: a stale entry left behind by
// a missing fence shows up as a wrong translation in tests.
type TLB struct {
	entries [512]TLBEntry
}

func (t *TLB) index(vpn uint64) uint64 {
	return vpn & uint64(len(t.entries)-1)
}

// Insert caches a translation for the given virtual page.
func (t *TLB) Insert(e TLBEntry) {
	t.entries[t.index(e.VPN)] = e
}

// Lookup returns the cached translation for (vpn, asid), if any.
// Global entries match regardless of ASID.
func (t *TLB) Lookup(vpn uint64, asid uint16) (TLBEntry, bool) {
	e := t.entries[t.index(vpn)]
	if e.Valid && e.VPN == vpn && (e.ASID == asid || e.Global) {
		return e, true
	}
	return TLBEntry{}, false
}

// FlushAll invalidates every entry.
func (t *TLB) FlushAll() {
	for i := range t.entries {
		t.entries[i].Valid = false
	}
}

// FlushASID invalidates all non-global entries tagged with asid.
func (t *TLB) FlushASID(asid uint16) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.ASID == asid && !e.Global {
			e.Valid = false
		}
	}
}
