package vspace

import "fmt"

// KIRegion classifies a kernel-image mapping.
type KIRegion int

const (
	// KIRegionShared translations are identical across every image.
	KIRegionShared KIRegion = iota
	// KIRegionPrivate translations differ per image, such as each
	// image's execution stack.
	KIRegionPrivate
)

// KIMapStrategy selects how CloneEntry replicates a leaf.
type KIMapStrategy int

const (
	// KIMapShared copies the entry, so both images reference the same
	// physical memory.
	KIMapShared KIMapStrategy = iota
	// KIMapCopied duplicates the backing memory byte for byte, giving
	// the destination an independent copy.
	KIMapCopied
)

// KIMapping describes one single-entry map call during kernel-image
// construction.
type KIMapping struct {
	Region  KIRegion
	Level   uint
	MapAddr uint64
}

// KernelImage is one independent translation of the privileged address
// range: its own root table, a dedicated ASID, and a flag recording
// whether its private stack has received the one-time relocation copy.
type KernelImage struct {
	Root             uint64
	ASID             uint64
	StackInitialized bool
}

// KernelImageNumLevels counts the image construction levels: level 0 is
// the root pointer itself, levels 1..Levels are table entries.
func (k *Kernel) KernelImageNumLevels() uint { return k.Cfg.Levels + 1 }

// KernelMemoryMap installs one mapping into a kernel image under
// construction. Level 0 records the root pointer directly (the root is
// the top-level table; no hardware write happens). At deeper levels the
// slot implied by the mapping must still be invalid; the final level
// gets a global RWX leaf (shared translations are never flushed per
// image) while intermediate levels get private pointer entries.
func (k *Kernel) KernelMemoryMap(img *KernelImage, m KIMapping, memAddr uint64) error {
	if m.Level >= k.KernelImageNumLevels() {
		return fmt.Errorf("kernel image map level %d out of range", m.Level)
	}

	if m.Level == 0 {
		if img.Root != 0 {
			return fmt.Errorf("kernel image root already set")
		}
		img.Root = memAddr
		return nil
	}
	if img.Root == 0 {
		return fmt.Errorf("kernel image has no root")
	}

	res := k.lookupSlotBitsLeft(img.Root, m.MapAddr, k.Cfg.Levels)
	if e := k.readPTE(res.SlotAddr); e.Valid() {
		return fmt.Errorf("kernel image slot for 0x%x already mapped", m.MapAddr)
	}
	if res.BitsLeft != k.Cfg.LevelPageBits(m.Level) {
		return fmt.Errorf("kernel image map at 0x%x reached %d bits left, want level %d", m.MapAddr, res.BitsLeft, m.Level)
	}

	lastLevel := m.Level == k.KernelImageNumLevels()-1
	if lastLevel {
		k.writePTE(res.SlotAddr, NewLeafPTE(memAddr, true, true, true, false, true))
	} else {
		k.writePTE(res.SlotAddr, NewTablePTE(memAddr))
	}
	return nil
}

// kiPTMapping resolves the entry translating addr at the given depth
// under root. When the translation is carried by a shallower superpage,
// the equivalent entry for the page within it is synthesized by
// offsetting the frame number.
func (k *Kernel) kiPTMapping(root, addr uint64, depth uint) PTE {
	res := k.lookupSlotBitsLeft(root, addr, depth)
	entry := k.readPTE(res.SlotAddr)
	want := k.Cfg.LevelPageBits(depth)
	if res.BitsLeft > want {
		offset := (addr & mask(res.BitsLeft)) &^ mask(want)
		return entry.WithPPN(entry.PPN() + offset>>PageBits)
	}
	return entry
}

// CloneEntry replicates one translation at the given depth from src
// into dest. With KIMapCopied the destination slot must already hold a
// valid global placeholder; its backing memory receives a byte-for-byte
// copy of the source's resolved region. With KIMapShared the
// destination slot must be empty and receives the source's entry, so
// both images alias the same physical memory.
func (k *Kernel) CloneEntry(dest, src *KernelImage, addr uint64, depth uint, strategy KIMapStrategy) error {
	if depth == 0 || depth >= k.KernelImageNumLevels() {
		return fmt.Errorf("kernel image clone depth %d out of range", depth)
	}

	destRes := k.lookupSlotBitsLeft(dest.Root, addr, depth)
	want := k.Cfg.LevelPageBits(depth)
	if destRes.BitsLeft != want {
		return fmt.Errorf("kernel image clone at 0x%x reached %d bits left, want %d", addr, destRes.BitsLeft, want)
	}
	destEntry := k.readPTE(destRes.SlotAddr)

	if strategy == KIMapCopied {
		if !destEntry.Valid() || !destEntry.Global() {
			return fmt.Errorf("kernel image copy at 0x%x: destination is not a global placeholder", addr)
		}
		srcEntry := k.kiPTMapping(src.Root, addr, depth)
		size := uint64(1) << want
		srcData, err := k.HW.Mem.Slice(srcEntry.PAddr(), size)
		if err != nil {
			return fmt.Errorf("kernel image copy source: %w", err)
		}
		destData, err := k.HW.Mem.Slice(destEntry.PAddr(), size)
		if err != nil {
			return fmt.Errorf("kernel image copy destination: %w", err)
		}
		copy(destData, srcData)
		return nil
	}

	if destEntry.Valid() || destEntry.PPN() != 0 {
		return fmt.Errorf("kernel image share at 0x%x: destination slot not empty", addr)
	}
	k.writePTE(destRes.SlotAddr, k.kiPTMapping(src.Root, addr, depth))
	return nil
}

// SetKernelImage activates an image: its root becomes the current
// translation root for its ASID. On first activation the live contents
// of the executing stack are relocated from the current image's private
// stack region into the new image's, because code performing the switch
// must not lose its own stack when the root register changes.
func (k *Kernel) SetKernelImage(img *KernelImage) error {
	if !img.StackInitialized {
		if k.curImage != nil && k.Cfg.StackBits != 0 {
			if err := k.copyImageStack(k.curImage, img); err != nil {
				return err
			}
		}
		img.StackInitialized = true
	}
	k.HW.SetVSpaceRoot(img.Root, uint16(img.ASID))
	k.curImage = img
	return nil
}

// CurrentKernelImage returns the active image, if any.
func (k *Kernel) CurrentKernelImage() *KernelImage { return k.curImage }

func (k *Kernel) copyImageStack(from, to *KernelImage) error {
	lastLevel := k.KernelImageNumLevels() - 1
	stackSize := uint64(1) << k.Cfg.StackBits
	for off := uint64(0); off < stackSize; off += 1 << PageBits {
		vaddr := k.Cfg.StackBase + off
		srcEntry := k.kiPTMapping(from.Root, vaddr, lastLevel)
		destEntry := k.kiPTMapping(to.Root, vaddr, lastLevel)
		src, err := k.HW.Mem.Slice(srcEntry.PAddr(), 1<<PageBits)
		if err != nil {
			return fmt.Errorf("stack relocation source page at 0x%x: %w", vaddr, err)
		}
		dest, err := k.HW.Mem.Slice(destEntry.PAddr(), 1<<PageBits)
		if err != nil {
			return fmt.Errorf("stack relocation destination page at 0x%x: %w", vaddr, err)
		}
		copy(dest, src)
	}
	return nil
}
