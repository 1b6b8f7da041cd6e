// vspacesim builds a machine from a YAML description, constructs an
// address space through the capability invocation layer, bulk-maps a
// region of 4KiB pages, and optionally dumps the resulting page table
// tree.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/robs-cse/seL4/internal/cap"
	"github.com/robs-cse/seL4/internal/hw"
	"github.com/robs-cse/seL4/internal/invoke"
	"github.com/robs-cse/seL4/internal/syserr"
	"github.com/robs-cse/seL4/internal/tcb"
	"github.com/robs-cse/seL4/internal/vspace"
)

type machineConfig struct {
	MemoryBase       uint64 `yaml:"memory_base"`
	MemorySize       uint64 `yaml:"memory_size"`
	Levels           uint   `yaml:"levels"`
	KernelBase       uint64 `yaml:"kernel_base"`
	KernelWindowBits uint   `yaml:"kernel_window_bits"`
	PPTRTop          uint64 `yaml:"pptr_top"`
	StackBase        uint64 `yaml:"stack_base"`
	StackBits        uint   `yaml:"stack_bits"`
	MapBase          uint64 `yaml:"map_base"`
}

// defaultConfig is a Sv39-like machine with 64MiB of memory and a 1GiB
// kernel window.
func defaultConfig() machineConfig {
	return machineConfig{
		MemoryBase:       0x8000_0000,
		MemorySize:       64 << 20,
		Levels:           3,
		KernelBase:       0x40_0000_0000,
		KernelWindowBits: 30,
		PPTRTop:          0x40_4000_0000,
		StackBase:        0x40_4010_0000,
		StackBits:        vspace.PageBits,
		MapBase:          0x40_0000,
	}
}

func loadConfig(path string) (machineConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	slog.Info("loaded machine config", "path", path)
	return cfg, nil
}

type machine struct {
	k        *vspace.Kernel
	rootSlot *cap.Slot
}

// buildMachine boots the kernel and constructs a user address space
// entirely through the invocation layer: an ASID pool is retyped from
// untyped memory, then a fresh root is assigned into it.
func buildMachine(cfg machineConfig) (*machine, error) {
	h := hw.New(cfg.MemoryBase, cfg.MemorySize)
	alloc := hw.NewAllocator(h.Mem, cfg.MemoryBase)
	k, err := vspace.NewKernel(vspace.Config{
		Levels:           cfg.Levels,
		KernelBase:       cfg.KernelBase,
		PhysBase:         cfg.MemoryBase,
		KernelWindowBits: cfg.KernelWindowBits,
		PPTRTop:          cfg.PPTRTop,
		StackBase:        cfg.StackBase,
		StackBits:        cfg.StackBits,
	}, h, alloc)
	if err != nil {
		return nil, err
	}
	k.CurThread = tcb.New()
	k.ActivateKernelVSpace()

	poolFrame, err := alloc.AllocRegion(vspace.ASIDPoolBits)
	if err != nil {
		return nil, err
	}
	cnode := cap.NewCNode(4)
	makePool := invoke.Message{
		Label: invoke.ASIDControlMakePool,
		Args:  []uint64{0, 4},
		ExtraCaps: []*cap.Slot{
			cap.NewSlot(cap.UntypedCap{Ptr: poolFrame, SizeBits: vspace.ASIDPoolBits}),
			cap.NewSlot(cap.CNodeCap{Node: cnode}),
		},
	}
	if err := perform(k, makePool, cap.NewSlot(cap.ASIDControlCap{})); err != nil {
		return nil, fmt.Errorf("make asid pool: %w", err)
	}
	poolSlot := &cnode.Slots[0]

	rootPAddr, err := alloc.AllocRegion(vspace.PTSizeBits)
	if err != nil {
		return nil, err
	}
	rootSlot := cap.NewSlot(cap.PageTableCap{BasePtr: rootPAddr})
	assign := invoke.Message{
		Label:     invoke.ASIDPoolAssign,
		ExtraCaps: []*cap.Slot{rootSlot},
	}
	if err := perform(k, assign, poolSlot); err != nil {
		return nil, fmt.Errorf("assign asid: %w", err)
	}

	rootCap := rootSlot.Cap.(cap.PageTableCap)
	k.CurThread.VTableSlot.Cap = rootCap
	k.SetVMRoot(k.CurThread)
	slog.Info("address space ready", "root", fmt.Sprintf("%#x", rootCap.BasePtr), "asid", rootCap.MappedASID)
	return &machine{k: k, rootSlot: rootSlot}, nil
}

func perform(k *vspace.Kernel, msg invoke.Message, slot *cap.Slot) error {
	a, err := invoke.Decode(k, msg, slot)
	if err != nil {
		return err
	}
	return invoke.Perform(k, a)
}

// mapPages maps count 4KiB read-write pages starting at base. Missing
// intermediate tables are discovered through the lookup fault of the
// failed map and installed on demand.
func (m *machine) mapPages(base uint64, count int) error {
	bar := progressbar.Default(int64(count), "mapping")
	defer bar.Close()

	for i := 0; i < count; i++ {
		vaddr := base + uint64(i)<<vspace.PageBits
		framePAddr, err := m.k.Alloc.AllocRegion(vspace.PageBits)
		if err != nil {
			return err
		}
		frameSlot := cap.NewSlot(cap.FrameCap{
			BasePtr: framePAddr,
			Size:    cap.Page4K,
			Rights:  cap.VMReadWrite,
		})
		msg := invoke.Message{
			Label:     invoke.PageMap,
			Args:      []uint64{vaddr, 0b11, 0},
			ExtraCaps: []*cap.Slot{m.rootSlot},
		}
		for {
			err := perform(m.k, msg, frameSlot)
			if err == nil {
				break
			}
			var failed *syserr.FailedLookupError
			if !errors.As(err, &failed) {
				return fmt.Errorf("map page at %#x: %w", vaddr, err)
			}
			if err := m.installTable(vaddr); err != nil {
				return err
			}
		}
		bar.Add(1)
	}
	return nil
}

func (m *machine) installTable(vaddr uint64) error {
	ptPAddr, err := m.k.Alloc.AllocRegion(vspace.PTSizeBits)
	if err != nil {
		return err
	}
	msg := invoke.Message{
		Label:     invoke.PageTableMap,
		Args:      []uint64{vaddr, 0},
		ExtraCaps: []*cap.Slot{m.rootSlot},
	}
	if err := perform(m.k, msg, cap.NewSlot(cap.PageTableCap{BasePtr: ptPAddr})); err != nil {
		return fmt.Errorf("install page table for %#x: %w", vaddr, err)
	}
	slog.Debug("installed page table", "vaddr", fmt.Sprintf("%#x", vaddr), "paddr", fmt.Sprintf("%#x", ptPAddr))
	return nil
}

func styled(enabled bool, c ansi.BasicColor, s string) string {
	if !enabled {
		return s
	}
	return ansi.Style{}.ForegroundColor(c).Styled(s)
}

func permString(e vspace.PTE) string {
	var b strings.Builder
	for _, p := range []struct {
		set bool
		c   byte
	}{{e.Read(), 'r'}, {e.Write(), 'w'}, {e.Exec(), 'x'}, {e.User(), 'u'}, {e.Global(), 'g'}} {
		if p.set {
			b.WriteByte(p.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// dumpTables prints the user half of the tree entry by entry and
// summarizes the kernel window, which is identical in every space.
func (m *machine) dumpTables(colored bool) {
	rootCap := m.rootSlot.Cap.(cap.PageTableCap)
	fmt.Printf("address space %#x (asid %d)\n", rootCap.BasePtr, rootCap.MappedASID)
	m.dumpLevel(rootCap.BasePtr, 1, 0, colored)
}

func (m *machine) dumpLevel(table uint64, level uint, vbase uint64, colored bool) {
	k := m.k
	kernelFirst := k.Cfg.PTIndex(k.Cfg.KernelBase, 1)
	indent := strings.Repeat("  ", int(level))
	var kernelEntries int

	for i := uint64(0); i < 1<<vspace.PTIndexBits; i++ {
		e := k.PTEAt(table + i*vspace.PTEBytes)
		if !e.Valid() {
			continue
		}
		if level == 1 && i >= kernelFirst {
			kernelEntries++
			continue
		}
		vaddr := vbase | i<<k.Cfg.LevelPageBits(level)
		if e.IsTable() {
			fmt.Printf("%s%s %#011x -> table %#x\n", indent, styled(colored, ansi.Cyan, "dir "), vaddr, e.PAddr())
			m.dumpLevel(e.PAddr(), level+1, vaddr, colored)
			continue
		}
		color := ansi.Yellow
		if e.User() {
			color = ansi.Green
		}
		fmt.Printf("%s%s %#011x -> %#x [%s]\n", indent, styled(colored, color, "leaf"), vaddr, e.PAddr(), permString(e))
	}
	if level == 1 && kernelEntries > 0 {
		fmt.Printf("%s[%d kernel window entries above %#x]\n", indent, kernelEntries, k.Cfg.KernelBase)
	}
}

func run() error {
	configPath := flag.String("config", "", "machine description YAML")
	pages := flag.Int("pages", 64, "number of 4KiB pages to map")
	dump := flag.Bool("dump", false, "print the page table tree after mapping")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	m, err := buildMachine(cfg)
	if err != nil {
		return err
	}
	if err := m.mapPages(cfg.MapBase, *pages); err != nil {
		return err
	}
	slog.Info("mapped region",
		"base", fmt.Sprintf("%#x", cfg.MapBase),
		"size", fmt.Sprintf("%#x", uint64(*pages)<<vspace.PageBits),
		"watermark", fmt.Sprintf("%#x", m.k.Alloc.Watermark()))

	if *dump {
		m.dumpTables(term.IsTerminal(int(os.Stdout.Fd())))
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("vspacesim failed", "error", err)
		os.Exit(1)
	}
}
