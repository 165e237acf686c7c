package ui

import (
	"fmt"
	"io"

	proccore "github.com/tinykern/proccore/go"
	"github.com/tinykern/proccore/go/models"
)

// Crash prints what is known about a kernel fatal error: the trap frame it
// was handling, the live registers, the code at the faulting address and
// the memory map.
func Crash(w io.Writer, k *proccore.Kernel, f *proccore.Fatal, color bool) {
	fmt.Fprintln(w, f.Error())
	rv := NewRegView(k.Task.Arch(), color)
	rip := uint64(0)
	if f.Frame != nil {
		fmt.Fprintln(w, "[trap frame]")
		var trapped models.RegReader
		if len(f.Regs) > 0 {
			trapped = models.SnapshotOf(f.Regs)
		}
		rv.Frame(w, f.Frame, trapped)
		rip = f.Frame.Rip
	}
	if len(f.Regs) > 0 {
		fmt.Fprintln(w, "[registers]")
		for _, r := range f.Regs {
			fmt.Fprintf(w, "  %-6s %#016x\n", r.Name, r.Val)
			if rip == 0 && r.Name == "rip" {
				rip = r.Val
			}
		}
	}
	if rip != 0 {
		if dis, err := k.Task.Dis(rip, 32); err == nil {
			fmt.Fprintln(w, "[code]")
			fmt.Fprintln(w, dis)
		}
	}
	Maps(w, k)
}

func Maps(w io.Writer, k *proccore.Kernel) {
	fmt.Fprintln(w, "[memory map]")
	for _, m := range k.Task.Mappings() {
		fmt.Fprintf(w, "  %s\n", m)
	}
}

// Hexdump prints size bytes at addr.
func Hexdump(w io.Writer, k *proccore.Kernel, addr, size uint64) error {
	mem, err := k.Task.MemRead(addr, size)
	if err != nil {
		return err
	}
	for _, line := range models.HexDump(addr, mem, k.Task.Arch().Bits) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}
