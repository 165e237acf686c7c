package ui

import (
	"fmt"
	"io"

	"github.com/tinykern/proccore/go/arch/x86_64"
	"github.com/tinykern/proccore/go/models"
)

// RegView prints register files. Print marks what changed since the
// previous Print of the same view.
type RegView struct {
	Arch  *models.Arch
	Color bool
	last  models.RegSnapshot
}

func NewRegView(arch *models.Arch, color bool) *RegView {
	return &RegView{Arch: arch, Color: color}
}

func (v *RegView) Print(w io.Writer, r models.RegReader) error {
	now, err := v.Arch.Snapshot(r)
	if err != nil {
		return err
	}
	var was models.RegReader
	if v.last != nil {
		was = v.last
	}
	d, err := v.Arch.Diff(was, now)
	if err != nil {
		return err
	}
	v.last = now
	fmt.Fprint(w, d.Format(v.Color))
	return nil
}

// Frame prints a saved trap frame with the vector or syscall it was taken
// for. When trapped holds the registers user mode entered the kernel with,
// the registers the kernel rewrote in the frame are marked: a syscall
// result, the child's rax after fork, rip rewound for a restart.
func (v *RegView) Frame(w io.Writer, f *x86_64.TrapFrame, trapped models.RegReader) error {
	if vec := f.Vector(); vec >= 0 {
		fmt.Fprintf(w, "trap: vector %#x\n", vec)
	} else {
		fmt.Fprintf(w, "trap: syscall %d\n", f.OrigRax)
	}
	d, err := v.Arch.Diff(trapped, f)
	if err != nil {
		return err
	}
	fmt.Fprint(w, d.Format(v.Color))
	return nil
}
