package models

import (
	"bytes"
	"fmt"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
)

var (
	diffDigit = ansi.ColorCode("red+b")
	diffName  = ansi.ColorCode("yellow")
)

// RegSnapshot is a register file copied out of a RegReader, keyed by enum.
type RegSnapshot map[int]uint64

func (s RegSnapshot) RegRead(enum int) (uint64, error) {
	val, ok := s[enum]
	if !ok {
		return 0, errors.Errorf("register %d not in snapshot", enum)
	}
	return val, nil
}

// SnapshotOf keeps a register dump around as a RegReader.
func SnapshotOf(vals []RegVal) RegSnapshot {
	s := make(RegSnapshot, len(vals))
	for _, v := range vals {
		s[v.Enum] = v.Val
	}
	return s
}

func (a *Arch) Snapshot(r RegReader) (RegSnapshot, error) {
	vals, err := a.RegDump(r)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(vals), nil
}

// RegDelta is one register read from two register files.
type RegDelta struct {
	RegVal
	Was uint64
}

func (d RegDelta) Changed() bool { return d.Val != d.Was }

// RegDiff lines up two register files of one arch: what user mode trapped
// with against the frame the kernel will resume, or two successive reads
// of the live cpu.
type RegDiff struct {
	Digits int
	Deltas []RegDelta
	// set when there was nothing to compare against
	fresh bool
}

// Diff reads now and compares it against was. A nil was compares now with
// itself, so nothing is marked.
func (a *Arch) Diff(was, now RegReader) (*RegDiff, error) {
	vals, err := a.RegDump(now)
	if err != nil {
		return nil, errors.Wrap(err, "reading registers")
	}
	d := &RegDiff{Digits: a.Bits / 4, Deltas: make([]RegDelta, len(vals)), fresh: was == nil}
	for i, v := range vals {
		d.Deltas[i] = RegDelta{RegVal: v, Was: v.Val}
		if was != nil {
			if d.Deltas[i].Was, err = was.RegRead(v.Enum); err != nil {
				return nil, errors.Wrapf(err, "reading old %s", v.Name)
			}
		}
	}
	return d, nil
}

func (d *RegDiff) Changed() []RegDelta {
	var out []RegDelta
	for _, r := range d.Deltas {
		if r.Changed() {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the delta for a register name.
func (d *RegDiff) Find(name string) (RegDelta, bool) {
	for _, r := range d.Deltas {
		if r.Name == name {
			return r, true
		}
	}
	return RegDelta{}, false
}

// hex renders the new value, painting the digits that differ from the old one.
func (d *RegDiff) hex(r RegDelta, color bool) string {
	now := fmt.Sprintf("%0*x", d.Digits, r.Val)
	if !color || !r.Changed() {
		return now
	}
	was := fmt.Sprintf("%0*x", d.Digits, r.Was)
	var buf bytes.Buffer
	lit := false
	for i := range now {
		if diff := now[i] != was[i]; diff != lit {
			if diff {
				buf.WriteString(diffDigit)
			} else {
				buf.WriteString(ansi.Reset)
			}
			lit = diff
		}
		buf.WriteByte(now[i])
	}
	if lit {
		buf.WriteString(ansi.Reset)
	}
	return buf.String()
}

const diffCols = 4

// Format lays the registers out in rows of four. Without color the changed
// registers are listed again underneath as old -> new.
func (d *RegDiff) Format(color bool) string {
	var buf bytes.Buffer
	width := 0
	for _, r := range d.Deltas {
		if len(r.Name) > width {
			width = len(r.Name)
		}
	}
	for i, r := range d.Deltas {
		name := fmt.Sprintf("%*s", width, r.Name)
		if color && r.Changed() {
			name = diffName + name + ansi.Reset
		}
		fmt.Fprintf(&buf, "%s 0x%s", name, d.hex(r, color))
		if (i+1)%diffCols == 0 || i == len(d.Deltas)-1 {
			buf.WriteByte('\n')
		} else {
			buf.WriteString("  ")
		}
	}
	if !color && !d.fresh {
		for _, r := range d.Changed() {
			fmt.Fprintf(&buf, "  %s %#x -> %#x\n", r.Name, r.Was, r.Val)
		}
	}
	return buf.String()
}
