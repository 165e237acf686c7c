package models

import (
	"strings"
	"testing"
)

func testArch() *Arch {
	return &Arch{Name: "t", Bits: 32, Regs: regMap{"rax": 0, "rip": 1, "r8": 2, "r10": 3, "rsp": 4}}
}

func TestDiffMarksRewrites(t *testing.T) {
	a := testArch()
	trapped := RegSnapshot{0: 57, 1: 0x1008, 2: 1, 3: 2, 4: 0x7000}
	resumed := RegSnapshot{0: 2, 1: 0x1008, 2: 1, 3: 2, 4: 0x7000}
	d, err := a.Diff(trapped, resumed)
	if err != nil {
		t.Fatal(err)
	}
	changed := d.Changed()
	if len(changed) != 1 || changed[0].Name != "rax" || changed[0].Was != 57 || changed[0].Val != 2 {
		t.Fatalf("changed = %+v", changed)
	}
	out := d.Format(false)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	// natural order, four to a row
	if lines[0] != " r8 0x00000001  r10 0x00000002  rax 0x00000002  rip 0x00001008" {
		t.Errorf("row %q", lines[0])
	}
	if lines[2] != "  rax 0x39 -> 0x2" {
		t.Errorf("change line %q", lines[2])
	}
}

func TestDiffAgainstNothing(t *testing.T) {
	a := testArch()
	d, err := a.Diff(nil, RegSnapshot{0: 1, 1: 2, 2: 3, 3: 4, 4: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Changed()) != 0 {
		t.Fatalf("fresh diff marked %+v", d.Changed())
	}
	if strings.Contains(d.Format(false), "->") {
		t.Error("fresh diff listed changes")
	}
	if _, err := a.Diff(RegSnapshot{0: 1}, RegSnapshot{0: 1, 1: 2, 2: 3, 3: 4, 4: 5}); err == nil {
		t.Error("short snapshot compared without error")
	}
}

func TestDiffColorDigits(t *testing.T) {
	a := testArch()
	d, err := a.Diff(RegSnapshot{0: 0x1234, 1: 0, 2: 0, 3: 0, 4: 0}, RegSnapshot{0: 0x1294, 1: 0, 2: 0, 3: 0, 4: 0})
	if err != nil {
		t.Fatal(err)
	}
	r, ok := d.Find("rax")
	if !ok {
		t.Fatal("rax missing")
	}
	if got, want := d.hex(r, true), "000012"+diffDigit+"9"+"\x1b[0m"+"4"; got != want {
		t.Errorf("hex = %q, expecting %q", got, want)
	}
	if got := d.hex(r, false); got != "00001294" {
		t.Errorf("plain hex = %q", got)
	}
}
