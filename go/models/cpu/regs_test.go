package cpu

import (
	"testing"
)

func makeRegs(bits uint) ([]int, *Regs) {
	enums := make([]int, 40)
	for i := range enums {
		enums[i] = 80 - i*2
	}
	return enums, NewRegs(bits, enums)
}

func BenchmarkRegsRead(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegRead(enums[i%len(enums)])
	}
}

func BenchmarkRegsWrite(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegWrite(enums[i%len(enums)], uint64(i))
	}
}

func TestRegs(t *testing.T) {
	enums, regs := makeRegs(64)
	ctx, err := regs.ContextSave(nil)
	if err != nil {
		t.Fatal(err, "initial ContextSave() failed")
	}
	for i, e := range enums {
		if err := regs.RegWrite(e, uint64(i*3)); err != nil {
			t.Fatal(err, "RegWrite() failed")
		}
	}
	for i, e := range enums {
		if val, err := regs.RegRead(e); err != nil {
			t.Fatal(err)
		} else if val != uint64(i*3) {
			t.Fatalf("RegRead(%d) = %d, expecting %d", e, val, i*3)
		}
	}
	if err := regs.ContextRestore(ctx); err != nil {
		t.Fatal(err, "ContextRestore() failed")
	}
	for _, e := range enums {
		if val, _ := regs.RegRead(e); val != 0 {
			t.Fatalf("RegRead(%d) = %d after restore, expecting 0", e, val)
		}
	}

	// reusing a saved context overwrites it
	regs.RegWrite(enums[0], 1)
	if _, err := regs.ContextSave(ctx); err != nil {
		t.Fatal(err)
	}
	regs.RegWrite(enums[0], 0)
	regs.ContextRestore(ctx)
	if val, _ := regs.RegRead(enums[0]); val != 1 {
		t.Fatalf("RegRead() returned %d, expecting 1", val)
	}
}

func TestRegsInvalid(t *testing.T) {
	_, regs := makeRegs(64)
	// odd enums were never registered
	if _, err := regs.RegRead(3); err == nil {
		t.Error("read of unregistered enum succeeded")
	}
	if err := regs.RegWrite(1000, 1); err == nil {
		t.Error("write past the register file succeeded")
	}
	if err := regs.RegWrite(-1, 1); err == nil {
		t.Error("write of negative enum succeeded")
	}
	if err := regs.ContextRestore(map[int]uint64{}); err == nil {
		t.Error("ContextRestore() accepted a foreign context")
	}
}

func TestRegs8(t *testing.T) {
	enums, regs := makeRegs(8)
	regs.RegWrite(enums[0], 0xffff)
	if val, _ := regs.RegRead(enums[0]); val != 0xff {
		t.Fatalf("RegRead() returned %#x, expecting 0xff", val)
	}
}
