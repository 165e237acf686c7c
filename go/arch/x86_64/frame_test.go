package x86_64

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/lunixbochs/struc"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	base  = 0x400000
	stack = 0x500000
	ktop  = cpu.KernelSpace + 0x2000
)

func boot(t *testing.T, src string) *kx.KxCpu {
	prog, err := kx.AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	c := kx.NewCpu()
	c.MemMapProt(base, 0x1000, cpu.PROT_READ|cpu.PROT_EXEC)
	c.MemWrite(base, prog.Text)
	c.MemMapProt(stack, 0x1000, cpu.PROT_READ|cpu.PROT_WRITE)
	c.MemMapProt(cpu.KernelSpace, 0x2000, cpu.PROT_READ|cpu.PROT_WRITE)
	c.Control().RSP0 = ktop
	c.Control().KSP = ktop - FrameSize
	WriteFrame(c, ktop-FrameSize, UserFrame(base, stack+0x1000))
	if _, err := ReturnFromTrap(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFrameLayout(t *testing.T) {
	size, err := struc.Sizeof(&TrapFrame{})
	if err != nil {
		t.Fatal(err)
	}
	if size != FrameSize {
		t.Fatalf("frame is %#x bytes, expecting %#x", size, FrameSize)
	}
	c := kx.NewCpu()
	c.MemMapProt(cpu.KernelSpace, 0x1000, cpu.PROT_READ|cpu.PROT_WRITE)
	f := &TrapFrame{R15: 1, Rdi: 2, OrigRax: 3, Rip: 0x401234, Ss: 5}
	if err := WriteFrame(c, cpu.KernelSpace, f); err != nil {
		t.Fatal(err)
	}
	raw, _ := c.MemRead(cpu.KernelSpace, FrameSize)
	check := map[int]uint64{0x00: 1, 0x70: 2, 0x78: 3, RipOffset: 0x401234, 0xa0: 5}
	for off, want := range check {
		if got := binary.LittleEndian.Uint64(raw[off:]); got != want {
			t.Errorf("[frame+%#x] = %#x, expecting %#x", off, got, want)
		}
	}
	back, err := ReadFrame(c, cpu.KernelSpace)
	if err != nil {
		t.Fatal(err)
	}
	if *back != *f {
		t.Errorf("read back %s", back)
	}
}

const entrySrc = `
_start:
    mov rdi, 11
    mov rsi, 22
    mov r10, 33
    mov rbx, 44
    mov rax, 57
    %s
    nop
`

func captureWith(t *testing.T, insn string) (*TrapFrame, uint64) {
	c := boot(t, fmt.Sprintf(entrySrc, insn))
	trap, err := c.Run(100)
	if err != nil {
		t.Fatal(err)
	}
	f, addr, err := Capture(c, trap)
	if err != nil {
		t.Fatal(err)
	}
	if addr != ktop-FrameSize || c.Control().KSP != addr {
		t.Fatalf("%s: frame at %#x, KSP %#x", insn, addr, c.Control().KSP)
	}
	stored, _ := c.ReadUint(addr+RipOffset, 8, 0)
	if stored != f.Rip {
		t.Fatalf("%s: stored return address %#x != captured %#x", insn, stored, f.Rip)
	}
	return f, addr
}

func TestEntriesAgree(t *testing.T) {
	fast, _ := captureWith(t, "syscall")
	slow, _ := captureWith(t, "int 0x80")
	for _, f := range []*TrapFrame{fast, slow} {
		if f.Rip != base+6*kx.InsSize {
			t.Errorf("return address %#x, expecting the next instruction", f.Rip)
		}
		if f.Rsp != stack+0x1000 || f.Cs != kx.USER_CS || f.Ss != kx.USER_SS {
			t.Errorf("bad user state: %s", f)
		}
		if f.OrigRax != 57 || f.Vector() != -1 {
			t.Errorf("orig_rax = %#x", f.OrigRax)
		}
		args := f.Args()
		if args[0] != 11 || args[1] != 22 || args[3] != 33 || f.Rbx != 44 {
			t.Errorf("args %v rbx %d", args, f.Rbx)
		}
	}
}

func TestTimerFrame(t *testing.T) {
	c := boot(t, "_start:\nspin: jmp spin\n")
	trap, _ := c.Run(3)
	f, _, err := Capture(c, trap)
	if err != nil {
		t.Fatal(err)
	}
	if f.Vector() != cpu.VEC_TIMER || f.Rip != base {
		t.Fatalf("timer frame %s vector %d", f, f.Vector())
	}
	if _, _, err := (SyscallEntry{}).Capture(c, trap); err == nil {
		t.Error("syscall entry accepted an interrupt")
	}
}

func TestReturnFromTrap(t *testing.T) {
	c := boot(t, fmt.Sprintf(entrySrc, "syscall"))
	trap, _ := c.Run(100)
	f, addr, err := Capture(c, trap)
	if err != nil {
		t.Fatal(err)
	}
	c.RegWrite(kx.RDI, 0)
	f.Rax = 99
	WriteFrame(c, addr, f)
	if _, err := ReturnFromTrap(c); err != nil {
		t.Fatal(err)
	}
	if c.Control().Mode != cpu.MODE_USER || c.Control().KSP != ktop {
		t.Fatalf("mode %d KSP %#x after return", c.Control().Mode, c.Control().KSP)
	}
	rax, _ := c.RegRead(kx.RAX)
	rdi, _ := c.RegRead(kx.RDI)
	rip, _ := c.RegRead(kx.RIP)
	if rax != 99 || rdi != 11 || rip != f.Rip {
		t.Errorf("restored rax=%d rdi=%d rip=%#x", rax, rdi, rip)
	}
}

func TestRestart(t *testing.T) {
	f, _ := captureWith(t, "int 0x80")
	f.Rax = 0
	f.Restart()
	if f.Rip != base+5*kx.InsSize || f.Rax != 57 {
		t.Errorf("restart left rip=%#x rax=%d", f.Rip, f.Rax)
	}
}

func TestBadReturnAddress(t *testing.T) {
	c := boot(t, "_start: syscall")
	trap, _ := c.Run(10)
	for _, rip := range []uint64{cpu.KernelSpace + 0x100, 0x900000, cpu.UserTop - 4} {
		f, addr, err := Capture(c, trap)
		if err != nil {
			t.Fatal(err)
		}
		f.Rip = rip
		WriteFrame(c, addr, f)
		_, err = ReturnFromTrap(c)
		if _, ok := err.(*FrameError); !ok {
			t.Errorf("return to %#x: got %v, expecting FrameError", rip, err)
		}
		if c.Control().Mode != cpu.MODE_KERNEL {
			t.Errorf("return to %#x left kernel mode", rip)
		}
	}
}
