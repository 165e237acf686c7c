package kx

import (
	"testing"

	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	testBase  = 0x400000
	testStack = 0x7ff0000
	testKtop  = cpu.KernelSpace + 0x10000
)

func loadProgram(t *testing.T, src string) (*KxCpu, *Program) {
	prog, err := AssembleString(src)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCpu()
	c.MemMapProt(testBase, alignUp(uint64(len(prog.Text)), SectionAlign), cpu.PROT_READ|cpu.PROT_EXEC)
	c.MemWrite(testBase, prog.Text)
	if size := uint64(len(prog.Data)) + prog.Bss; size > 0 {
		c.MemMapProt(testBase+prog.DataOff(), alignUp(size+8, SectionAlign), cpu.PROT_READ|cpu.PROT_WRITE)
		c.MemWrite(testBase+prog.DataOff(), prog.Data)
	}
	c.MemMapProt(testStack, 0x10000, cpu.PROT_READ|cpu.PROT_WRITE)
	c.MemMapProt(cpu.KernelSpace, 0x10000, cpu.PROT_READ|cpu.PROT_WRITE)
	c.Control().RSP0 = testKtop
	c.Control().Mode = cpu.MODE_USER
	c.RegWrite(RSP, testStack+0x10000)
	c.RegWrite(RIP, testBase+prog.Entry)
	c.RegWrite(CS, USER_CS)
	c.RegWrite(SS, USER_SS)
	return c, prog
}

func hwFrame(t *testing.T, c *KxCpu) [5]uint64 {
	var out [5]uint64
	ksp := c.Control().KSP
	for i := range out {
		v, err := c.ReadUint(ksp+uint64(i*8), 8, 0)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = v
	}
	return out
}

func regVal(c *KxCpu, r int) uint64 {
	v, _ := c.RegRead(r)
	return v
}

func TestRunToSyscall(t *testing.T) {
	c, prog := loadProgram(t, `
_start:
    mov rax, 5
    add rax, 7
    lea rsi, msg
    loadb rbx, [rsi+1]
    mov rdi, 0
loop:
    add rdi, 1
    cmp rdi, 10
    jl loop
    call fn
    syscall
fn:
    push 42
    pop rdx
    ret
.data
msg: .string "hi"
`)
	trap, err := c.Run(1000)
	if err != nil {
		t.Fatal(err)
	}
	if trap.Kind != cpu.TRAP_SYSCALL {
		t.Fatalf("trap kind %d, expecting syscall", trap.Kind)
	}
	if trap.Steps != 40 {
		t.Errorf("retired %d instructions, expecting 40", trap.Steps)
	}
	if v := regVal(c, RAX); v != 12 {
		t.Errorf("rax = %d", v)
	}
	if v := regVal(c, RBX); v != 'i' {
		t.Errorf("rbx = %#x", v)
	}
	if v := regVal(c, RDI); v != 10 {
		t.Errorf("rdi = %d", v)
	}
	if v := regVal(c, RDX); v != 42 {
		t.Errorf("rdx = %d", v)
	}
	if v := regVal(c, RCX); v != testBase+prog.Labels["fn"] {
		t.Errorf("rcx = %#x, expecting return address %#x", v, testBase+prog.Labels["fn"])
	}
	if v := regVal(c, R11); v&FLAG_IF == 0 {
		t.Errorf("r11 = %#x, expecting saved rflags", v)
	}
	if v := regVal(c, RSP); v != testStack+0x10000 {
		t.Errorf("rsp = %#x, stack not balanced", v)
	}
	if c.Control().Mode != cpu.MODE_KERNEL {
		t.Error("syscall did not enter kernel mode")
	}
}

func TestInterruptFrame(t *testing.T) {
	c, _ := loadProgram(t, "_start:\n nop\n int 0x80\n")
	trap, err := c.Run(100)
	if err != nil {
		t.Fatal(err)
	}
	if trap.Kind != cpu.TRAP_INTR || trap.Vector != cpu.VEC_SYS {
		t.Fatalf("unexpected trap %+v", trap)
	}
	if c.Control().KSP != uint64(testKtop-40) {
		t.Fatalf("KSP = %#x, expecting %#x", c.Control().KSP, uint64(testKtop-40))
	}
	frame := hwFrame(t, c)
	want := [5]uint64{testBase + 16, USER_CS, FLAGS_DEFAULT, testStack + 0x10000, USER_SS}
	if frame != want {
		t.Fatalf("hardware frame %#x, expecting %#x", frame, want)
	}
}

func TestTimer(t *testing.T) {
	c, _ := loadProgram(t, "_start:\nspin: jmp spin\n")
	trap, err := c.Run(5)
	if err != nil {
		t.Fatal(err)
	}
	if trap.Kind != cpu.TRAP_INTR || trap.Vector != cpu.VEC_TIMER || trap.Steps != 5 {
		t.Fatalf("unexpected trap %+v", trap)
	}
	if frame := hwFrame(t, c); frame[0] != testBase {
		t.Fatalf("timer frame rip = %#x", frame[0])
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		src   string
		setup func(c *KxCpu)
		vec   int
		rip   uint64
	}{
		{"_start: load rax, [rbx]", func(c *KxCpu) { c.RegWrite(RBX, testKtop-8) }, cpu.VEC_PF, testBase},
		{"_start: store [rbx+8], rax", func(c *KxCpu) { c.RegWrite(RBX, 0x1000) }, cpu.VEC_PF, testBase},
		{"_start: hlt", nil, cpu.VEC_GP, testBase},
		{"_start: int 0x21", nil, cpu.VEC_GP, testBase},
		{"_start: ud", nil, cpu.VEC_UD, testBase},
		{"_start: mov rax, 1\n div rax, 0", nil, cpu.VEC_DE, testBase + 8},
		{"_start: syscall", func(c *KxCpu) { c.Control().SCE = false }, cpu.VEC_UD, testBase},
		// runs into the zero padding after the last instruction
		{"_start: nop", nil, cpu.VEC_UD, testBase + 8},
		{"_start: nop", func(c *KxCpu) { c.RegWrite(RIP, 0x900000) }, cpu.VEC_PF, 0x900000},
	}
	for _, test := range tests {
		c, _ := loadProgram(t, test.src)
		if test.setup != nil {
			test.setup(c)
		}
		trap, err := c.Run(10)
		if err != nil {
			t.Fatal(err)
		}
		if trap.Kind != cpu.TRAP_INTR || trap.Vector != test.vec {
			t.Errorf("%q: trap %+v, expecting vector %d", test.src, trap, test.vec)
			continue
		}
		if frame := hwFrame(t, c); frame[0] != test.rip {
			t.Errorf("%q: fault rip %#x, expecting %#x", test.src, frame[0], test.rip)
		}
	}
	c, _ := loadProgram(t, "_start: load rax, [rbx]")
	c.RegWrite(RBX, 0x1234)
	c.Run(1)
	if c.Control().CR2 != 0x1234 {
		t.Errorf("CR2 = %#x after page fault", c.Control().CR2)
	}
}

func TestRunOutsideUserMode(t *testing.T) {
	c := NewCpu()
	if _, err := c.Run(1); err == nil {
		t.Fatal("Run() in kernel mode succeeded")
	}
}

func TestDoubleFault(t *testing.T) {
	c, _ := loadProgram(t, "_start: ud")
	c.Control().RSP0 = 0x1000
	if _, err := c.Run(1); err == nil {
		t.Fatal("fault with an unmapped RSP0 did not fail")
	}
}
