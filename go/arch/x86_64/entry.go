package x86_64

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models/cpu"
)

// TrapEntry is one kernel entry stub. It runs first on every trap of its
// kind and leaves a complete TrapFrame at the machine's kernel stack pointer.
type TrapEntry interface {
	Name() string
	// Install programs the machine so this stub is the canonical syscall path.
	Install(c cpu.Cpu)
	// Capture saves user state and returns the frame and its address.
	Capture(c cpu.Cpu, trap cpu.Trap) (*TrapFrame, uint64, error)
}

// SyscallEntry is the fast path: the CPU left RIP in rcx and RFLAGS in r11
// and did not touch the stack.
type SyscallEntry struct{}

func (SyscallEntry) Name() string { return "syscall" }

func (SyscallEntry) Install(c cpu.Cpu) { c.Control().SCE = true }

func (SyscallEntry) Capture(c cpu.Cpu, trap cpu.Trap) (*TrapFrame, uint64, error) {
	if trap.Kind != cpu.TRAP_SYSCALL {
		return nil, 0, errors.Errorf("syscall entry called for trap kind %d", trap.Kind)
	}
	ctl := c.Control()
	rcx, _ := c.RegRead(kx.RCX)
	r11, _ := c.RegRead(kx.R11)
	rsp, _ := c.RegRead(kx.RSP)
	// swapgs; mov gs:[0], rsp; mov rsp, [tss.rsp0]
	ctl.GS[0] = rsp
	ksp := ctl.RSP0
	// push an iret frame identical to the one int 0x80 gets from the hardware
	iret := [5]uint64{rcx, kx.USER_CS, r11, ctl.GS[0], kx.USER_SS}
	rax, _ := c.RegRead(kx.RAX)
	return pushRegs(c, ksp, iret, rax)
}

// IntEntry serves int 0x80, breakpoints, faults and the timer. The CPU
// already switched to RSP0 and pushed the iret frame.
type IntEntry struct{}

func (IntEntry) Name() string { return "int80" }

func (IntEntry) Install(c cpu.Cpu) { c.Control().SCE = false }

func (IntEntry) Capture(c cpu.Cpu, trap cpu.Trap) (*TrapFrame, uint64, error) {
	if trap.Kind != cpu.TRAP_INTR {
		return nil, 0, errors.Errorf("interrupt entry called for trap kind %d", trap.Kind)
	}
	ksp := c.Control().KSP
	var iret [5]uint64
	for i := range iret {
		v, err := readUint(c, ksp+uint64(i*8))
		if err != nil {
			return nil, 0, errors.Wrap(err, "reading interrupt frame")
		}
		iret[i] = v
	}
	orig := ^uint64(trap.Vector)
	if trap.Vector == cpu.VEC_SYS {
		orig, _ = c.RegRead(kx.RAX)
	}
	return pushRegs(c, ksp+IretSize, iret, orig)
}

func readUint(c cpu.Cpu, addr uint64) (uint64, error) {
	b, err := c.MemRead(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// pushRegs builds the full frame below top from the live registers.
func pushRegs(c cpu.Cpu, top uint64, iret [5]uint64, origRax uint64) (*TrapFrame, uint64, error) {
	f := &TrapFrame{OrigRax: origRax}
	for enum := 0; enum < kx.NumGPR; enum++ {
		if enum == kx.RSP {
			continue
		}
		val, err := c.RegRead(enum)
		if err != nil {
			return nil, 0, err
		}
		*f.reg(enum) = val
	}
	f.Rip, f.Cs, f.Rflags, f.Rsp, f.Ss = iret[0], iret[1], iret[2], iret[3], iret[4]
	addr := top - FrameSize
	if err := WriteFrame(c, addr, f); err != nil {
		return nil, 0, errors.Wrap(err, "kernel stack overflow")
	}
	c.Control().KSP = addr
	c.Control().Mode = cpu.MODE_KERNEL
	return f, addr, nil
}

var (
	Syscall TrapEntry = SyscallEntry{}
	Int80   TrapEntry = IntEntry{}
)

// EntryByName looks up a stub by its configuration name.
func EntryByName(name string) (TrapEntry, error) {
	switch name {
	case "syscall":
		return Syscall, nil
	case "int80":
		return Int80, nil
	}
	return nil, errors.Errorf("unknown trap entry %q", name)
}

// Capture runs the stub matching the trap kind. Both stubs are always
// reachable since user code may use either instruction.
func Capture(c cpu.Cpu, trap cpu.Trap) (*TrapFrame, uint64, error) {
	if trap.Kind == cpu.TRAP_SYSCALL {
		return Syscall.Capture(c, trap)
	}
	return Int80.Capture(c, trap)
}

// ReturnFromTrap pops the frame at the kernel stack pointer and resumes user
// mode with iret semantics.
func ReturnFromTrap(c cpu.Cpu) (*TrapFrame, error) {
	ctl := c.Control()
	f, err := ReadFrame(c, ctl.KSP)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(c); err != nil {
		return f, err
	}
	for enum := 0; enum < kx.NumGPR; enum++ {
		c.RegWrite(enum, *f.reg(enum))
	}
	c.RegWrite(kx.RIP, f.Rip)
	c.RegWrite(kx.RFLAGS, f.Rflags|kx.FLAG_IF)
	c.RegWrite(kx.CS, f.Cs)
	c.RegWrite(kx.SS, f.Ss)
	ctl.KSP += FrameSize
	ctl.Mode = cpu.MODE_USER
	return f, nil
}
