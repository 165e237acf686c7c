package kx

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models/cpu"
)

type Builder struct{}

func (b *Builder) New() (cpu.Cpu, error) {
	return NewCpu(), nil
}

// KxCpu interprets user-mode KX code. Everything privileged (entering and
// leaving the kernel, switching stacks) is done by the kernel through Control.
type KxCpu struct {
	*cpu.Regs
	*cpu.Mem

	ctl cpu.Control
}

func NewCpu() *KxCpu {
	enums := make([]int, SS+1)
	for i := range enums {
		enums[i] = i
	}
	c := &KxCpu{
		Regs: cpu.NewRegs(64, enums),
		Mem:  cpu.NewMem(64, binary.LittleEndian),
	}
	c.Set(RFLAGS, FLAGS_DEFAULT)
	c.Set(CS, KERNEL_CS)
	c.Set(SS, KERNEL_SS)
	c.ctl.Mode = cpu.MODE_KERNEL
	c.ctl.SCE = true
	return c
}

func (c *KxCpu) Control() *cpu.Control { return &c.ctl }

func (c *KxCpu) Close() error { return nil }

type fault struct {
	vec  int
	addr uint64
}

// Run executes until a trap. Exhausting budget raises the timer interrupt.
func (c *KxCpu) Run(budget uint64) (cpu.Trap, error) {
	var trap cpu.Trap
	if c.ctl.Mode != cpu.MODE_USER {
		return trap, errors.New("kx: Run() called outside user mode")
	}
	for trap.Steps < budget {
		pc := c.Get(RIP)
		kind, vec, f := c.step(pc)
		if f != nil {
			// the faulting instruction is not retired and will be restarted
			return c.interrupt(trap, f.vec, pc, f.addr)
		}
		trap.Steps++
		switch kind {
		case cpu.TRAP_SYSCALL:
			trap.Kind = kind
			return trap, nil
		case cpu.TRAP_INTR:
			return c.interrupt(trap, vec, c.Get(RIP), 0)
		}
	}
	return c.interrupt(trap, cpu.VEC_TIMER, c.Get(RIP), 0)
}

// interrupt performs the hardware part of an interrupt gate: switch to RSP0
// and push SS, RSP, RFLAGS, CS, RIP.
func (c *KxCpu) interrupt(trap cpu.Trap, vec int, rip, addr uint64) (cpu.Trap, error) {
	frame := [5]uint64{rip, c.Get(CS), c.Get(RFLAGS), c.Get(RSP), c.Get(SS)}
	ksp := c.ctl.RSP0 - uint64(len(frame)*8)
	for i, v := range frame {
		if err := c.WriteUint(ksp+uint64(i*8), 8, 0, v); err != nil {
			return trap, errors.Wrapf(err, "double fault delivering vector %#x", vec)
		}
	}
	c.ctl.KSP = ksp
	c.ctl.Mode = cpu.MODE_KERNEL
	if vec == cpu.VEC_PF {
		c.ctl.CR2 = addr
	}
	trap.Kind = cpu.TRAP_INTR
	trap.Vector = vec
	trap.Addr = addr
	return trap, nil
}

func (c *KxCpu) load(addr uint64, size int) (uint64, *fault) {
	if !cpu.IsUserRange(addr, uint64(size)) {
		return 0, &fault{cpu.VEC_PF, addr}
	}
	val, err := c.ReadUint(addr, size, cpu.PROT_READ)
	if err != nil {
		return 0, &fault{cpu.VEC_PF, addr}
	}
	return val, nil
}

func (c *KxCpu) store(addr uint64, size int, val uint64) *fault {
	if !cpu.IsUserRange(addr, uint64(size)) {
		return &fault{cpu.VEC_PF, addr}
	}
	if err := c.WriteUint(addr, size, cpu.PROT_WRITE, val); err != nil {
		return &fault{cpu.VEC_PF, addr}
	}
	return nil
}

func (c *KxCpu) setFlags(res uint64, cf, of bool) {
	f := c.Get(RFLAGS) &^ (FLAG_CF | FLAG_ZF | FLAG_SF | FLAG_OF)
	if cf {
		f |= FLAG_CF
	}
	if res == 0 {
		f |= FLAG_ZF
	}
	if res>>63 != 0 {
		f |= FLAG_SF
	}
	if of {
		f |= FLAG_OF
	}
	c.Set(RFLAGS, f)
}

func (c *KxCpu) cond(op int) bool {
	f := c.Get(RFLAGS)
	zf, sf, of, cf := f&FLAG_ZF != 0, f&FLAG_SF != 0, f&FLAG_OF != 0, f&FLAG_CF != 0
	switch op {
	case OP_JZ:
		return zf
	case OP_JNZ:
		return !zf
	case OP_JL:
		return sf != of
	case OP_JGE:
		return sf == of
	case OP_JLE:
		return zf || sf != of
	case OP_JG:
		return !zf && sf == of
	case OP_JB:
		return cf
	case OP_JA:
		return !cf && !zf
	}
	return true
}

// step executes one instruction. A non-zero kind reports a trap the
// instruction raised after retiring.
func (c *KxCpu) step(pc uint64) (kind, vec int, f *fault) {
	if !cpu.IsUserRange(pc, InsSize) {
		return 0, 0, &fault{cpu.VEC_PF, pc}
	}
	mem, err := c.ReadProt(pc, InsSize, cpu.PROT_EXEC)
	if err != nil {
		return 0, 0, &fault{cpu.VEC_PF, pc}
	}
	ins, ok := Decode(mem, pc)
	if !ok {
		return 0, 0, &fault{cpu.VEC_UD, pc}
	}
	next := pc + InsSize
	src := func() uint64 {
		if ins.IsImm() {
			return uint64(ins.Imm)
		}
		return c.Get(ins.Src)
	}

	switch ins.Op {
	case OP_NOP:
	case OP_MOV:
		c.Set(ins.Dst, src())

	case OP_ADD, OP_SUB, OP_CMP, OP_AND, OP_OR, OP_XOR, OP_MUL, OP_SHL, OP_SHR, OP_DIV:
		a, b := c.Get(ins.Dst), src()
		var res uint64
		var cf, of bool
		switch ins.Op {
		case OP_ADD:
			res = a + b
			cf = res < a
			of = ((a^res)&(b^res))>>63 != 0
		case OP_SUB, OP_CMP:
			res = a - b
			cf = a < b
			of = ((a^b)&(a^res))>>63 != 0
		case OP_AND:
			res = a & b
		case OP_OR:
			res = a | b
		case OP_XOR:
			res = a ^ b
		case OP_MUL:
			res = a * b
		case OP_SHL:
			res = a << (b & 63)
		case OP_SHR:
			res = a >> (b & 63)
		case OP_DIV:
			if b == 0 {
				return 0, 0, &fault{cpu.VEC_DE, pc}
			}
			res = a / b
		}
		c.setFlags(res, cf, of)
		if ins.Op != OP_CMP {
			c.Set(ins.Dst, res)
		}

	case OP_JMP, OP_JZ, OP_JNZ, OP_JL, OP_JGE, OP_JLE, OP_JG, OP_JB, OP_JA:
		if c.cond(ins.Op) {
			next = ins.Target()
		}
	case OP_CALL:
		sp := c.Get(RSP) - 8
		if f := c.store(sp, 8, next); f != nil {
			return 0, 0, f
		}
		c.Set(RSP, sp)
		next = ins.Target()
	case OP_RET:
		sp := c.Get(RSP)
		ret, f := c.load(sp, 8)
		if f != nil {
			return 0, 0, f
		}
		c.Set(RSP, sp+8)
		next = ret

	case OP_LOAD, OP_LOADB:
		size := 8
		if ins.Op == OP_LOADB {
			size = 1
		}
		val, f := c.load(c.Get(ins.Src)+uint64(ins.Imm), size)
		if f != nil {
			return 0, 0, f
		}
		c.Set(ins.Dst, val)
	case OP_STORE, OP_STOREB:
		size := 8
		if ins.Op == OP_STOREB {
			size = 1
		}
		if f := c.store(c.Get(ins.Dst)+uint64(ins.Imm), size, c.Get(ins.Src)); f != nil {
			return 0, 0, f
		}
	case OP_LEA:
		c.Set(ins.Dst, next+uint64(ins.Imm))

	case OP_PUSH:
		sp := c.Get(RSP) - 8
		if f := c.store(sp, 8, src()); f != nil {
			return 0, 0, f
		}
		c.Set(RSP, sp)
	case OP_POP:
		sp := c.Get(RSP)
		val, f := c.load(sp, 8)
		if f != nil {
			return 0, 0, f
		}
		c.Set(RSP, sp+8)
		c.Set(ins.Dst, val)

	case OP_SYSCALL:
		if !c.ctl.SCE {
			return 0, 0, &fault{cpu.VEC_UD, pc}
		}
		c.Set(RCX, next)
		c.Set(R11, c.Get(RFLAGS))
		c.Set(RIP, next)
		c.ctl.Mode = cpu.MODE_KERNEL
		return cpu.TRAP_SYSCALL, 0, nil
	case OP_INT:
		vec := int(ins.Imm)
		// only the syscall and breakpoint gates are reachable from ring 3
		if vec != cpu.VEC_SYS && vec != cpu.VEC_BP {
			return 0, 0, &fault{cpu.VEC_GP, pc}
		}
		c.Set(RIP, next)
		return cpu.TRAP_INTR, vec, nil
	case OP_HLT:
		return 0, 0, &fault{cpu.VEC_GP, pc}
	default:
		return 0, 0, &fault{cpu.VEC_UD, pc}
	}
	c.Set(RIP, next)
	return 0, 0, nil
}
