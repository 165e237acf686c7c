package x86_64

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
)

// TrapFrame is the register save area both entry stubs leave on the kernel
// stack. Fields are in ascending address order; the last five words are the
// interrupt frame the hardware (or the syscall stub) pushes.
//
//	0x00 r15  0x08 r14  0x10 r13  0x18 r12  0x20 rbp  0x28 rbx
//	0x30 r11  0x38 r10  0x40 r9   0x48 r8   0x50 rax  0x58 rcx
//	0x60 rdx  0x68 rsi  0x70 rdi  0x78 orig_rax
//	0x80 rip  0x88 cs   0x90 rflags  0x98 rsp  0xa0 ss
type TrapFrame struct {
	R15, R14, R13, R12 uint64
	Rbp, Rbx           uint64
	R11, R10, R9, R8   uint64
	Rax, Rcx, Rdx      uint64
	Rsi, Rdi           uint64
	// syscall number, or the one's complement of the vector for interrupts
	OrigRax uint64

	Rip, Cs, Rflags, Rsp, Ss uint64
}

const (
	FrameSize = 0xa8
	// offset of the saved return address
	RipOffset = 0x80
	// size of the hardware part
	IretSize = 5 * 8
)

func (f *TrapFrame) reg(enum int) *uint64 {
	switch enum {
	case kx.RAX:
		return &f.Rax
	case kx.RCX:
		return &f.Rcx
	case kx.RDX:
		return &f.Rdx
	case kx.RBX:
		return &f.Rbx
	case kx.RSP:
		return &f.Rsp
	case kx.RBP:
		return &f.Rbp
	case kx.RSI:
		return &f.Rsi
	case kx.RDI:
		return &f.Rdi
	case kx.R8:
		return &f.R8
	case kx.R9:
		return &f.R9
	case kx.R10:
		return &f.R10
	case kx.R11:
		return &f.R11
	case kx.R12:
		return &f.R12
	case kx.R13:
		return &f.R13
	case kx.R14:
		return &f.R14
	case kx.R15:
		return &f.R15
	case kx.RIP:
		return &f.Rip
	case kx.RFLAGS:
		return &f.Rflags
	case kx.CS:
		return &f.Cs
	case kx.SS:
		return &f.Ss
	}
	return nil
}

func (f *TrapFrame) RegRead(enum int) (uint64, error) {
	if p := f.reg(enum); p != nil {
		return *p, nil
	}
	return 0, errors.Errorf("no register %d in trap frame", enum)
}

func (f *TrapFrame) RegWrite(enum int, val uint64) error {
	if p := f.reg(enum); p != nil {
		*p = val
		return nil
	}
	return errors.Errorf("no register %d in trap frame", enum)
}

// Args returns the six syscall arguments.
func (f *TrapFrame) Args() [6]uint64 {
	var args [6]uint64
	for i, enum := range AbiRegs {
		args[i] = *f.reg(enum)
	}
	return args
}

// Vector returns the interrupt vector recorded in OrigRax, or -1 for a syscall.
func (f *TrapFrame) Vector() int {
	if int64(f.OrigRax) < 0 {
		return int(^f.OrigRax)
	}
	return -1
}

// Restart rewinds the frame so the trapping instruction executes again.
func (f *TrapFrame) Restart() {
	f.Rip -= kx.InsSize
	f.Rax = f.OrigRax
}

func (f *TrapFrame) String() string {
	return fmt.Sprintf("rip=%#x rsp=%#x rax=%#x orig_rax=%#x rflags=%#x", f.Rip, f.Rsp, f.Rax, f.OrigRax, f.Rflags)
}

// UserFrame returns a fresh frame that starts user code at entry with stack sp.
func UserFrame(entry, sp uint64) *TrapFrame {
	return &TrapFrame{
		Rip:    entry,
		Cs:     kx.USER_CS,
		Rflags: kx.FLAGS_DEFAULT,
		Rsp:    sp,
		Ss:     kx.USER_SS,
	}
}

func ReadFrame(mem models.Memory, addr uint64) (*TrapFrame, error) {
	var f TrapFrame
	if err := models.StrucAt(mem, addr).Unpack(&f); err != nil {
		return nil, errors.Wrapf(err, "reading trap frame at %#x", addr)
	}
	return &f, nil
}

func WriteFrame(mem models.Memory, addr uint64, f *TrapFrame) error {
	if err := models.StrucAt(mem, addr).Pack(f); err != nil {
		return errors.Wrapf(err, "writing trap frame at %#x", addr)
	}
	return nil
}

// FrameError is a trap frame that cannot be returned to. The kernel must not
// resume user code after one.
type FrameError struct {
	Frame  *TrapFrame
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bad trap frame (%s): %s", e.Reason, e.Frame)
}

// Validate checks the frame returns to executable user code.
func (f *TrapFrame) Validate(c cpu.Cpu) error {
	switch {
	case f.Cs != kx.USER_CS || f.Ss != kx.USER_SS:
		return &FrameError{f, "kernel segment selector"}
	case !cpu.IsUserRange(f.Rip, kx.InsSize):
		return &FrameError{f, "return address outside user space"}
	}
	if mapped, exec := c.RangeValid(f.Rip, kx.InsSize, cpu.PROT_EXEC); !mapped || !exec {
		return &FrameError{f, "return address not in an executable mapping"}
	}
	return nil
}
