package x86_64

import (
	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models"
)

var Arch = &models.Arch{
	Name: "x86_64",
	Bits: 64,
	Cpu:  &kx.Builder{},
	Dis:  &kx.Dis{},
	PC:   kx.RIP,
	SP:   kx.RSP,
	Regs: map[string]int{
		"rax":    kx.RAX,
		"rbx":    kx.RBX,
		"rcx":    kx.RCX,
		"rdx":    kx.RDX,
		"rsi":    kx.RSI,
		"rdi":    kx.RDI,
		"rbp":    kx.RBP,
		"rsp":    kx.RSP,
		"r8":     kx.R8,
		"r9":     kx.R9,
		"r10":    kx.R10,
		"r11":    kx.R11,
		"r12":    kx.R12,
		"r13":    kx.R13,
		"r14":    kx.R14,
		"r15":    kx.R15,
		"rip":    kx.RIP,
		"rflags": kx.RFLAGS,
	},
}

// AbiRegs are the syscall argument registers in order.
var AbiRegs = []int{kx.RDI, kx.RSI, kx.RDX, kx.R10, kx.R8, kx.R9}
