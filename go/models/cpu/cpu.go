package cpu

// Control is the privileged per-CPU state the kernel touches directly:
// mode, the live kernel stack pointer, TSS.RSP0, the GS scratch area and CR3.
type Control struct {
	Mode int
	// live kernel stack pointer while in kernel mode
	KSP uint64
	// TSS.RSP0: stack loaded on a user->kernel transition
	RSP0 uint64
	// per-CPU scratch reached through GS after swapgs. Slot 0 holds the user RSP on fast syscall entry.
	GS [4]uint64
	// address-space selector, loaded on switch but never used for translation
	CR3 uint64
	// last fault address
	CR2 uint64
	// EFER.SCE: the fast syscall instruction is enabled
	SCE bool
}

// Trap describes why user execution stopped.
type Trap struct {
	Kind   int
	Vector int
	// faulting address for page faults
	Addr uint64
	// instructions retired during this Run
	Steps uint64
}

// This interface abstracts the minimum functionality the kernel requires from a CPU.
type Cpu interface {
	// memory mapping
	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error
	RangeValid(addr, size uint64, prot int) (mapGood bool, protGood bool)

	// memory IO
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// privileged state
	Control() *Control

	// Run executes user code for at most budget instructions.
	// It returns when a trap transfers control to the kernel.
	Run(budget uint64) (Trap, error)

	// save/restore the register file
	ContextSave(reuse interface{}) (interface{}, error)
	ContextRestore(ctx interface{}) error

	Close() error
}
