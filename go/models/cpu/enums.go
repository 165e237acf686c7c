package cpu

// these errors are reported through MemError
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14

	MEM_PROT     = MEM_WRITE_PROT | MEM_READ_PROT | MEM_FETCH_PROT
	MEM_UNMAPPED = MEM_READ_UNMAPPED | MEM_WRITE_UNMAPPED | MEM_FETCH_UNMAPPED
)

// these constants are used for memory protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)

// privilege level
const (
	MODE_KERNEL = 0
	MODE_USER   = 3
)

// trap kinds
const (
	// fast system call instruction
	TRAP_SYSCALL = iota + 1
	// software interrupt, hardware interrupt or exception
	TRAP_INTR
)

// interrupt vectors
const (
	VEC_DE    = 0
	VEC_BP    = 3
	VEC_UD    = 6
	VEC_GP    = 13
	VEC_PF    = 14
	VEC_TIMER = 0x20
	VEC_SYS   = 0x80
)

// Address space split. User code may only touch addresses below UserTop.
const (
	UserTop     = 0x0000800000000000
	KernelSpace = 0xffff800000000000
)

func IsUserRange(addr, size uint64) bool {
	return addr < UserTop && size <= UserTop-addr
}

func VectorName(vec int) string {
	switch vec {
	case VEC_DE:
		return "#DE"
	case VEC_BP:
		return "#BP"
	case VEC_UD:
		return "#UD"
	case VEC_GP:
		return "#GP"
	case VEC_PF:
		return "#PF"
	case VEC_TIMER:
		return "timer"
	case VEC_SYS:
		return "int80"
	}
	return "irq"
}
