package kx

// Registers use the x86_64 encoding order so the trap frame and the
// Linux syscall ABI map onto them directly.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	RIP
	RFLAGS
	CS
	SS
)

// number of registers an instruction can name
const NumGPR = 16

var regNames = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	"rip", "rflags", "cs", "ss",
}

func RegName(r int) string {
	if r >= 0 && r < len(regNames) {
		return regNames[r]
	}
	return "?"
}

func RegEnum(name string) (int, bool) {
	for i, n := range regNames[:NumGPR] {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// RFLAGS bits
const (
	FLAG_CF = 1 << 0
	FLAG_ZF = 1 << 6
	FLAG_SF = 1 << 7
	FLAG_IF = 1 << 9
	FLAG_OF = 1 << 11

	FLAGS_DEFAULT = FLAG_IF | 0x2
)

// segment selectors
const (
	KERNEL_CS = 0x08
	KERNEL_SS = 0x10
	USER_SS   = 0x2b
	USER_CS   = 0x33
)

// every instruction is 8 bytes: op, dst, src, flags, imm32 (little endian, sign extended)
const InsSize = 8

// flags byte
const (
	F_IMM = 1 << 0
)

// 0x00 is deliberately not an instruction so zeroed memory faults
const (
	OP_NOP = 0x01
	OP_MOV = 0x02

	OP_ADD = 0x04
	OP_SUB = 0x05
	OP_AND = 0x06
	OP_OR  = 0x07
	OP_XOR = 0x08
	OP_MUL = 0x09
	OP_SHL = 0x0a
	OP_SHR = 0x0b
	OP_DIV = 0x0c

	OP_CMP = 0x10

	OP_JMP  = 0x20
	OP_JZ   = 0x21
	OP_JNZ  = 0x22
	OP_JL   = 0x23
	OP_JGE  = 0x24
	OP_JLE  = 0x25
	OP_JG   = 0x26
	OP_JB   = 0x27
	OP_JA   = 0x28
	OP_CALL = 0x29
	OP_RET  = 0x2a

	OP_LOAD   = 0x30
	OP_STORE  = 0x31
	OP_LOADB  = 0x32
	OP_STOREB = 0x33
	OP_LEA    = 0x34

	OP_PUSH = 0x38
	OP_POP  = 0x39

	OP_SYSCALL = 0x40
	OP_INT     = 0x41
	OP_HLT     = 0x42
	OP_UD      = 0x43
)

// operand shapes
const (
	A_NONE  = iota
	A_RR    // reg, reg|imm
	A_REL   // pc-relative target
	A_LOAD  // reg, [reg+imm]
	A_STORE // [reg+imm], reg
	A_LEA   // reg, [rip+imm]
	A_SRC   // reg|imm
	A_DST   // reg
	A_IMM   // imm
)

type op struct {
	name string
	arg  int
}

var opData = map[int]op{
	OP_NOP:     {"nop", A_NONE},
	OP_MOV:     {"mov", A_RR},
	OP_ADD:     {"add", A_RR},
	OP_SUB:     {"sub", A_RR},
	OP_AND:     {"and", A_RR},
	OP_OR:      {"or", A_RR},
	OP_XOR:     {"xor", A_RR},
	OP_MUL:     {"mul", A_RR},
	OP_SHL:     {"shl", A_RR},
	OP_SHR:     {"shr", A_RR},
	OP_DIV:     {"div", A_RR},
	OP_CMP:     {"cmp", A_RR},
	OP_JMP:     {"jmp", A_REL},
	OP_JZ:      {"jz", A_REL},
	OP_JNZ:     {"jnz", A_REL},
	OP_JL:      {"jl", A_REL},
	OP_JGE:     {"jge", A_REL},
	OP_JLE:     {"jle", A_REL},
	OP_JG:      {"jg", A_REL},
	OP_JB:      {"jb", A_REL},
	OP_JA:      {"ja", A_REL},
	OP_CALL:    {"call", A_REL},
	OP_RET:     {"ret", A_NONE},
	OP_LOAD:    {"load", A_LOAD},
	OP_STORE:   {"store", A_STORE},
	OP_LOADB:   {"loadb", A_LOAD},
	OP_STOREB:  {"storeb", A_STORE},
	OP_LEA:     {"lea", A_LEA},
	OP_PUSH:    {"push", A_SRC},
	OP_POP:     {"pop", A_DST},
	OP_SYSCALL: {"syscall", A_NONE},
	OP_INT:     {"int", A_IMM},
	OP_HLT:     {"hlt", A_NONE},
	OP_UD:      {"ud", A_NONE},
}

var opNames map[string]int

func init() {
	opNames = make(map[string]int, len(opData))
	for num, o := range opData {
		opNames[o.name] = num
	}
	// aliases
	opNames["je"] = OP_JZ
	opNames["jne"] = OP_JNZ
}
