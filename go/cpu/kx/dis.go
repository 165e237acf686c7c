package kx

import (
	"encoding/binary"
	"fmt"

	"github.com/tinykern/proccore/go/models"
)

// Ins is one decoded instruction.
type Ins struct {
	addr  uint64
	Op    int
	Dst   int
	Src   int
	Flags int
	Imm   int64
	bytes []byte
}

func (i *Ins) Addr() uint64     { return i.addr }
func (i *Ins) Bytes() []byte    { return i.bytes }
func (i *Ins) Mnemonic() string { return opData[i.Op].name }
func (i *Ins) IsImm() bool      { return i.Flags&F_IMM != 0 }

func (i *Ins) String() string {
	if s := i.OpStr(); s != "" {
		return i.Mnemonic() + " " + s
	}
	return i.Mnemonic()
}

func memOperand(base int, off int64) string {
	switch {
	case off > 0:
		return fmt.Sprintf("[%s+%#x]", RegName(base), off)
	case off < 0:
		return fmt.Sprintf("[%s-%#x]", RegName(base), -off)
	}
	return "[" + RegName(base) + "]"
}

func (i *Ins) src() string {
	if i.IsImm() {
		return fmt.Sprintf("%#x", i.Imm)
	}
	return RegName(i.Src)
}

func (i *Ins) OpStr() string {
	switch opData[i.Op].arg {
	case A_RR:
		return RegName(i.Dst) + ", " + i.src()
	case A_REL:
		return fmt.Sprintf("%#x", i.Target())
	case A_LOAD:
		return RegName(i.Dst) + ", " + memOperand(i.Src, i.Imm)
	case A_STORE:
		return memOperand(i.Dst, i.Imm) + ", " + RegName(i.Src)
	case A_LEA:
		return fmt.Sprintf("%s, [rip%+#x]", RegName(i.Dst), i.Imm)
	case A_SRC:
		return i.src()
	case A_DST:
		return RegName(i.Dst)
	case A_IMM:
		return fmt.Sprintf("%#x", i.Imm)
	}
	return ""
}

// Target is the absolute destination of a relative branch.
func (i *Ins) Target() uint64 {
	return i.addr + InsSize + uint64(i.Imm)
}

// Decode parses a single instruction. ok is false for undefined encodings.
func Decode(b []byte, addr uint64) (ins *Ins, ok bool) {
	if len(b) < InsSize {
		return nil, false
	}
	ins = &Ins{
		addr:  addr,
		Op:    int(b[0]),
		Dst:   int(b[1]),
		Src:   int(b[2]),
		Flags: int(b[3]),
		Imm:   int64(int32(binary.LittleEndian.Uint32(b[4:8]))),
		bytes: b[:InsSize],
	}
	data, known := opData[ins.Op]
	if !known || ins.Flags&^F_IMM != 0 {
		return ins, false
	}
	switch data.arg {
	case A_RR:
		ok = ins.Dst < NumGPR && (ins.IsImm() || ins.Src < NumGPR)
	case A_LOAD, A_STORE:
		ok = !ins.IsImm() && ins.Dst < NumGPR && ins.Src < NumGPR
	case A_SRC:
		ok = ins.IsImm() || ins.Src < NumGPR
	case A_DST, A_LEA:
		ok = ins.Dst < NumGPR
	default:
		ok = true
	}
	return ins, ok
}

// Encode packs an instruction.
func Encode(op, dst, src, flags int, imm int64) []byte {
	var b [InsSize]byte
	b[0], b[1], b[2], b[3] = byte(op), byte(dst), byte(src), byte(flags)
	binary.LittleEndian.PutUint32(b[4:], uint32(int32(imm)))
	return b[:]
}

type Dis struct{}

func (d *Dis) Dis(mem []byte, addr uint64) ([]models.Ins, error) {
	var ret []models.Ins
	for len(mem) >= InsSize {
		ins, ok := Decode(mem, addr)
		if !ok {
			return ret, fmt.Errorf("invalid instruction at %#x: % x", addr, mem[:InsSize])
		}
		ret = append(ret, ins)
		mem, addr = mem[InsSize:], addr+InsSize
	}
	return ret, nil
}
