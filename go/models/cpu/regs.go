package cpu

import (
	"github.com/pkg/errors"
)

// implements register and context methods conforming to cpu.Cpu
// enums index a flat array; NewRegs rejects enums above MaxRegEnum
const MaxRegEnum = 255

type Regs struct {
	mask  uint64
	vals  []uint64
	valid []bool
}

func NewRegs(bits uint, enums []int) *Regs {
	max := 0
	for _, e := range enums {
		if e > max {
			max = e
		}
	}
	if max > MaxRegEnum {
		panic(errors.Errorf("register enum too large: %d", max))
	}
	r := &Regs{
		mask:  ^uint64(0) >> (64 - bits),
		vals:  make([]uint64, max+1),
		valid: make([]bool, max+1),
	}
	for _, e := range enums {
		if e >= 0 {
			r.valid[e] = true
		}
	}
	return r
}

func (r *Regs) ok(enum int) bool {
	return enum >= 0 && enum < len(r.valid) && r.valid[enum]
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	if !r.ok(enum) {
		return 0, errors.New("invalid register")
	}
	return r.vals[enum], nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if !r.ok(enum) {
		return errors.New("invalid register")
	}
	r.vals[enum] = val & r.mask
	return nil
}

// Get and Set skip validation. They exist for interpreters that already decoded a valid enum.
func (r *Regs) Get(enum int) uint64 { return r.vals[enum] }

func (r *Regs) Set(enum int, val uint64) { r.vals[enum] = val & r.mask }

// handling ContextSave in the register file either requires you to store important cpu state (like flags) in registers
// or wrap ContextSave/ContextRestore with your own functions
func (r *Regs) ContextSave(reuse interface{}) (interface{}, error) {
	var s []uint64
	if reuse != nil {
		var ok bool
		if s, ok = reuse.([]uint64); !ok || len(s) != len(r.vals) {
			return nil, errors.New("incorrect context type")
		}
	} else {
		s = make([]uint64, len(r.vals))
	}
	copy(s, r.vals)
	return s, nil
}

func (r *Regs) ContextRestore(ctx interface{}) error {
	s, ok := ctx.([]uint64)
	if !ok || len(s) != len(r.vals) {
		return errors.New("incorrect context type")
	}
	copy(r.vals, s)
	return nil
}
