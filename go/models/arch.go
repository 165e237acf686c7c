package models

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/tinykern/proccore/go/models/cpu"
)

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val uint64
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

type regMap map[string]int

func (r regMap) Items() regList {
	ret := make(regList, 0, len(r))
	for n, e := range r {
		ret = append(ret, Reg{e, n})
	}
	return ret
}

type CpuBuilder interface {
	New() (cpu.Cpu, error)
}

type Dis interface {
	Dis(mem []byte, addr uint64) ([]Ins, error)
}

// RegReader is anything with a register file: a live CPU or a saved trap frame.
type RegReader interface {
	RegRead(enum int) (uint64, error)
}

type Arch struct {
	Name string
	Bits int

	Cpu CpuBuilder
	Dis Dis

	PC, SP int
	Regs   regMap
	// sorted for RegDump
	regList regList
}

// RegDump reads every named register, naturally sorted (r8 before r10).
func (a *Arch) RegDump(r RegReader) ([]RegVal, error) {
	if a.regList == nil {
		rl := a.Regs.Items()
		sort.Sort(rl)
		a.regList = rl
	}
	ret := make([]RegVal, len(a.regList))
	for i, reg := range a.regList {
		val, err := r.RegRead(reg.Enum)
		if err != nil {
			return nil, err
		}
		ret[i] = RegVal{reg, val}
	}
	return ret, nil
}
