package proc

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	// user regions are carved from fixed slots starting here
	UserBase   = 0x400000
	RegionSize = 1 << 20
	StackSize  = 64 << 10

	pageSize = 0x1000
)

var ErrNoMemory = errors.New("out of user memory slots")

// Region is a reference-counted block of user memory. Forked children share
// the parent's image region.
type Region struct {
	Base uint64
	Size uint64
	Prot int
	Desc string
	refs int
	slot int
}

func (r *Region) Top() uint64 { return r.Base + r.Size }

func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.Top()
}

func (r *Region) Refs() int { return r.refs }

func (r *Region) String() string {
	return fmt.Sprintf("%#x-%#x %s %s refs=%d", r.Base, r.Top(), cpu.ProtString(r.Prot), r.Desc, r.refs)
}

type Mapper interface {
	MemMapProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, p []byte) error
}

// Memory hands out user regions. Every process lives in the one address
// space, each region in its own slot.
type Memory struct {
	m    Mapper
	used []bool
}

func NewMemory(m Mapper, slots int) *Memory {
	return &Memory{m: m, used: make([]bool, slots)}
}

func (m *Memory) Alloc(size uint64, prot int, desc string) (*Region, error) {
	if size == 0 || size > RegionSize {
		return nil, errors.Errorf("bad region size %#x", size)
	}
	size = (size + pageSize - 1) &^ (pageSize - 1)
	for slot, used := range m.used {
		if used {
			continue
		}
		r := &Region{Base: UserBase + uint64(slot)*RegionSize, Size: size, Prot: prot, Desc: desc, refs: 1, slot: slot}
		if err := m.m.MemMapProt(r.Base, r.Size, prot); err != nil {
			return nil, errors.Wrap(err, "mapping region")
		}
		m.used[slot] = true
		return r, nil
	}
	return nil, ErrNoMemory
}

func (m *Memory) Ref(r *Region) *Region {
	r.refs++
	return r
}

// Release drops a reference and unmaps the region with the last one.
func (m *Memory) Release(r *Region) error {
	if r == nil {
		return nil
	}
	if r.refs <= 0 {
		return errors.Errorf("release of dead region %s", r)
	}
	r.refs--
	if r.refs > 0 {
		return nil
	}
	m.used[r.slot] = false
	return errors.Wrap(m.m.MemUnmap(r.Base, r.Size), "unmapping region")
}

// Copy duplicates a region's contents into a new slot.
func (m *Memory) Copy(src *Region, desc string) (*Region, error) {
	data, err := m.m.MemRead(src.Base, src.Size)
	if err != nil {
		return nil, err
	}
	r, err := m.Alloc(src.Size, src.Prot, desc)
	if err != nil {
		return nil, err
	}
	if err := m.m.MemWrite(r.Base, data); err != nil {
		m.Release(r)
		return nil, err
	}
	return r, nil
}

func (m *Memory) InUse() int {
	n := 0
	for _, used := range m.used {
		if used {
			n++
		}
	}
	return n
}
