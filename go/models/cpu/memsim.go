package cpu

import (
	"fmt"
	"sort"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sparse list of non-overlapping pages sorted by address.
type MemSim struct {
	Mem Pages
}

// Checks whether the address range exists in the currently-mapped memory.
// If prot > 0, ensures that each region has the entire protection mask provided.
func (m *MemSim) RangeValid(addr, size uint64, prot int) (mapGood bool, protGood bool) {
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return false, false
	}
	protGood = true
	end := addr + size
	for _, mm := range m.Mem[first:] {
		if !mm.Contains(addr) {
			break
		}
		if prot > 0 && mm.Prot&prot != prot {
			protGood = false
		}
		addr = mm.Addr + mm.Size
		if addr >= end {
			break
		}
	}
	return addr >= end, protGood
}

// Maps <addr> - <addr>+<size> and protects with prot.
// If zero is false, any data already mapped in the range is carried into the new page.
func (m *MemSim) Map(addr, size uint64, prot int, zero bool) *Page {
	data := make([]byte, size)
	if !zero {
		m.copyOut(addr, data)
	}
	m.Unmap(addr, size)
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: data}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// copies whatever is mapped in [addr, addr+len(p)) into p, leaving holes untouched
func (m *MemSim) copyOut(addr uint64, p []byte) {
	for _, mm := range m.Mem {
		if start, size, ok := mm.Intersect(addr, uint64(len(p))); ok {
			copy(p[start-addr:start-addr+size], mm.Data[start-mm.Addr:])
		}
	}
}

// this is exactly unmap, but the middle piece of each split is kept and re-protected
func (m *MemSim) Prot(addr, size uint64, prot int) {
	m.carve(addr, size, func(mm *Page) *Page {
		mm.Prot = prot
		return mm
	})
}

func (m *MemSim) Unmap(addr, size uint64) {
	m.carve(addr, size, func(*Page) *Page { return nil })
}

func (m *MemSim) carve(addr, size uint64, mid func(*Page) *Page) {
	tmp := make(Pages, 0, len(m.Mem)+2)
	for _, mm := range m.Mem {
		oaddr, osize, ok := mm.Intersect(addr, size)
		if !ok {
			tmp = append(tmp, mm)
			continue
		}
		left, right := mm.Split(oaddr, osize)
		if left != nil {
			tmp = append(tmp, left)
		}
		if keep := mid(mm); keep != nil {
			tmp = append(tmp, keep)
		}
		if right != nil {
			tmp = append(tmp, right)
		}
	}
	m.Mem = tmp
}

func (m *MemSim) Read(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		if prot&PROT_EXEC == PROT_EXEC {
			return &MemError{Addr: addr, Size: len(p), Enum: MEM_FETCH_UNMAPPED}
		}
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	} else if !gprot {
		if prot&PROT_EXEC == PROT_EXEC {
			return &MemError{Addr: addr, Size: len(p), Enum: MEM_FETCH_PROT}
		}
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_PROT}
	}
	if i := m.Mem.bsearch(addr); i >= 0 {
		for _, mm := range m.Mem[i:] {
			if len(p) == 0 || !mm.Contains(addr) {
				break
			}
			n := copy(p, mm.Data[addr-mm.Addr:])
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}

func (m *MemSim) Write(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_PROT}
	}
	if i := m.Mem.bsearch(addr); i >= 0 {
		for _, mm := range m.Mem[i:] {
			if len(p) == 0 || !mm.Contains(addr) {
				break
			}
			n := copy(mm.Data[addr-mm.Addr:], p)
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}
