package cpu

import (
	"bytes"
	"fmt"
	"strings"
)

type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	Desc string
}

func ProtString(p int) string {
	out := []byte("---")
	if p&PROT_READ != 0 {
		out[0] = 'r'
	}
	if p&PROT_WRITE != 0 {
		out[1] = 'w'
	}
	if p&PROT_EXEC != 0 {
		out[2] = 'x'
	}
	return string(out)
}

func (p *Page) String() string {
	desc := fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.Addr+p.Size, ProtString(p.Prot))
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr-p.Addr < p.Size
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := p.Addr, p.Addr+p.Size
	if e2 := addr + size; end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end - start, true
}

func (p *Page) Overlaps(addr, size uint64) bool {
	_, _, ok := p.Intersect(addr, size)
	return ok
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size], Desc: p.Desc}
}

// Split trims p to [addr, addr+size) and returns the pieces left and right of it.
// If the range extends past p, p is zero-padded to cover it.
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	if addr+size < p.Addr+p.Size {
		ra := addr + size
		right = p.slice(ra, p.Addr+p.Size-ra)
		p.Data = p.Data[:ra-p.Addr]
	}
	if addr > p.Addr {
		ls := addr - p.Addr
		left = p.slice(p.Addr, ls)
		p.Data = p.Data[ls:]
	}
	if addr < p.Addr {
		p.Data = append(bytes.Repeat([]byte{0}, int(p.Addr-addr)), p.Data...)
	}
	if end, nend := p.Addr+p.Size, addr+size; nend > end {
		p.Data = append(p.Data, bytes.Repeat([]byte{0}, int(nend-end))...)
	}
	p.Addr, p.Size = addr, size
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// binary search to find index of the region containing addr, if any, else -1
func (p Pages) bsearch(addr uint64) int {
	l, r := 0, len(p)-1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		if addr < e.Addr {
			r = mid - 1
		} else if e.Contains(addr) {
			return mid
		} else {
			l = mid + 1
		}
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}
