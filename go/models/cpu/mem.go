package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// wraps MemSim to make a Cpu interface-compatible memory model
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	mask uint64
	// MemSim is private, so any cpu-facing functionality needs to be wrapped by Mem
	sim *MemSim

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

func (m *Mem) ByteOrder() binary.ByteOrder { return m.order }

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	end := addr + size
	if size == 0 || end < addr || (m.bits < 64 && end-1 > m.mask) {
		return errors.New("region outside memory range")
	}
	m.sim.Map(addr, size, prot, true)
	return nil
}

// MemMapDesc maps a region and labels it for listings.
func (m *Mem) MemMapDesc(addr, size uint64, prot int, desc string) error {
	if err := m.MemMapProt(addr, size, prot); err != nil {
		return err
	}
	if p := m.sim.Mem.Find(addr); p != nil {
		p.Desc = desc
	}
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) RangeValid(addr, size uint64, prot int) (bool, bool) {
	return m.sim.RangeValid(addr, size, prot)
}

func (m *Mem) Mappings() Pages {
	out := make(Pages, len(m.sim.Mem))
	copy(out, m.sim.Mem)
	return out
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// Read while checking protections. This exists to support a CPU interpreter.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

// Write while checking protections. This exists to support a CPU interpreter.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	return m.sim.Write(addr, p, prot)
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("MemReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("MemWriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	return m.WriteProt(addr, buf[:size], prot)
}

// ReadStrAt reads a NUL-terminated string of at most max bytes.
func (m *Mem) ReadStrAt(addr uint64, max int) (string, error) {
	var out []byte
	var chunk [64]byte
	for len(out) < max {
		n := uint64(len(chunk))
		// don't cross into an unmapped page for the tail of the read
		if ok, _ := m.sim.RangeValid(addr, n, 0); !ok {
			n = 1
		}
		if err := m.sim.Read(addr, chunk[:n], 0); err != nil {
			return "", err
		}
		for _, c := range chunk[:n] {
			if c == 0 {
				return string(out), nil
			}
			out = append(out, c)
			if len(out) >= max {
				break
			}
		}
		addr += n
	}
	return "", errors.Errorf("string at %#x exceeds %d bytes", addr, max)
}
