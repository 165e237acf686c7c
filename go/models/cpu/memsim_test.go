package cpu

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

// overlap tests for an unmapped 0x1100-0x1200 hole
// {start, end, should_error}
var overlapTable = [][]uint64{
	{0x1000, 0x1100, 0},
	{0x1000, 0x1050, 0},
	{0x1000, 0x1200, 1},
	{0x1100, 0x1150, 1},
	{0x1150, 0x1250, 1},
	{0x1200, 0x1250, 0},
}

func BenchmarkMemSimRead(b *testing.B) {
	m := &MemSim{}
	m.Map(0x1000, 0x100000, 0, true)
	p := make([]byte, 8)
	for i := 0; i < b.N; i++ {
		m.Read(0x1000+uint64(i*8)&0xffff, p, 0)
	}
}

func TestMemSim(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, 0, false)
	b := pattern(0x1000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err, "write failed")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err, "read failed")
	} else if !bytes.Equal(b, c) {
		t.Fatal("read/write inconsistent")
	}

	m.Unmap(0x1100, 0x100)
	if len(m.Mem) != 2 {
		t.Fatalf("unmap left %d pages, expecting 2", len(m.Mem))
	}
	if err := m.Read(0x1200, c[:0x100], 0); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(b[0x200:0x300], c[:0x100]) {
		t.Error("right-adjacent memory corruption after unmap")
	}
	for _, region := range overlapTable {
		p := make([]byte, region[1]-region[0])
		err := m.Read(region[0], p, 0)
		if (err != nil) != (region[2] == 1) {
			t.Errorf("read(%#x, %#x) bad error value: %v", region[0], region[1], err)
		}
	}

	// io across adjacent maps
	m = &MemSim{}
	m.Map(0x1000, 0x1000, 0, false)
	m.Map(0x2000, 0x1000, 0, false)
	b = pattern(0x2000)
	c = make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err)
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(b, c) {
		t.Error("corruption across adjacent maps")
	}

	// remap with zero=false keeps contents, zero=true clears them
	m.Map(0x1000, 0x2000, 0, false)
	m.Read(0x1000, c, 0)
	if !bytes.Equal(b, c) {
		t.Error("remap with zero=false lost data")
	}
	m.Map(0x1800, 0x100, 0, true)
	m.Read(0x1800, c[:0x100], 0)
	if !bytes.Equal(c[:0x100], make([]byte, 0x100)) {
		t.Error("remap with zero=true kept data")
	}
}

func TestMemSimProt(t *testing.T) {
	m := &MemSim{}
	m.Map(0x4000, 0x3000, PROT_READ|PROT_WRITE, true)
	m.Prot(0x5000, 0x1000, PROT_READ|PROT_EXEC)
	if len(m.Mem) != 3 {
		t.Fatalf("prot split into %d pages, expecting 3", len(m.Mem))
	}
	var p [8]byte
	if err := m.Write(0x5000, p[:], PROT_WRITE); err == nil {
		t.Error("write to r-x page succeeded")
	} else if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_WRITE_PROT {
		t.Errorf("wrong error for protected write: %v", err)
	}
	if err := m.Read(0x5000, p[:], PROT_EXEC); err != nil {
		t.Error(err)
	}
	if err := m.Read(0x4ff8, p[:], PROT_EXEC); err == nil {
		t.Error("fetch spanning into rw- page succeeded")
	}
	// prot 0 skips the protection check entirely
	if err := m.Write(0x5000, p[:], 0); err != nil {
		t.Error(err)
	}
	if err := m.Read(0x8000, p[:], PROT_READ); err == nil {
		t.Error("read of unmapped memory succeeded")
	} else if merr := err.(*MemError); merr.Enum != MEM_READ_UNMAPPED {
		t.Errorf("wrong error for unmapped read: %v", err)
	}
}

func TestMemUintAndStrings(t *testing.T) {
	m := NewMem(64, binary.LittleEndian)
	if err := m.MemMapDesc(0x10000, 0x1000, PROT_READ|PROT_WRITE, "data"); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteUint(0x10008, 8, PROT_WRITE, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	if v, err := m.ReadUint(0x10008, 4, PROT_READ); err != nil || v != 0x55667788 {
		t.Fatalf("ReadUint() = %#x, %v", v, err)
	}
	m.MemWrite(0x10ff0, []byte("hello\x00"))
	if s, err := m.ReadStrAt(0x10ff0, 64); err != nil || s != "hello" {
		t.Fatalf("ReadStrAt() = %q, %v", s, err)
	}
	// runs off the end of the mapping without a terminator
	m.MemWrite(0x10ffc, []byte("abcd"))
	if _, err := m.ReadStrAt(0x10ffc, 64); err == nil {
		t.Error("unterminated string at end of mapping was accepted")
	}
	if _, err := m.ReadStrAt(0x10ff0, 3); err == nil {
		t.Error("overlong string was accepted")
	}
	if pages := m.Mappings(); len(pages) != 1 || pages[0].Desc != "data" {
		t.Errorf("unexpected mappings: %v", pages)
	}
}
