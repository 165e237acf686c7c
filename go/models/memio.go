package models

// Memory is the subset of a CPU needed to stream bytes in and out of guest memory.
type Memory interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

type MemReader struct {
	Mem  Memory
	Addr uint64
}

func (m *MemReader) Read(p []byte) (int, error) {
	if err := m.Mem.MemReadInto(p, m.Addr); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

type MemWriter struct {
	Mem  Memory
	Addr uint64
}

func (m *MemWriter) Write(p []byte) (int, error) {
	if err := m.Mem.MemWrite(m.Addr, p); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

type memReadWriter struct {
	MemReader
	MemWriter
}

// MemStream returns a reader and writer that advance independently from addr.
func MemStream(mem Memory, addr uint64) *memReadWriter {
	return &memReadWriter{MemReader{mem, addr}, MemWriter{mem, addr}}
}
