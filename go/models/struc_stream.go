package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
}

// StrucAt streams structures to and from guest memory starting at addr.
func StrucAt(mem Memory, addr uint64) *StrucStream {
	return &StrucStream{Stream: MemStream(mem, addr), Order: binary.LittleEndian}
}

func (s *StrucStream) Pack(i interface{}) error {
	return struc.PackWithOrder(s.Stream, i, s.Order)
}

func (s *StrucStream) Unpack(i interface{}) error {
	return struc.UnpackWithOrder(s.Stream, i, s.Order)
}

func (s *StrucStream) Sizeof(i interface{}) (int, error) {
	return struc.Sizeof(i)
}
