package common

import (
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
)

type (
	Buf struct {
		Addr uint64
		K    *KernelBase
	}
	Obuf struct{ Buf }
	Len  uint64
	Fd   int32
	Ptr  uint64
)

const (
	// longest path or argument string accepted from user memory
	MaxStr = 256
	// most entries read from a pointer array
	MaxArgs = 32
)

var (
	ErrStrTooLong  = errors.New("string too long")
	ErrArgsTooLong = errors.New("argument list too long")
)

func NewBuf(k Kernel, addr uint64) Buf {
	return Buf{K: k.ProcKernel(), Addr: addr}
}

func (b Buf) Null() bool { return b.Addr == 0 }

// Check fails with EFAULT unless size bytes at the buffer are mapped user
// memory with prot.
func (b Buf) Check(size uint64, prot int) error {
	return b.K.CheckUser(b.Addr, size, prot)
}

func (b Buf) Struc() *models.StrucStream {
	return models.StrucAt(b.K.Mem, b.Addr)
}

func (b Buf) Pack(i interface{}) error {
	size, err := b.Struc().Sizeof(i)
	if err != nil {
		return errors.Wrap(err, "struc.Sizeof() failed")
	}
	if err := b.Check(uint64(size), cpu.PROT_WRITE); err != nil {
		return err
	}
	return errors.Wrap(b.Struc().Pack(i), "struc.Pack() failed")
}

func (b Buf) Unpack(i interface{}) error {
	size, err := b.Struc().Sizeof(i)
	if err != nil {
		return errors.Wrap(err, "struc.Sizeof() failed")
	}
	if err := b.Check(uint64(size), cpu.PROT_READ); err != nil {
		return err
	}
	return errors.Wrap(b.Struc().Unpack(i), "struc.Unpack() failed")
}

func (b Buf) Read(size uint64) ([]byte, error) {
	if err := b.Check(size, cpu.PROT_READ); err != nil {
		return nil, err
	}
	return b.K.Mem.MemRead(b.Addr, size)
}

func (b Buf) Write(p []byte) error {
	if err := b.Check(uint64(len(p)), cpu.PROT_WRITE); err != nil {
		return err
	}
	return b.K.Mem.MemWrite(b.Addr, p)
}

// CheckUser validates a user pointer range.
func (k *KernelBase) CheckUser(addr, size uint64, prot int) error {
	if size == 0 {
		return nil
	}
	if !cpu.IsUserRange(addr, size) {
		return EFAULT
	}
	if mapped, ok := k.Mem.RangeValid(addr, size, prot); !mapped || !ok {
		return EFAULT
	}
	return nil
}

// ReadStr reads a NUL-terminated user string shorter than MaxStr.
func (k *KernelBase) ReadStr(addr uint64) (string, error) {
	var out []byte
	var b [1]byte
	for len(out) < MaxStr {
		if err := k.CheckUser(addr, 1, cpu.PROT_READ); err != nil {
			return "", err
		}
		if err := k.Mem.MemReadInto(b[:], addr); err != nil {
			return "", EFAULT
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
		addr++
	}
	return "", ErrStrTooLong
}

// ReadStrArray reads a NULL-terminated array of string pointers.
func (k *KernelBase) ReadStrArray(addr uint64) ([]string, error) {
	var out []string
	if addr == 0 {
		return out, nil
	}
	for {
		var ptr uint64
		if err := NewBuf(k, addr).Unpack(&ptr); err != nil {
			return nil, EFAULT
		}
		if ptr == 0 {
			return out, nil
		}
		if len(out) == MaxArgs {
			return nil, ErrArgsTooLong
		}
		s, err := k.ReadStr(ptr)
		if err == ErrStrTooLong {
			return nil, ErrArgsTooLong
		} else if err != nil {
			return nil, err
		}
		out = append(out, s)
		addr += 8
	}
}
