package loader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/cpu/kx"
)

var kxMagic = []byte("KX64")

const (
	kxVersion = 1
	// largest memory footprint of one image
	MaxImageSize = 1 << 20
)

func MatchKx(r io.ReaderAt) bool {
	var p [4]byte
	_, err := r.ReadAt(p[:], 0)
	return err == nil && bytes.Equal(p[:], kxMagic)
}

type kxHeader struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint16
	Entry    uint64
	TextSize uint32
	DataSize uint32
	BssSize  uint32
	Reserved uint32
}

// Image is a validated executable. Text is loaded at the image base, data
// at the next page boundary after text, and bss right after data.
type Image struct {
	Entry uint64
	Text  []byte
	Data  []byte
	Bss   uint64
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

func (i *Image) DataOff() uint64 {
	return alignUp(uint64(len(i.Text)), kx.SectionAlign)
}

// Size is the page-aligned memory footprint.
func (i *Image) Size() uint64 {
	return alignUp(i.DataOff()+uint64(len(i.Data))+i.Bss, kx.SectionAlign)
}

func NewKxImage(r io.ReaderAt, size int64) (*Image, error) {
	var h kxHeader
	off, err := unpackAt(r, &h, 0)
	if err != nil {
		return nil, errors.Wrap(err, "short KX header")
	}
	switch {
	case !bytes.Equal(h.Magic[:], kxMagic):
		return nil, errors.WithStack(UnknownMagic)
	case h.Version != kxVersion:
		return nil, errors.Errorf("unsupported KX version %d", h.Version)
	case h.Flags != 0:
		return nil, errors.Errorf("unknown KX flags %#x", h.Flags)
	case h.TextSize == 0 || h.TextSize%kx.InsSize != 0:
		return nil, errors.Errorf("bad text size %#x", h.TextSize)
	case h.Entry >= uint64(h.TextSize) || h.Entry%kx.InsSize != 0:
		return nil, errors.Errorf("entry point %#x outside text", h.Entry)
	}
	fileSize := int64(off) + int64(h.TextSize) + int64(h.DataSize)
	if fileSize > size {
		return nil, errors.Errorf("truncated image: %d bytes, header needs %d", size, fileSize)
	}
	img := &Image{
		Entry: h.Entry,
		Text:  make([]byte, h.TextSize),
		Data:  make([]byte, h.DataSize),
		Bss:   uint64(h.BssSize),
	}
	if _, err := r.ReadAt(img.Text, int64(off)); err != nil {
		return nil, errors.Wrap(err, "reading text")
	}
	if _, err := r.ReadAt(img.Data, int64(off)+int64(h.TextSize)); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "reading data")
	}
	if img.Size() > MaxImageSize {
		return nil, errors.Errorf("image needs %#x bytes of memory, limit is %#x", img.Size(), MaxImageSize)
	}
	return img, nil
}

// FromProgram wraps assembler output.
func FromProgram(p *kx.Program) *Image {
	return &Image{Entry: p.Entry, Text: p.Text, Data: p.Data, Bss: p.Bss}
}

func (i *Image) WriteTo(w io.Writer) (int64, error) {
	h := kxHeader{
		Version:  kxVersion,
		Entry:    i.Entry,
		TextSize: uint32(len(i.Text)),
		DataSize: uint32(len(i.Data)),
		BssSize:  uint32(i.Bss),
	}
	copy(h.Magic[:], kxMagic)
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, &h, binary.LittleEndian); err != nil {
		return 0, err
	}
	buf.Write(i.Text)
	buf.Write(i.Data)
	return buf.WriteTo(w)
}

func (i *Image) Bytes() []byte {
	var buf bytes.Buffer
	i.WriteTo(&buf)
	return buf.Bytes()
}
