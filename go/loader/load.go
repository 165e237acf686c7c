package loader

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var UnknownMagic = errors.New("Could not identify file magic.")

func LoadFile(path string) (*Image, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(p)
}

func LoadBytes(p []byte) (*Image, error) {
	return Load(bytes.NewReader(p), int64(len(p)))
}

func Load(r io.ReaderAt, size int64) (*Image, error) {
	if !MatchKx(r) {
		return nil, errors.WithStack(UnknownMagic)
	}
	return NewKxImage(r, size)
}

func unpackAt(r io.ReaderAt, i interface{}, at int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, err
	}
	return size, struc.UnpackWithOrder(io.NewSectionReader(r, at, int64(size)), i, binary.LittleEndian)
}
