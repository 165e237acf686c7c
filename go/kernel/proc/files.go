package proc

import (
	"io"

	"github.com/pkg/errors"
)

const MaxOpenFiles = 16

var (
	ErrBadFd        = errors.New("bad file descriptor")
	ErrTooManyFiles = errors.New("too many open files")
)

// File is anything a descriptor can refer to.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenFile is an open file description, shared by every descriptor
// duplicated or inherited from the same open.
type OpenFile struct {
	File
	Path  string
	Flags int
	refs  int
}

func NewOpenFile(f File, path string, flags int) *OpenFile {
	return &OpenFile{File: f, Path: path, Flags: flags, refs: 1}
}

func (o *OpenFile) Ref() *OpenFile {
	o.refs++
	return o
}

func (o *OpenFile) Refs() int { return o.refs }

// Release drops one reference and closes the file with the last one.
func (o *OpenFile) Release() error {
	o.refs--
	if o.refs == 0 {
		return o.File.Close()
	}
	return nil
}

type fdEntry struct {
	file    *OpenFile
	cloexec bool
}

type FileTable struct {
	fds [MaxOpenFiles]fdEntry
}

func (t *FileTable) valid(fd int) bool {
	return fd >= 0 && fd < MaxOpenFiles && t.fds[fd].file != nil
}

// Install puts f in the lowest free slot. The caller's reference moves to the table.
func (t *FileTable) Install(f *OpenFile, cloexec bool) (int, error) {
	for fd := range t.fds {
		if t.fds[fd].file == nil {
			t.fds[fd] = fdEntry{f, cloexec}
			return fd, nil
		}
	}
	return -1, ErrTooManyFiles
}

func (t *FileTable) Get(fd int) (*OpenFile, error) {
	if !t.valid(fd) {
		return nil, ErrBadFd
	}
	return t.fds[fd].file, nil
}

func (t *FileTable) CloseOnExecSet(fd int) bool {
	return t.valid(fd) && t.fds[fd].cloexec
}

func (t *FileTable) Close(fd int) error {
	if !t.valid(fd) {
		return ErrBadFd
	}
	f := t.fds[fd].file
	t.fds[fd] = fdEntry{}
	return f.Release()
}

// Dup clears close-on-exec on the new descriptor.
func (t *FileTable) Dup(fd int) (int, error) {
	f, err := t.Get(fd)
	if err != nil {
		return -1, err
	}
	nfd, err := t.Install(f, false)
	if err == nil {
		f.Ref()
	}
	return nfd, err
}

// Clone returns a copy for a forked child, taking a reference on every description.
func (t *FileTable) Clone() FileTable {
	c := *t
	for _, e := range c.fds {
		if e.file != nil {
			e.file.Ref()
		}
	}
	return c
}

func (t *FileTable) CloseOnExec() {
	for fd, e := range t.fds {
		if e.file != nil && e.cloexec {
			t.Close(fd)
		}
	}
}

func (t *FileTable) CloseAll() {
	for fd := range t.fds {
		if t.fds[fd].file != nil {
			t.Close(fd)
		}
	}
}

func (t *FileTable) Count() int {
	n := 0
	for _, e := range t.fds {
		if e.file != nil {
			n++
		}
	}
	return n
}
