package vfs

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/kernel/proc"
)

type node struct {
	mode     os.FileMode
	data     []byte
	children map[string]*node
	dev      Device
}

// Device is a character device node.
type Device interface {
	Open(flags int) (proc.File, error)
}

// MemFS is an in-memory tree.
type MemFS struct {
	root *node
}

func NewMemFS() *MemFS {
	return &MemFS{root: &node{mode: os.ModeDir | 0755, children: make(map[string]*node)}}
}

func (fs *MemFS) lookup(p string) (*node, error) {
	n := fs.root
	for _, part := range splitPath(p) {
		if !n.mode.IsDir() {
			return nil, ErrNotDir
		}
		child, ok := n.children[part]
		if !ok {
			return nil, ErrNotExist
		}
		n = child
	}
	return n, nil
}

// parent returns the directory p would live in, creating it with mkdir.
func (fs *MemFS) parent(p string, mkdir bool) (*node, string, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", ErrExist
	}
	n := fs.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := n.children[part]
		if !ok {
			if !mkdir {
				return nil, "", ErrNotExist
			}
			child = &node{mode: os.ModeDir | 0755, children: make(map[string]*node)}
			n.children[part] = child
		}
		if !child.mode.IsDir() {
			return nil, "", ErrNotDir
		}
		n = child
	}
	return n, parts[len(parts)-1], nil
}

// WriteFile creates or replaces a file, creating parent directories.
func (fs *MemFS) WriteFile(p string, data []byte, mode os.FileMode) error {
	dir, name, err := fs.parent(p, true)
	if err != nil {
		return errors.Wrapf(err, "write %s", p)
	}
	if old, ok := dir.children[name]; ok && old.mode.IsDir() {
		return errors.Wrapf(ErrIsDir, "write %s", p)
	}
	dir.children[name] = &node{mode: mode.Perm(), data: append([]byte(nil), data...)}
	return nil
}

func (fs *MemFS) Mkdir(p string) error {
	if Clean(p) == "/" {
		return nil
	}
	dir, name, err := fs.parent(p, true)
	if err != nil {
		return err
	}
	if _, ok := dir.children[name]; !ok {
		dir.children[name] = &node{mode: os.ModeDir | 0755, children: make(map[string]*node)}
	}
	return nil
}

// AddDevice installs a character device at p.
func (fs *MemFS) AddDevice(p string, dev Device) error {
	dir, name, err := fs.parent(p, true)
	if err != nil {
		return err
	}
	dir.children[name] = &node{mode: os.ModeDevice | os.ModeCharDevice | 0666, dev: dev}
	return nil
}

func (fs *MemFS) Stat(p string) (FileInfo, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return FileInfo{}, err
	}
	parts := splitPath(p)
	name := "/"
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	return FileInfo{Name: name, Mode: n.mode, Size: int64(len(n.data))}, nil
}

func (fs *MemFS) ReadFile(p string) ([]byte, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.mode.IsDir() {
		return nil, ErrIsDir
	}
	return append([]byte(nil), n.data...), nil
}

// ReadDir lists names in a directory, sorted.
func (fs *MemFS) ReadDir(p string) ([]string, error) {
	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.mode.IsDir() {
		return nil, ErrNotDir
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (fs *MemFS) Open(p string, flags int) (proc.File, error) {
	n, err := fs.lookup(p)
	if err == ErrNotExist && flags&O_CREAT != 0 {
		if err := fs.WriteFile(p, nil, 0644); err != nil {
			return nil, err
		}
		n, err = fs.lookup(p)
	} else if err == nil && flags&(O_CREAT|O_EXCL) == O_CREAT|O_EXCL {
		return nil, ErrExist
	}
	if err != nil {
		return nil, err
	}
	if n.dev != nil {
		return n.dev.Open(flags)
	}
	acc := flags & O_ACCMODE
	if n.mode.IsDir() && acc != O_RDONLY {
		return nil, ErrIsDir
	}
	if flags&O_TRUNC != 0 && acc != O_RDONLY {
		n.data = nil
	}
	return &memFile{n: n, flags: flags}, nil
}

type memFile struct {
	n     *node
	off   int
	flags int
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.flags&O_ACCMODE == O_WRONLY {
		return 0, ErrPerm
	}
	if f.n.mode.IsDir() {
		return 0, ErrIsDir
	}
	if f.off >= len(f.n.data) {
		return 0, io.EOF
	}
	n := copy(p, f.n.data[f.off:])
	f.off += n
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.flags&O_ACCMODE == O_RDONLY {
		return 0, ErrPerm
	}
	if f.flags&O_APPEND != 0 {
		f.off = len(f.n.data)
	}
	if end := f.off + len(p); end > len(f.n.data) {
		f.n.data = append(f.n.data, make([]byte, end-len(f.n.data))...)
	}
	copy(f.n.data[f.off:], p)
	f.off += len(p)
	return len(p), nil
}

func (f *memFile) Close() error { return nil }
