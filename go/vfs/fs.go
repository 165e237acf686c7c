// Package vfs is the filesystem collaborator of the process core: just
// enough of a filesystem for execve to find images and for programs to
// open files and talk to the console.
package vfs

import (
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/kernel/proc"
)

var (
	ErrNotExist = errors.New("vfs: file not found")
	ErrExist    = errors.New("vfs: file exists")
	ErrIsDir    = errors.New("vfs: is a directory")
	ErrNotDir   = errors.New("vfs: not a directory")
	ErrPerm     = errors.New("vfs: permission denied")
)

// Linux open(2) flags understood by Open.
const (
	O_RDONLY  = 0x0
	O_WRONLY  = 0x1
	O_RDWR    = 0x2
	O_ACCMODE = 0x3
	O_CREAT   = 0x40
	O_EXCL    = 0x80
	O_TRUNC   = 0x200
	O_APPEND  = 0x400
	O_CLOEXEC = 0x80000
)

type FileInfo struct {
	Name string
	Mode os.FileMode
	Size int64
}

func (f FileInfo) IsDir() bool { return f.Mode.IsDir() }

// Executable is true if any execute bit is set on a regular file.
func (f FileInfo) Executable() bool {
	return f.Mode.IsRegular() && f.Mode.Perm()&0111 != 0
}

type FS interface {
	Stat(path string) (FileInfo, error)
	Open(path string, flags int) (proc.File, error)
	ReadFile(path string) ([]byte, error)
}

// Clean makes p absolute and canonical.
func Clean(p string) string {
	return path.Clean("/" + p)
}

func splitPath(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}
