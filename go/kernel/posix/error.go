package posix

import (
	"github.com/pkg/errors"

	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/vfs"
)

// Errno maps a kernel-side error to the errno user code sees.
func Errno(err error) co.Errno {
	switch cause := errors.Cause(err).(type) {
	case co.Errno:
		return cause
	}
	switch errors.Cause(err) {
	case vfs.ErrNotExist:
		return co.ENOENT
	case vfs.ErrExist:
		return co.EEXIST
	case vfs.ErrIsDir:
		return co.EISDIR
	case vfs.ErrNotDir:
		return co.ENOTDIR
	case vfs.ErrPerm:
		return co.EACCES
	case proc.ErrBadFd:
		return co.EBADF
	case proc.ErrTooManyFiles:
		return co.EMFILE
	case proc.ErrNoCapacity:
		return co.EAGAIN
	case proc.ErrNoMemory:
		return co.ENOMEM
	case co.ErrStrTooLong:
		return co.ENAMETOOLONG
	case co.ErrArgsTooLong:
		return co.E2BIG
	}
	return co.EIO
}

func errRet(err error) int64 {
	return Errno(err).Ret()
}
