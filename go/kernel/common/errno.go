package common

import (
	"github.com/pkg/errors"
)

// Errno is a Linux error number. Handlers return it negated.
type Errno int64

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	ESRCH        Errno = 3
	EINTR        Errno = 4
	EIO          Errno = 5
	E2BIG        Errno = 7
	ENOEXEC      Errno = 8
	EBADF        Errno = 9
	ECHILD       Errno = 10
	EAGAIN       Errno = 11
	ENOMEM       Errno = 12
	EACCES       Errno = 13
	EFAULT       Errno = 14
	EEXIST       Errno = 17
	ENOTDIR      Errno = 20
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	EMFILE       Errno = 24
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
)

// Kind groups errnos by what went wrong.
type Kind int

const (
	KindOther Kind = iota
	ResourceExhausted
	NotFound
	InvalidArgument
	PermissionDenied
	WouldBlock
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	ResourceExhausted: "resource exhausted",
	NotFound:          "not found",
	InvalidArgument:   "invalid argument",
	PermissionDenied:  "permission denied",
	WouldBlock:        "would block",
}

func (k Kind) String() string { return kindNames[k] }

func (e Errno) Kind() Kind {
	switch e {
	case EAGAIN, ENOMEM, EMFILE:
		return ResourceExhausted
	case ECHILD, ESRCH, ENOENT, EBADF:
		return NotFound
	case EINVAL, ENOEXEC, E2BIG, EFAULT, ENAMETOOLONG, ENOTDIR, EISDIR:
		return InvalidArgument
	case EPERM, EACCES:
		return PermissionDenied
	}
	return KindOther
}

func (e Errno) Error() string { return ErrnoName(e) }

// Ret is the value a handler returns for this error.
func (e Errno) Ret() int64 { return -int64(e) }

// AsErrno decodes a handler result. ok is false for successes.
func AsErrno(ret int64) (Errno, bool) {
	if ret < 0 && ret >= -4095 {
		return Errno(-ret), true
	}
	return 0, false
}

// ArgErrno picks the errno for an argument that could not be decoded.
func ArgErrno(err error) Errno {
	switch cause := errors.Cause(err); cause {
	case ErrStrTooLong:
		return ENAMETOOLONG
	case ErrArgsTooLong:
		return E2BIG
	default:
		if e, ok := cause.(Errno); ok {
			return e
		}
	}
	return EFAULT
}
