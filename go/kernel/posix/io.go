package posix

import (
	"io"

	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models/cpu"
	"github.com/tinykern/proccore/go/vfs"
)

// largest single read or write
const maxIO = 1 << 16

func ioErr(err error) int64 {
	if err == vfs.ErrPerm {
		// wrong access mode for the description
		return co.EBADF.Ret()
	}
	return errRet(err)
}

func (k *Kernel) Read(fd co.Fd, buf co.Obuf, size co.Len) int64 {
	f, err := k.current().Files.Get(int(fd))
	if err != nil {
		return errRet(err)
	}
	if size > maxIO {
		size = maxIO
	}
	if err := buf.Check(uint64(size), cpu.PROT_WRITE); err != nil {
		return errRet(err)
	}
	tmp := make([]byte, size)
	n, err := f.Read(tmp)
	if err != nil && err != io.EOF {
		return ioErr(err)
	}
	if err := buf.Write(tmp[:n]); err != nil {
		return errRet(err)
	}
	return int64(n)
}

func (k *Kernel) Write(fd co.Fd, buf co.Buf, size co.Len) int64 {
	f, err := k.current().Files.Get(int(fd))
	if err != nil {
		return errRet(err)
	}
	if size > maxIO {
		size = maxIO
	}
	tmp, err := buf.Read(uint64(size))
	if err != nil {
		return errRet(err)
	}
	n, err := f.Write(tmp)
	if err != nil {
		return ioErr(err)
	}
	return int64(n)
}

func (k *Kernel) Open(path string, flags, mode int) int64 {
	f, err := k.FS.Open(path, flags)
	if err != nil {
		return errRet(err)
	}
	fd, err := k.current().Files.Install(proc.NewOpenFile(f, path, flags), flags&vfs.O_CLOEXEC != 0)
	if err != nil {
		f.Close()
		return errRet(err)
	}
	return int64(fd)
}

func (k *Kernel) Close(fd co.Fd) int64 {
	if err := k.current().Files.Close(int(fd)); err != nil {
		return errRet(err)
	}
	return 0
}

func (k *Kernel) Dup(fd co.Fd) int64 {
	nfd, err := k.current().Files.Dup(int(fd))
	if err != nil {
		return errRet(err)
	}
	return int64(nfd)
}
