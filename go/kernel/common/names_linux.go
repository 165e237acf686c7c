package common

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrnoName uses the host's names, which match the guest numbering on Linux.
func ErrnoName(e Errno) string {
	if name := unix.ErrnoName(syscall.Errno(e)); name != "" {
		return name
	}
	return tableErrnoName(e)
}

func SignalName(sig int) string {
	if name := unix.SignalName(syscall.Signal(sig)); name != "" {
		return name
	}
	return tableSignalName(sig)
}
