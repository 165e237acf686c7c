package models

import "fmt"

// ExitStatus is returned by the run loop when init has exited.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("exit %d", e)
}

// WaitStatus is a POSIX wait status as written by wait4.
type WaitStatus uint32

func ExitedStatus(code int) WaitStatus { return WaitStatus(code&0xff) << 8 }
func SignaledStatus(sig int) WaitStatus { return WaitStatus(sig & 0x7f) }
func (w WaitStatus) Exited() bool { return w&0x7f == 0 }
func (w WaitStatus) ExitCode() int { return int(w>>8) & 0xff }
func (w WaitStatus) Signaled() bool { return w&0x7f != 0 && w&0x7f != 0x7f }
func (w WaitStatus) Signal() int { return int(w & 0x7f) }

// ExitStatus converts to a shell-style status: the code, or 128+signal.
func (w WaitStatus) ExitStatus() ExitStatus {
	if w.Signaled() {
		return ExitStatus(128 + w.Signal())
	}
	return ExitStatus(w.ExitCode())
}

func (w WaitStatus) String() string {
	if w.Signaled() {
		return fmt.Sprintf("killed by signal %d", w.Signal())
	}
	return fmt.Sprintf("exited %d", w.ExitCode())
}
