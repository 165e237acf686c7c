package proccore

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/arch/x86_64"
	"github.com/tinykern/proccore/go/models"
)

var (
	ErrStopped    = errors.New("kernel stopped")
	ErrAllBlocked = errors.New("every process is blocked")
	ErrStepLimit  = errors.New("instruction limit reached")
)

// Fatal is a condition the kernel cannot recover from. User code is never
// resumed after one.
type Fatal struct {
	Reason string
	Err    error
	// pid running when it happened, 0 for none
	Pid   int
	Frame *x86_64.TrapFrame
	Regs  []models.RegVal
}

func (f *Fatal) Error() string {
	msg := "kernel fatal: " + f.Reason
	if f.Pid != 0 {
		msg += fmt.Sprintf(" (pid %d)", f.Pid)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fatal) Cause() error { return f.Err }

func (k *Kernel) fatal(reason string, err error) error {
	f := &Fatal{Reason: reason, Err: err, Frame: k.Frame}
	if p := k.Sched.Current(); p != nil {
		f.Pid = p.Pid
	}
	if fe, ok := errors.Cause(err).(*x86_64.FrameError); ok && f.Frame == nil {
		f.Frame = fe.Frame
	}
	f.Regs, _ = k.Task.RegDump()
	k.Log.Errorf("%v", f)
	k.halted = true
	return f
}
