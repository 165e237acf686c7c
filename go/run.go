package proccore

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/arch/x86_64"
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/kernel/sched"
	"github.com/tinykern/proccore/go/models/cpu"
	"github.com/tinykern/proccore/go/models/trace"
)

// Run services traps until no process is left. It returns init's exit
// status as a models.ExitStatus when it was not zero, a *Fatal when the
// kernel could not go on, or ErrStopped/ctx.Err() when asked to stop.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		if atomic.LoadInt32(&k.stopped) != 0 {
			return ErrStopped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		halted, err := k.Step()
		if err != nil {
			return err
		}
		if halted {
			return k.exitResult()
		}
	}
}

func (k *Kernel) exitResult() error {
	status, ok := k.InitStatus()
	if !ok || status.ExitStatus() == 0 {
		return nil
	}
	return status.ExitStatus()
}

// Step resumes the current process until its next trap and services that
// trap. It reports true once the machine halted: every process is gone.
func (k *Kernel) Step() (halted bool, err error) {
	if k.halted {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			halted, err = true, k.fatal("kernel panic", errors.Errorf("%v\n%s", r, debug.Stack()))
		}
	}()
	if k.Table.Len() == 0 {
		k.halted = true
		k.Tracer.Emit(trace.EvHalt, 0)
		k.Log.Debugf("no processes left, halting after %d ticks", k.Sched.Ticks)
		return true, nil
	}
	p := k.Sched.Current()
	if p == nil || !p.Runnable() {
		if err := k.Sched.Schedule(); err == sched.ErrIdle {
			return false, k.idle()
		} else if err != nil {
			return true, k.fatal("schedule", err)
		}
		p = k.Sched.Current()
	}
	if p.NotBefore > k.Sched.Ticks {
		// a polling waiter with nothing else to run waits out its interval
		k.Sched.Idle()
		return false, nil
	}
	p.NotBefore = 0
	if !k.DeliverSignals(p) {
		return false, nil
	}
	if k.Config.MaxSteps > 0 && k.Steps >= k.Config.MaxSteps {
		return true, ErrStepLimit
	}

	if p.Pid != k.slicePid {
		// whoever gets the cpu starts a full slice
		k.slicePid = p.Pid
		k.sliceLeft = k.Config.SliceSteps()
	}
	if _, err := x86_64.ReturnFromTrap(k.Task); err != nil {
		return true, k.fatal("return to user mode", err)
	}
	t, err := k.Task.Run(k.sliceLeft)
	k.Steps += t.Steps
	k.sliceLeft -= t.Steps
	if err != nil {
		return true, k.fatal("cpu", err)
	}
	return false, k.trap(p, t)
}

// idle halts the CPU for one tick. Nothing is Ready, so unless a process
// is still able to run this can never end.
func (k *Kernel) idle() error {
	k.Sched.Idle()
	k.Tracer.Emit(trace.EvIdle, 0)
	blocked := true
	k.Table.Each(func(p *proc.Process) {
		if p.Runnable() {
			blocked = false
		}
	})
	if blocked {
		k.Log.Errorf("deadlock: %d processes, none runnable", k.Table.Len())
		return ErrAllBlocked
	}
	return nil
}

// trap captures the frame, hands the trap to its handler and writes the
// frame back to the kernel stack it came from. The scheduler may have
// switched away by then; the next resume returns to whatever is current.
func (k *Kernel) trap(p *proc.Process, t cpu.Trap) error {
	frame, addr, err := x86_64.Capture(k.Task, t)
	if err != nil {
		return k.fatal("trap entry", err)
	}
	k.Frame, k.FrameAddr = frame, addr
	defer func() { k.Frame = nil }()

	switch {
	case t.Kind == cpu.TRAP_SYSCALL || t.Vector == cpu.VEC_SYS:
		k.syscall(p, frame)
	case t.Vector == cpu.VEC_TIMER:
		k.sliceLeft = k.Config.SliceSteps()
		k.Sched.Tick()
		p.Involuntary++
		if err := k.Sched.YieldCurrent(); err != nil && err != sched.ErrIdle {
			return k.fatal("preempt", err)
		}
	default:
		at := frame.Rip
		if t.Vector == cpu.VEC_PF {
			at = t.Addr
		}
		k.UserFault(t.Vector, at)
	}
	if err := x86_64.WriteFrame(k.Task, addr, frame); err != nil {
		return k.fatal("saving trap frame", err)
	}
	return nil
}

func (k *Kernel) syscall(p *proc.Process, f *x86_64.TrapFrame) {
	nr := f.OrigRax
	args := f.Args()
	p.Syscalls++
	var line string
	if k.Config.TraceSys {
		line = k.StraceCall(p.Pid, nr, args)
	}
	ret, write := k.Dispatch(nr, args, co.ReturnAddr(f.Rip))
	if write {
		f.Rax = uint64(ret)
	}
	if k.Config.TraceSys {
		fmt.Fprintf(k.Config.Output, "%s%s\n", line, k.StraceRet(nr, args, ret, write))
	}
	k.Tracer.Emit(trace.EvSyscall, p.Pid, int64(nr), ret)
}
