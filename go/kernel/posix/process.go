package posix

import (
	"github.com/tinykern/proccore/go/arch/x86_64"
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models/trace"
)

// rebase moves a pointer into the parent's stack to the same offset in the
// child's copy.
func rebase(addr uint64, from, to *proc.Region) uint64 {
	if addr >= from.Base && addr <= from.Top() {
		return addr - from.Base + to.Base
	}
	return addr
}

// Fork creates a child that resumes at ret, the instruction after the
// parent's syscall, with 0 in rax. The image is shared and the stack copied.
func (k *Kernel) Fork(ret co.ReturnAddr) int64 {
	parent := k.current()
	child, err := k.Table.Alloc()
	if err != nil {
		k.Log.Debugf("fork from pid %d: %v", parent.Pid, err)
		return co.EAGAIN.Ret()
	}
	stack, err := k.Regions.Copy(parent.Stack, parent.Stack.Desc)
	if err != nil {
		k.Log.Debugf("fork from pid %d: %v", parent.Pid, err)
		k.Table.Discard(child.Pid)
		return co.EAGAIN.Ret()
	}
	frame := *k.Frame
	frame.Rip = uint64(ret)
	frame.Rax = 0
	frame.Rsp = rebase(frame.Rsp, parent.Stack, stack)
	frame.Rbp = rebase(frame.Rbp, parent.Stack, stack)
	ksp := child.Context.KStackTop - x86_64.FrameSize
	if err := x86_64.WriteFrame(k.Cpu, ksp, &frame); err != nil {
		k.Log.Errorf("fork from pid %d: %v", parent.Pid, err)
		k.Regions.Release(stack)
		k.Table.Discard(child.Pid)
		return co.EAGAIN.Ret()
	}
	child.Context.KSP = ksp
	child.Ppid = parent.Pid
	child.Creds = parent.Creds
	child.Name = parent.Name
	child.Args = append([]string(nil), parent.Args...)
	child.Image = k.Regions.Ref(parent.Image)
	child.Stack = stack
	child.Files = parent.Files.Clone()
	child.Started = k.Sched.Ticks

	child.State = proc.Ready
	if err := k.Sched.EnqueueReady(child.Pid); err != nil {
		k.Log.Errorf("fork: %v", err)
	}
	k.Tracer.Emit(trace.EvFork, parent.Pid, int64(child.Pid))
	k.Log.Debugf("fork %d -> %d, child resumes at %#x", parent.Pid, child.Pid, uint64(ret))
	return int64(child.Pid)
}

func (k *Kernel) Getpid() int {
	return k.current().Pid
}

func (k *Kernel) Getppid() int {
	return k.current().Ppid
}
