package posix

import (
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
	"github.com/tinykern/proccore/go/models/trace"
)

func (k *Kernel) Kill(pid, sig int) int64 {
	if sig < 0 || sig >= proc.NSIG {
		return co.EINVAL.Ret()
	}
	if pid <= 0 {
		// no process groups or broadcast
		return co.EINVAL.Ret()
	}
	target := k.Table.Lookup(pid)
	if target == nil || target.State == proc.Terminated {
		return co.ESRCH.Ret()
	}
	if !mayKill(k.current().Creds, target.Creds) {
		return co.EPERM.Ret()
	}
	if sig == 0 || target.State == proc.Zombie {
		return 0
	}
	k.PostSignal(target, sig)
	return 0
}

func mayKill(from, to proc.Creds) bool {
	if from.Root() {
		return true
	}
	for _, a := range []int{from.Ruid, from.Euid} {
		if a == to.Ruid || a == to.Euid {
			return true
		}
	}
	return false
}

// PostSignal marks sig pending on p. A sleeping p is woken so the signal is
// acted on when it next resumes.
func (k *Kernel) PostSignal(p *proc.Process, sig int) {
	if !p.Alive() {
		return
	}
	p.Pending.Add(sig)
	if p.State == proc.Sleeping {
		k.wake(p)
	}
	k.Log.Debugf("signal %s pending on pid %d", co.SignalName(sig), p.Pid)
}

// DeliverSignals runs the default action for p's pending signals. It is
// called right before p resumes user code and reports whether p may still
// run.
func (k *Kernel) DeliverSignals(p *proc.Process) bool {
	for sig := p.Pending.Next(); sig != 0; sig = p.Pending.Next() {
		if proc.DefaultIgnored(sig) {
			continue
		}
		k.Tracer.Emit(trace.EvSignal, p.Pid, int64(sig))
		k.Log.Debugf("pid %d killed by %s", p.Pid, co.SignalName(sig))
		k.terminate(p, models.SignaledStatus(sig))
		return false
	}
	return true
}

var faultSignals = map[int]int{
	cpu.VEC_DE: proc.SIGFPE,
	cpu.VEC_BP: proc.SIGTRAP,
	cpu.VEC_UD: proc.SIGILL,
	cpu.VEC_GP: proc.SIGSEGV,
	cpu.VEC_PF: proc.SIGSEGV,
}

// UserFault turns a CPU exception raised by user code into a signal for the
// current process.
func (k *Kernel) UserFault(vector int, addr uint64) {
	p := k.current()
	sig, ok := faultSignals[vector]
	if !ok {
		sig = proc.SIGSEGV
	}
	k.Tracer.Emit(trace.EvFault, p.Pid, int64(vector), int64(addr))
	k.Log.Infof("pid %d: %s at %#x, raising %s", p.Pid, cpu.VectorName(vector), addr, co.SignalName(sig))
	k.PostSignal(p, sig)
}
