package posix

import (
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/trace"
)

// terminate turns p into a zombie. Every way out of a process (exit,
// exit_group, a fatal signal) ends here.
func (k *Kernel) terminate(p *proc.Process, status models.WaitStatus) {
	if err := p.SetExitStatus(status); err != nil {
		k.Log.Errorf("%v", err)
		return
	}
	p.Files.CloseAll()
	for _, r := range []*proc.Region{p.Image, p.Stack} {
		if err := k.Regions.Release(r); err != nil {
			k.Log.Errorf("pid %d: %v", p.Pid, err)
		}
	}
	p.Image, p.Stack = nil, nil
	p.Wait = nil
	p.Pending = 0
	p.State = proc.Zombie
	k.Tracer.Emit(trace.EvExit, p.Pid, int64(status))
	if p.Pid == proc.InitPid {
		k.initStatus, k.initExited = status, true
		k.Log.Warnf("init exited with %s", status)
	} else {
		k.Log.Debugf("pid %d exited with %s", p.Pid, status)
	}

	for _, c := range k.Table.Children(p.Pid) {
		if p.Pid != proc.InitPid {
			c.Ppid = proc.InitPid
		}
		if c.State == proc.Zombie {
			k.notifyParent(c)
		}
	}
	k.notifyParent(p)
	if p == k.current() {
		// ErrIdle is fine, the run loop idles
		k.Sched.Schedule()
	}
}

// notifyParent tells a zombie's parent it can be reaped. Zombies nobody can
// wait for any more are reaped on the spot.
func (k *Kernel) notifyParent(c *proc.Process) {
	parent := k.Table.Lookup(c.Ppid)
	if parent == nil || !parent.Alive() {
		if _, err := k.reap(c, 0); err != nil {
			k.Log.Errorf("auto-reap pid %d: %v", c.Pid, err)
		}
		return
	}
	if parent.State == proc.Sleeping && parent.Wait != nil && parent.Wait.Matches(c.Pid) {
		k.wake(parent)
	}
}

func (k *Kernel) wake(p *proc.Process) {
	p.Wait = nil
	p.State = proc.Ready
	if err := k.Sched.EnqueueReady(p.Pid); err != nil {
		k.Log.Errorf("wake pid %d: %v", p.Pid, err)
	}
}

// reap consumes c's status and frees its slot.
func (k *Kernel) reap(c *proc.Process, by int) (models.WaitStatus, error) {
	status, err := c.TakeExitStatus()
	if err != nil {
		return 0, err
	}
	if err := k.Table.Free(c.Pid); err != nil {
		return 0, err
	}
	k.Tracer.Emit(trace.EvReap, by, int64(c.Pid), int64(status))
	k.Log.Tracef("reaped pid %d (%s)", c.Pid, status)
	return status, nil
}

func (k *Kernel) Exit(code int) int64 {
	k.terminate(k.current(), models.ExitedStatus(code))
	k.NoReturn()
	return 0
}

func (k *Kernel) ExitGroup(code int) int64 {
	return k.Exit(code)
}
