package posix

import (
	"encoding/binary"

	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	WNOHANG    = 1
	WUNTRACED  = 2
	WCONTINUED = 8

	// sizeof(struct rusage) on x86_64
	rusageSize = 144
)

// Wait4 reaps a zombie child. With nothing to reap yet it blocks by
// rewinding the caller's frame to the syscall instruction and giving up the
// CPU, so the call runs again from scratch once the caller is resumed.
func (k *Kernel) Wait4(pid int, status co.Ptr, options int, rusage co.Ptr) int64 {
	p := k.current()
	if options&^(WNOHANG|WUNTRACED|WCONTINUED) != 0 {
		return co.EINVAL.Ret()
	}
	if pid == 0 || pid < -1 {
		// no process groups
		return co.ENOSYS.Ret()
	}
	if status != 0 {
		if err := k.CheckUser(uint64(status), 4, cpu.PROT_WRITE); err != nil {
			return errRet(err)
		}
	}
	if rusage != 0 {
		if err := k.CheckUser(uint64(rusage), rusageSize, cpu.PROT_WRITE); err != nil {
			return errRet(err)
		}
	}
	wait := proc.WaitRecord{Pid: pid, Options: options}
	matched := false
	for _, c := range k.Table.Children(p.Pid) {
		if !wait.Matches(c.Pid) {
			continue
		}
		matched = true
		if c.State != proc.Zombie {
			continue
		}
		ws, err := k.reap(c, p.Pid)
		if err != nil {
			k.Log.Errorf("wait4: %v", err)
			continue
		}
		return k.waitResult(c.Pid, ws, status, rusage)
	}
	if !matched {
		return co.ECHILD.Ret()
	}
	if options&WNOHANG != 0 {
		return 0
	}

	k.Frame.Restart()
	k.NoReturn()
	p.Voluntary++
	if k.Config.WaitStrategy == models.WaitPoll {
		p.NotBefore = k.Sched.Ticks + uint64(k.Config.PollInterval)
		k.Sched.YieldCurrent()
	} else {
		p.State = proc.Sleeping
		p.Wait = &wait
		k.Sched.Schedule()
	}
	return 0
}

func (k *Kernel) waitResult(pid int, ws models.WaitStatus, status, rusage co.Ptr) int64 {
	if status != 0 {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(ws))
		if err := co.NewBuf(k, uint64(status)).Write(b[:]); err != nil {
			return errRet(err)
		}
	}
	if rusage != 0 {
		if err := co.NewBuf(k, uint64(rusage)).Write(make([]byte, rusageSize)); err != nil {
			return errRet(err)
		}
	}
	return int64(pid)
}
