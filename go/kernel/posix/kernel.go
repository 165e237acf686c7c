package posix

import (
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/arch/x86_64"
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/kernel/sched"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
	"github.com/tinykern/proccore/go/models/trace"
	"github.com/tinykern/proccore/go/vfs"
)

// Kernel services the process syscalls. Its exported methods named after
// Linux syscalls are the handler table; everything else is lowercase or
// named so it cannot collide with a syscall.
type Kernel struct {
	co.KernelBase

	Cpu     cpu.Cpu
	Config  *models.Config
	Table   *proc.Table
	Sched   *sched.Scheduler
	Regions *proc.Memory
	FS      vfs.FS
	Tracer  *trace.Tracer

	// the trap being serviced. The run loop writes Frame back to FrameAddr
	// after dispatch.
	Frame     *x86_64.TrapFrame
	FrameAddr uint64

	initStatus models.WaitStatus
	initExited bool
}

var _ co.Kernel = (*Kernel)(nil)

// NewKernel maps a kernel stack for every table slot and builds the
// handler table.
func NewKernel(c cpu.Cpu, fs vfs.FS, cfg *models.Config, log *models.Logger) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{Cpu: c, Config: cfg, FS: fs}
	k.Log = log
	k.Strsize = cfg.Strsize
	k.Table = proc.NewTable(cfg.MaxProcs, cfg.PidMax)
	for slot := 0; slot < cfg.MaxProcs; slot++ {
		base, _ := proc.KernelStack(slot)
		if err := c.MemMapProt(base, proc.KernelStackSize, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
			return nil, errors.Wrapf(err, "mapping kernel stack %d", slot)
		}
	}
	k.Sched = sched.New(k.Table, c.Control())
	k.Sched.Log = log
	k.Sched.OnSwitch = func(from, to *proc.Process) {
		if from == to {
			return
		}
		prev := 0
		if from != nil {
			prev = from.Pid
		}
		k.Tracer.Emit(trace.EvSwitch, to.Pid, int64(prev))
	}
	// an image and a stack per process, plus a fork in flight
	k.Regions = proc.NewMemory(c, 2*cfg.MaxProcs+2)
	co.Init(k, c)
	return k, nil
}

func (k *Kernel) current() *proc.Process {
	return k.Sched.Current()
}

// InitStatus is pid 1's wait status, once it exited.
func (k *Kernel) InitStatus() (models.WaitStatus, bool) {
	return k.initStatus, k.initExited
}

// SavedFrame returns p's saved frame and its address. For the process whose
// trap is being serviced that is the live Frame.
func (k *Kernel) SavedFrame(p *proc.Process) (*x86_64.TrapFrame, uint64, error) {
	if p == k.current() && k.Frame != nil {
		return k.Frame, k.FrameAddr, nil
	}
	addr := p.Context.KStackTop - x86_64.FrameSize
	f, err := x86_64.ReadFrame(k.Cpu, addr)
	return f, addr, err
}
