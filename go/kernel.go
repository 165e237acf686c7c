// Package proccore boots a KX machine and runs the process core on it:
// trap capture, syscall dispatch, preemption and signal delivery.
package proccore

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/arch/x86_64"
	"github.com/tinykern/proccore/go/kernel/posix"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/trace"
	"github.com/tinykern/proccore/go/vfs"
)

// Kernel is the single kernel instance. It is created before any process
// and owns the machine, the process table and the scheduler.
type Kernel struct {
	*posix.Kernel

	Task  *Task
	Entry x86_64.TrapEntry
	// instructions retired by user code
	Steps uint64

	sliceLeft uint64
	slicePid  int
	stopped   int32
	halted    bool
}

func New(cfg *models.Config, fs vfs.FS) (*Kernel, error) {
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arch := x86_64.Arch
	c, err := arch.Cpu.New()
	if err != nil {
		return nil, errors.Wrap(err, "creating cpu")
	}
	entry, err := x86_64.EntryByName(cfg.Entry)
	if err != nil {
		return nil, err
	}
	entry.Install(c)
	pk, err := posix.NewKernel(c, fs, cfg, models.LoggerFor(cfg))
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		Kernel:    pk,
		Task:      NewTask(c, arch),
		Entry:     entry,
		sliceLeft: cfg.SliceSteps(),
	}
	if cfg.Tracefile != "" {
		if err := k.openTrace(cfg.Tracefile); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (k *Kernel) openTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating trace file")
	}
	w, err := trace.NewWriter(f, trace.TraceHeader{
		Entry:      k.Entry.Name(),
		SliceSteps: k.Config.SliceSteps(),
		MaxProcs:   uint32(k.Config.MaxProcs),
	})
	if err != nil {
		f.Close()
		return err
	}
	k.Tracer = &trace.Tracer{W: w, Clock: func() uint64 { return k.Sched.Ticks }}
	return nil
}

// Boot loads path from the filesystem as pid 1.
func (k *Kernel) Boot(path string, argv, env []string) (*proc.Process, error) {
	if len(argv) == 0 {
		argv = []string{path}
	}
	return k.BootInit(path, argv, env)
}

// Stop asks Run to return at the next trap boundary. It is the only method
// safe to call from another goroutine.
func (k *Kernel) Stop() {
	atomic.StoreInt32(&k.stopped, 1)
}

func (k *Kernel) Halted() bool {
	return k.halted
}

// Resumed is the process whose user registers are on the cpu: the last one
// returned to, nil before the first resume or once it has been reaped.
func (k *Kernel) Resumed() *proc.Process {
	if k.slicePid == 0 {
		return nil
	}
	return k.Table.Lookup(k.slicePid)
}

// Shutdown flushes the trace and releases the machine.
func (k *Kernel) Shutdown() error {
	err := k.Tracer.Close()
	if cerr := k.Task.Close(); err == nil {
		err = cerr
	}
	return err
}
