package posix

import (
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models/trace"
	"github.com/tinykern/proccore/go/vfs"
)

const ConsolePath = "/dev/console"

// BootInit creates pid 1 from path without a parent to fork it. Its stdio
// is the console when the filesystem has one.
func (k *Kernel) BootInit(path string, argv, envv []string) (*proc.Process, error) {
	if k.Table.Len() > 0 {
		return nil, errors.New("init already running")
	}
	img, err := k.loadImage(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	p, err := k.Table.Alloc()
	if err != nil {
		return nil, err
	}
	if p.Pid != proc.InitPid {
		k.Table.Discard(p.Pid)
		return nil, errors.Errorf("init got pid %d", p.Pid)
	}
	if err := k.exec(p, path, img, argv, envv); err != nil {
		k.Table.Discard(p.Pid)
		return nil, errors.Wrap(err, "exec init")
	}
	if f, err := k.FS.Open(ConsolePath, vfs.O_RDWR); err == nil {
		p.Files.Install(proc.NewOpenFile(f, ConsolePath, vfs.O_RDWR), false)
		p.Files.Dup(0)
		p.Files.Dup(0)
	} else {
		k.Log.Warnf("init has no stdio: %v", err)
	}
	p.Started = k.Sched.Ticks
	p.State = proc.Ready
	if err := k.Sched.EnqueueReady(p.Pid); err != nil {
		return nil, err
	}
	k.Tracer.Emit(trace.EvBoot, p.Pid)
	k.Log.Debugf("booted %s as pid %d", path, p.Pid)
	return p, nil
}
