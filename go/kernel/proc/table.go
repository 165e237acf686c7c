package proc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	KernelStackSize   = 8 << 10
	KernelStackStride = 16 << 10
	// pid of the init process
	InitPid = 1
)

var (
	ErrNoCapacity  = errors.New("process table full")
	ErrNotReapable = errors.New("process is not a reaped zombie")
	ErrNoProcess   = errors.New("no such process")
)

// KernelStack returns the kernel stack bounds for a table slot. Stacks are
// separated by unmapped guard space.
func KernelStack(slot int) (base, top uint64) {
	base = cpu.KernelSpace + uint64(slot)*KernelStackStride
	return base, base + KernelStackSize
}

// Table is the fixed-capacity process table. It is owned by the kernel's
// single execution stream and is not safe for concurrent use.
type Table struct {
	slots   []*Process
	byPid   map[int]*Process
	lastPid int
	pidMax  int
}

func NewTable(capacity, pidMax int) *Table {
	return &Table{
		slots:  make([]*Process, capacity),
		byPid:  make(map[int]*Process, capacity),
		pidMax: pidMax,
	}
}

func (t *Table) Cap() int { return len(t.slots) }
func (t *Table) Len() int { return len(t.byPid) }

func (t *Table) nextPid() (int, error) {
	pid := t.lastPid
	for i := 0; i < t.pidMax; i++ {
		pid++
		if pid > t.pidMax {
			// pid 1 belongs to init
			pid = 2
		}
		if _, used := t.byPid[pid]; !used {
			t.lastPid = pid
			return pid, nil
		}
	}
	return 0, ErrNoCapacity
}

// Alloc creates a New process in a free slot. On failure nothing changes.
func (t *Table) Alloc() (*Process, error) {
	slot := -1
	for i, p := range t.slots {
		if p == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, ErrNoCapacity
	}
	pid, err := t.nextPid()
	if err != nil {
		return nil, err
	}
	base, top := KernelStack(slot)
	p := &Process{
		Pid:   pid,
		State: New,
		slot:  slot,
		Context: Context{
			KSP:          top,
			KStackBase:   base,
			KStackTop:    top,
			AddressSpace: uint64(slot),
		},
	}
	t.slots[slot] = p
	t.byPid[pid] = p
	return p, nil
}

// Lookup returns nil for unknown pids.
func (t *Table) Lookup(pid int) *Process {
	return t.byPid[pid]
}

// Free removes a zombie whose status was consumed and marks it Terminated.
func (t *Table) Free(pid int) error {
	p, ok := t.byPid[pid]
	if !ok {
		return ErrNoProcess
	}
	if p.State != Zombie || !p.reaped {
		return errors.Wrapf(ErrNotReapable, "pid %d (%s)", pid, p.State)
	}
	p.State = Terminated
	delete(t.byPid, pid)
	t.slots[p.slot] = nil
	return nil
}

// Discard drops a process that never left New, undoing Alloc.
func (t *Table) Discard(pid int) error {
	p, ok := t.byPid[pid]
	if !ok {
		return ErrNoProcess
	}
	if p.State != New {
		return errors.Errorf("discard of pid %d in state %s", pid, p.State)
	}
	p.State = Terminated
	delete(t.byPid, pid)
	t.slots[p.slot] = nil
	return nil
}

// Each calls fn for every process in pid order.
func (t *Table) Each(fn func(p *Process)) {
	for _, p := range t.sorted() {
		fn(p)
	}
}

func (t *Table) sorted() []*Process {
	ps := make([]*Process, 0, len(t.byPid))
	for _, p := range t.byPid {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Pid < ps[j].Pid })
	return ps
}

// Children returns ppid's children in pid order.
func (t *Table) Children(ppid int) []*Process {
	var out []*Process
	for _, p := range t.sorted() {
		if p.Ppid == ppid {
			out = append(out, p)
		}
	}
	return out
}
