package sched

import (
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
)

// ErrIdle means nothing is runnable. The caller idles the CPU until the
// next tick; it must not resume anything.
var ErrIdle = errors.New("sched: no runnable process")

type Stats struct {
	Switches  uint64
	IdleTicks uint64
	Ticks     uint64
}

// Scheduler is a round-robin scheduler over a FIFO ready queue. It is the
// only code that changes which process is current.
type Scheduler struct {
	table *proc.Table
	ctl   *cpu.Control

	queue   []int
	head    int
	count   int
	current *proc.Process

	Stats
	Log *models.Logger
	// called after every switch, for tracing
	OnSwitch func(from, to *proc.Process)
}

func New(table *proc.Table, ctl *cpu.Control) *Scheduler {
	return &Scheduler{
		table: table,
		ctl:   ctl,
		queue: make([]int, table.Cap()),
	}
}

func (s *Scheduler) Current() *proc.Process { return s.current }

// Queued returns the ready queue front to back.
func (s *Scheduler) Queued() []int {
	out := make([]int, s.count)
	for i := range out {
		out[i] = s.queue[(s.head+i)%len(s.queue)]
	}
	return out
}

func (s *Scheduler) push(pid int) error {
	if s.count == len(s.queue) {
		return errors.Errorf("sched: ready queue full enqueueing pid %d", pid)
	}
	s.queue[(s.head+s.count)%len(s.queue)] = pid
	s.count++
	return nil
}

func (s *Scheduler) pop() int {
	pid := s.queue[s.head]
	s.head = (s.head + 1) % len(s.queue)
	s.count--
	return pid
}

func (s *Scheduler) queued(pid int) bool {
	for _, q := range s.Queued() {
		if q == pid {
			return true
		}
	}
	return false
}

// EnqueueReady appends pid to the back of the queue. The caller sets Ready first.
func (s *Scheduler) EnqueueReady(pid int) error {
	p := s.table.Lookup(pid)
	if p == nil {
		return errors.Wrapf(proc.ErrNoProcess, "sched: enqueue pid %d", pid)
	}
	if p.State != proc.Ready {
		return errors.Errorf("sched: enqueue of pid %d in state %s", pid, p.State)
	}
	if s.queued(pid) {
		return nil
	}
	return s.push(pid)
}

func (s *Scheduler) deferred(p *proc.Process) bool {
	return p.NotBefore > s.Ticks
}

// PickNext pops the first Ready process. Entries that stopped being Ready
// while queued are dropped. A process deferred by a poll interval goes to
// the back unless every queued process is deferred.
func (s *Scheduler) PickNext() (*proc.Process, bool) {
	allDeferred := true
	for _, pid := range s.Queued() {
		if p := s.table.Lookup(pid); p != nil && p.State == proc.Ready && !s.deferred(p) {
			allDeferred = false
			break
		}
	}
	for n := s.count; n > 0; n-- {
		p := s.table.Lookup(s.pop())
		if p == nil || p.State != proc.Ready {
			continue
		}
		if s.deferred(p) && !allDeferred {
			s.push(p.Pid)
			continue
		}
		return p, true
	}
	return nil, false
}

// SwitchTo saves the outgoing kernel stack pointer and loads the incoming
// process's kernel stack, TSS.RSP0 and address space. A Running outgoing
// process becomes Ready; queueing it is the caller's job.
func (s *Scheduler) SwitchTo(p *proc.Process) error {
	if p.State != proc.Ready && p != s.current {
		return errors.Errorf("sched: switch to pid %d in state %s", p.Pid, p.State)
	}
	prev := s.current
	if prev != p {
		if prev != nil {
			prev.Context.KSP = s.ctl.KSP
			if prev.State == proc.Running {
				prev.State = proc.Ready
			}
		}
		s.ctl.KSP = p.Context.KSP
		s.ctl.RSP0 = p.Context.KStackTop
		s.ctl.CR3 = p.Context.AddressSpace
		s.Switches++
		p.Switches++
		s.current = p
	}
	p.State = proc.Running
	if s.Log.Enabled(models.LogTrace) {
		from := "none"
		if prev != nil {
			from = prev.String()
		}
		s.Log.Tracef("switch %s -> %s", from, p)
	}
	if s.OnSwitch != nil {
		s.OnSwitch(prev, p)
	}
	return nil
}

// Schedule switches to the next Ready process. It is used when the current
// process blocked or exited. With nothing Ready it returns ErrIdle, leaves
// the machine untouched, and keeps current only if it can still run.
func (s *Scheduler) Schedule() error {
	p, ok := s.PickNext()
	if !ok {
		if s.current != nil && !s.current.Runnable() {
			s.current.Context.KSP = s.ctl.KSP
			s.current = nil
		}
		return ErrIdle
	}
	return s.SwitchTo(p)
}

// YieldCurrent puts current at the back of the queue and switches to the
// front, which may be current again.
func (s *Scheduler) YieldCurrent() error {
	if cur := s.current; cur != nil && cur.Runnable() {
		cur.State = proc.Ready
		if err := s.EnqueueReady(cur.Pid); err != nil {
			return err
		}
	}
	return s.Schedule()
}

// Tick counts a timer interrupt.
func (s *Scheduler) Tick() { s.Ticks++ }

// Idle counts a tick spent with nothing to run.
func (s *Scheduler) Idle() {
	s.Ticks++
	s.IdleTicks++
}
