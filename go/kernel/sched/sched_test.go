package sched

import (
	"testing"

	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models/cpu"
)

func setup(t *testing.T, n int) (*Scheduler, *cpu.Control, []*proc.Process) {
	tab := proc.NewTable(8, 100)
	ctl := &cpu.Control{}
	s := New(tab, ctl)
	var ps []*proc.Process
	for i := 0; i < n; i++ {
		p, err := tab.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		p.Context.KSP = p.Context.KStackTop - 0xa8
		p.State = proc.Ready
		if err := s.EnqueueReady(p.Pid); err != nil {
			t.Fatal(err)
		}
		ps = append(ps, p)
	}
	return s, ctl, ps
}

func TestFifo(t *testing.T) {
	s, _, ps := setup(t, 3)
	for _, want := range ps {
		p, ok := s.PickNext()
		if !ok || p != want {
			t.Fatalf("picked %v, expecting %v", p, want)
		}
	}
	if p, ok := s.PickNext(); ok {
		t.Fatalf("picked %v from an empty queue", p)
	}
}

func TestEnqueueRequiresReady(t *testing.T) {
	s, _, ps := setup(t, 1)
	ps[0].State = proc.Sleeping
	s.PickNext()
	if err := s.EnqueueReady(ps[0].Pid); err == nil {
		t.Fatal("enqueued a sleeping process")
	}
	if err := s.EnqueueReady(99); err == nil {
		t.Fatal("enqueued an unknown pid")
	}
}

func TestPickSkipsStale(t *testing.T) {
	s, _, ps := setup(t, 3)
	ps[0].State = proc.Sleeping
	ps[1].State = proc.Zombie
	p, ok := s.PickNext()
	if !ok || p != ps[2] {
		t.Fatalf("picked %v", p)
	}
	if len(s.Queued()) != 0 {
		t.Fatalf("stale entries left: %v", s.Queued())
	}
}

func TestSwitch(t *testing.T) {
	s, ctl, ps := setup(t, 2)
	a, b := ps[0], ps[1]
	if err := s.Schedule(); err != nil {
		t.Fatal(err)
	}
	if s.Current() != a || a.State != proc.Running {
		t.Fatalf("current %v", s.Current())
	}
	if ctl.KSP != a.Context.KSP || ctl.RSP0 != a.Context.KStackTop || ctl.CR3 != a.Context.AddressSpace {
		t.Fatalf("machine not loaded from pid %d: %+v", a.Pid, ctl)
	}
	ctl.KSP = 0x1234
	if err := s.YieldCurrent(); err != nil {
		t.Fatal(err)
	}
	if s.Current() != b || a.State != proc.Ready || b.State != proc.Running {
		t.Fatalf("yield: current %v, a %s", s.Current(), a.State)
	}
	if a.Context.KSP != 0x1234 {
		t.Fatalf("outgoing KSP not saved: %#x", a.Context.KSP)
	}
	if q := s.Queued(); len(q) != 1 || q[0] != a.Pid {
		t.Fatalf("queue %v", q)
	}
	if s.Switches != 2 {
		t.Fatalf("%d switches", s.Switches)
	}
	if err := s.SwitchTo(&proc.Process{Pid: 50, State: proc.Sleeping}); err == nil {
		t.Fatal("switched to a sleeping process")
	}
}

func TestIdle(t *testing.T) {
	s, ctl, ps := setup(t, 1)
	s.Schedule()
	before := *ctl
	// the only process yields with nobody else around and keeps running
	if err := s.YieldCurrent(); err != nil || s.Current() != ps[0] {
		t.Fatalf("solo yield: %v, current %v", err, s.Current())
	}
	ps[0].State = proc.Sleeping
	if err := s.Schedule(); err != ErrIdle {
		t.Fatalf("got %v, expecting ErrIdle", err)
	}
	if s.Current() != nil {
		t.Fatal("blocked process left current")
	}
	if *ctl != before {
		t.Fatal("idle path touched the machine")
	}
	// wake it up again
	ps[0].State = proc.Ready
	s.EnqueueReady(ps[0].Pid)
	if err := s.Schedule(); err != nil || s.Current() != ps[0] {
		t.Fatalf("wake: %v", err)
	}
}

func TestRoundRobin(t *testing.T) {
	s, _, ps := setup(t, 3)
	s.Schedule()
	var order []int
	for i := 0; i < 9; i++ {
		order = append(order, s.Current().Pid)
		s.YieldCurrent()
	}
	for i, pid := range order {
		if pid != ps[i%3].Pid {
			t.Fatalf("run order %v", order)
		}
	}
}

func TestPollDeferral(t *testing.T) {
	s, _, ps := setup(t, 2)
	ps[0].NotBefore = 2
	p, _ := s.PickNext()
	if p != ps[1] {
		t.Fatalf("picked deferred pid %d", p.Pid)
	}
	if q := s.Queued(); len(q) != 1 || q[0] != ps[0].Pid {
		t.Fatalf("deferred process dropped: %v", q)
	}
	// everyone deferred: take the front anyway
	p, ok := s.PickNext()
	if !ok || p != ps[0] {
		t.Fatal("all-deferred queue returned nothing")
	}
	s.Tick()
	s.Tick()
	if s.deferred(ps[0]) {
		t.Fatal("still deferred after the interval")
	}
}
