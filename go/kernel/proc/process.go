package proc

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models"
)

type State int

const (
	New State = iota
	Ready
	Running
	Sleeping
	Zombie
	Terminated
)

var stateNames = []string{"new", "ready", "running", "sleeping", "zombie", "terminated"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Letter is the one character ps code.
func (s State) Letter() string {
	if s < New || s > Terminated {
		return "?"
	}
	return [...]string{"N", "R", "R", "S", "Z", "X"}[s]
}

type Creds struct {
	Ruid, Euid int
	Rgid, Egid int
}

func (c Creds) Root() bool { return c.Euid == 0 }

// Context is where a process that is not on the CPU keeps its machine
// state. KSP addresses the TrapFrame saved on the process's kernel stack.
type Context struct {
	KSP        uint64
	KStackBase uint64
	KStackTop  uint64
	// reserved: loaded into CR3 on switch, no isolation yet
	AddressSpace uint64
}

// WaitRecord describes a wait4 a Sleeping process is blocked in.
type WaitRecord struct {
	Pid     int
	Options int
}

// Matches reports whether a child with pid satisfies the wait.
func (w *WaitRecord) Matches(pid int) bool {
	return w.Pid == -1 || w.Pid == pid
}

type Counters struct {
	Syscalls    uint64
	Switches    uint64
	Voluntary   uint64
	Involuntary uint64
	// tick the process was created on
	Started uint64
}

type Process struct {
	Pid   int
	Ppid  int
	State State

	Context Context
	Files   FileTable
	Creds   Creds
	Name    string
	Args    []string

	Image *Region
	Stack *Region

	Pending SigSet
	Wait    *WaitRecord
	// poll-mode waiters stay off the CPU until this tick
	NotBefore uint64

	Counters

	status    models.WaitStatus
	hasStatus bool
	reaped    bool
	slot      int
}

func (p *Process) Slot() int { return p.slot }

// Runnable processes are on the CPU or may be put there.
func (p *Process) Runnable() bool {
	return p.State == Ready || p.State == Running
}

func (p *Process) Alive() bool {
	return p.State != Zombie && p.State != Terminated
}

// SetExitStatus records the wait status. It can only be set once.
func (p *Process) SetExitStatus(w models.WaitStatus) error {
	if p.hasStatus {
		return errors.Errorf("pid %d: exit status already set", p.Pid)
	}
	p.status, p.hasStatus = w, true
	return nil
}

func (p *Process) ExitStatus() (models.WaitStatus, bool) {
	return p.status, p.hasStatus
}

// TakeExitStatus consumes the exit status of a zombie. It succeeds once.
func (p *Process) TakeExitStatus() (models.WaitStatus, error) {
	if p.State != Zombie || !p.hasStatus {
		return 0, errors.Errorf("pid %d is %s, not a zombie", p.Pid, p.State)
	}
	if p.reaped {
		return 0, errors.Errorf("pid %d already reaped", p.Pid)
	}
	p.reaped = true
	return p.status, nil
}

func (p *Process) String() string {
	return fmt.Sprintf("%d(%s) %s", p.Pid, p.Name, p.State)
}
