package trace

import (
	"fmt"

	"github.com/lunixbochs/ghostrace/ghost/sys/num"
)

type Kind uint8

const (
	EvBoot Kind = iota + 1
	EvSyscall
	EvSwitch
	EvFork
	EvExec
	EvExit
	EvReap
	EvSignal
	EvFault
	EvIdle
	EvHalt
)

var kindNames = map[Kind]string{
	EvBoot:    "boot",
	EvSyscall: "syscall",
	EvSwitch:  "switch",
	EvFork:    "fork",
	EvExec:    "exec",
	EvExit:    "exit",
	EvReap:    "reap",
	EvSignal:  "signal",
	EvFault:   "fault",
	EvIdle:    "idle",
	EvHalt:    "halt",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Record is one kernel event. The meaning of the A fields depends on Kind:
//
//	syscall  A0=nr A1=result
//	switch   A0=previous pid (0 for none)
//	fork     A0=child pid
//	exec     A0=entry point
//	exit     A0=wait status
//	reap     A0=child pid A1=wait status
//	signal   A0=signal
//	fault    A0=vector A1=address
type Record struct {
	Tick uint64
	Kind Kind `struc:"uint8"`
	Pid  int32
	A0   int64
	A1   int64
	A2   int64
}

func (r *Record) String() string {
	prefix := fmt.Sprintf("%8d [%d] %-7s", r.Tick, r.Pid, r.Kind)
	switch r.Kind {
	case EvSyscall:
		name := num.Linux_x86_64[int(r.A0)]
		if name == "" {
			name = fmt.Sprintf("syscall_%d", r.A0)
		}
		return fmt.Sprintf("%s %s = %d", prefix, name, r.A1)
	case EvSwitch:
		return fmt.Sprintf("%s %d -> %d", prefix, r.A0, r.Pid)
	case EvFork:
		return fmt.Sprintf("%s child %d", prefix, r.A0)
	case EvExec:
		return fmt.Sprintf("%s entry %#x", prefix, r.A0)
	case EvExit:
		return fmt.Sprintf("%s status %#x", prefix, r.A0)
	case EvReap:
		return fmt.Sprintf("%s child %d status %#x", prefix, r.A0, r.A1)
	case EvSignal:
		return fmt.Sprintf("%s sig %d", prefix, r.A0)
	case EvFault:
		return fmt.Sprintf("%s vector %#x addr %#x", prefix, r.A0, uint64(r.A1))
	}
	return prefix
}
