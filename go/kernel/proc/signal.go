package proc

import "fmt"

const NSIG = 32

const (
	SIGHUP   = 1
	SIGINT   = 2
	SIGQUIT  = 3
	SIGILL   = 4
	SIGTRAP  = 5
	SIGABRT  = 6
	SIGBUS   = 7
	SIGFPE   = 8
	SIGKILL  = 9
	SIGUSR1  = 10
	SIGSEGV  = 11
	SIGUSR2  = 12
	SIGPIPE  = 13
	SIGALRM  = 14
	SIGTERM  = 15
	SIGCHLD  = 17
	SIGCONT  = 18
	SIGSTOP  = 19
	SIGURG   = 23
	SIGWINCH = 28
)

// SigSet is a pending signal mask, bit n for signal n.
type SigSet uint32

func (s *SigSet) Add(sig int) {
	*s |= 1 << uint(sig)
}

func (s SigSet) Has(sig int) bool {
	return s&(1<<uint(sig)) != 0
}

func (s SigSet) Empty() bool { return s == 0 }

// Next removes and returns the lowest pending signal, or 0.
func (s *SigSet) Next() int {
	for sig := 1; sig < NSIG; sig++ {
		if s.Has(sig) {
			*s &^= 1 << uint(sig)
			return sig
		}
	}
	return 0
}

func (s SigSet) String() string {
	return fmt.Sprintf("%#08x", uint32(s))
}

// DefaultIgnored signals are discarded when they have no handler.
// Everything else terminates.
func DefaultIgnored(sig int) bool {
	switch sig {
	case SIGCHLD, SIGCONT, SIGURG, SIGWINCH:
		return true
	}
	return false
}
