package models

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	EntrySyscall = "syscall"
	EntryInt80   = "int80"

	WaitBlock = "block"
	WaitPoll  = "poll"
)

type Config struct {
	// process table capacity
	MaxProcs int
	// largest pid before allocation wraps back to 2
	PidMax int
	// round-robin time slice and the simulated clock rate (instructions per second)
	TimeSlice time.Duration
	ClockHz   uint64
	// canonical trap entry convention, "syscall" or "int80"
	Entry string
	// wait4 strategy, "block" or "poll"
	WaitStrategy string
	// timer ticks a polling waiter stays off the cpu
	PollInterval int
	// stop after this many retired instructions, 0 is unlimited
	MaxSteps uint64

	TraceSys  bool
	Verbose   bool
	Color     bool
	Tracefile string
	Strsize   int

	Output io.WriteCloser
}

func DefaultConfig() *Config {
	return &Config{
		MaxProcs:     64,
		PidMax:       32768,
		TimeSlice:    10 * time.Millisecond,
		ClockHz:      100000,
		Entry:        EntrySyscall,
		WaitStrategy: WaitBlock,
		PollInterval: 1,
		Strsize:      30,
		Output:       os.Stderr,
	}
}

// SliceSteps is the number of instructions in one time slice.
func (c *Config) SliceSteps() uint64 {
	steps := c.ClockHz * uint64(c.TimeSlice) / uint64(time.Second)
	if steps == 0 {
		steps = 1
	}
	return steps
}

func (c *Config) Validate() error {
	if c.MaxProcs < 1 {
		return errors.Errorf("MaxProcs must be positive, got %d", c.MaxProcs)
	}
	if c.PidMax <= c.MaxProcs {
		return errors.Errorf("PidMax (%d) must exceed MaxProcs (%d)", c.PidMax, c.MaxProcs)
	}
	if c.TimeSlice <= 0 {
		return errors.New("TimeSlice must be positive")
	}
	if c.ClockHz == 0 {
		return errors.New("ClockHz must be positive")
	}
	switch c.Entry {
	case EntrySyscall, EntryInt80:
	default:
		return errors.Errorf("unknown trap entry %q", c.Entry)
	}
	switch c.WaitStrategy {
	case WaitBlock, WaitPoll:
	default:
		return errors.Errorf("unknown wait strategy %q", c.WaitStrategy)
	}
	if c.PollInterval < 0 {
		return errors.New("PollInterval must not be negative")
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return nil
}
