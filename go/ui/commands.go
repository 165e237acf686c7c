package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"

	proccore "github.com/tinykern/proccore/go"
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/models"
)

type Command struct {
	Name string
	Desc string
	Run  func(c *Context, args []string) error
}

var Commands = make(map[string]*Command)

func cmd(c *Command) *Command {
	Commands[c.Name] = c
	return c
}

// Context is what a monitor command runs against.
type Context struct {
	io.Writer
	K     *proccore.Kernel
	Regs  *RegView
	Color bool

	quit bool
}

func NewContext(w io.Writer, k *proccore.Kernel, color bool) *Context {
	return &Context{Writer: w, K: k, Regs: NewRegView(k.Task.Arch(), color), Color: color}
}

func (c *Context) Printf(format string, a ...interface{}) (n int, err error) {
	return fmt.Fprintf(c, format, a...)
}

// Exec parses and runs one command line. It reports false once the user
// asked to leave.
func (c *Context) Exec(line string) bool {
	args, err := shellwords.Parse(line)
	if err != nil {
		c.Printf("parse error: %v\n", err)
		return true
	}
	if len(args) == 0 {
		return true
	}
	name, args := args[0], args[1:]
	if cmd, ok := Commands[name]; ok {
		if err := cmd.Run(c, args); err != nil {
			c.Printf("error: %v\n", err)
		}
	} else {
		c.Printf("command not found: %s\n", name)
	}
	return !c.quit
}

func parseUint(args []string, i int, def uint64) (uint64, error) {
	if i >= len(args) {
		return def, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 64)
	return n, errors.Wrapf(err, "bad number %q", args[i])
}

func (c *Context) process(args []string, i int) (*proc.Process, error) {
	if i >= len(args) {
		if p := c.K.Sched.Current(); p != nil {
			return p, nil
		}
		return nil, errors.New("no current process")
	}
	pid, err := strconv.Atoi(args[i])
	if err != nil {
		return nil, errors.Errorf("bad pid %q", args[i])
	}
	p := c.K.Table.Lookup(pid)
	if p == nil {
		return nil, errors.Errorf("no process %d", pid)
	}
	return p, nil
}

func (c *Context) where() {
	if c.K.Halted() {
		c.Printf("halted\n")
		return
	}
	p := c.K.Sched.Current()
	if p == nil {
		c.Printf("idle at tick %d\n", c.K.Sched.Ticks)
		return
	}
	f, _, err := c.K.SavedFrame(p)
	if err != nil {
		c.Printf("pid %d: %v\n", p.Pid, err)
		return
	}
	dis, err := c.K.Task.Dis(f.Rip, 8)
	if err != nil {
		dis = fmt.Sprintf("%#x: ?", f.Rip)
	}
	c.Printf("[%d] %s\n", p.Pid, dis)
}

func (c *Context) result(err error) {
	if err == nil {
		return
	}
	if f, ok := err.(*proccore.Fatal); ok {
		Crash(c, c.K, f, c.Color)
		return
	}
	c.Printf("%v\n", err)
}

var HelpCmd = cmd(&Command{
	Name: "help",
	Desc: "List commands.",
	Run: func(c *Context, args []string) error {
		names := make([]string, 0, len(Commands))
		width := 0
		for name := range Commands {
			names = append(names, name)
			if w := runewidth.StringWidth(name); w > width {
				width = w
			}
		}
		sort.Strings(names)
		for _, name := range names {
			c.Printf("  %s  %s\n", runewidth.FillRight(name, width), Commands[name].Desc)
		}
		return nil
	},
})

var PsCmd = cmd(&Command{
	Name: "ps",
	Desc: "Show the process table.",
	Run: func(c *Context, args []string) error {
		Ps(c, c.K.Table, c.K.Sched.Current(), c.Color)
		return nil
	},
})

var RegsCmd = cmd(&Command{
	Name: "regs",
	Desc: "Show live CPU registers.",
	Run: func(c *Context, args []string) error {
		return c.Regs.Print(c, c.K.Task)
	},
})

var FrameCmd = cmd(&Command{
	Name: "frame",
	Desc: "Show the saved trap frame of pid (default current).",
	Run: func(c *Context, args []string) error {
		p, err := c.process(args, 0)
		if err != nil {
			return err
		}
		if !p.Alive() {
			return errors.Errorf("pid %d is %s", p.Pid, p.State)
		}
		f, addr, err := c.K.SavedFrame(p)
		if err != nil {
			return err
		}
		c.Printf("pid %d frame at %#x\n", p.Pid, addr)
		var trapped models.RegReader
		if p == c.K.Resumed() {
			// the cpu still holds what this process trapped with
			trapped = c.K.Task
		}
		return NewRegView(c.K.Task.Arch(), c.Color).Frame(c, f, trapped)
	},
})

var StepCmd = cmd(&Command{
	Name: "step",
	Desc: "Run until the next n traps (default 1).",
	Run: func(c *Context, args []string) error {
		n, err := parseUint(args, 0, 1)
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			halted, err := c.K.Step()
			if err != nil {
				c.result(err)
				break
			}
			if halted {
				break
			}
		}
		c.where()
		return nil
	},
})

var ContCmd = cmd(&Command{
	Name: "cont",
	Desc: "Run until the machine halts or ^C.",
	Run: func(c *Context, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		err := c.K.Run(ctx)
		if err == context.Canceled {
			c.Printf("interrupted\n")
		} else {
			c.result(err)
		}
		c.where()
		return nil
	},
})

var KillCmd = cmd(&Command{
	Name: "kill",
	Desc: "Post a signal to pid: kill <pid> [signal].",
	Run: func(c *Context, args []string) error {
		if len(args) == 0 {
			return errors.New("usage: kill <pid> [signal]")
		}
		p, err := c.process(args, 0)
		if err != nil {
			return err
		}
		sig := proc.SIGKILL
		if len(args) > 1 {
			var ok bool
			if sig, ok = co.SignalNumber(args[1]); !ok {
				return errors.Errorf("bad signal %q", args[1])
			}
		}
		c.K.PostSignal(p, sig)
		c.Printf("%s pending on pid %d\n", co.SignalName(sig), p.Pid)
		return nil
	},
})

var DisCmd = cmd(&Command{
	Name: "dis",
	Desc: "Disassemble: dis <addr> [size].",
	Run: func(c *Context, args []string) error {
		if len(args) == 0 {
			return errors.New("usage: dis <addr> [size]")
		}
		addr, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		size, err := parseUint(args, 1, 64)
		if err != nil {
			return err
		}
		dis, err := c.K.Task.Dis(addr, size)
		if err != nil {
			return err
		}
		c.Printf("%s\n", dis)
		return nil
	},
})

var MemCmd = cmd(&Command{
	Name: "mem",
	Desc: "Hexdump memory: mem <addr> [size].",
	Run: func(c *Context, args []string) error {
		if len(args) == 0 {
			return errors.New("usage: mem <addr> [size]")
		}
		addr, err := parseUint(args, 0, 0)
		if err != nil {
			return err
		}
		size, err := parseUint(args, 1, 64)
		if err != nil {
			return err
		}
		return Hexdump(c, c.K, addr, size)
	},
})

var MapsCmd = cmd(&Command{
	Name: "maps",
	Desc: "Display memory mappings.",
	Run: func(c *Context, args []string) error {
		Maps(c, c.K)
		return nil
	},
})

var StatsCmd = cmd(&Command{
	Name: "stats",
	Desc: "Show scheduler counters.",
	Run: func(c *Context, args []string) error {
		s := c.K.Sched
		c.Printf("ticks %d  idle %d  switches %d  steps %d\n", s.Ticks, s.IdleTicks, s.Switches, c.K.Steps)
		c.Printf("ready queue %v\n", s.Queued())
		return nil
	},
})

var QuitCmd = cmd(&Command{
	Name: "quit",
	Desc: "Leave the monitor.",
	Run: func(c *Context, args []string) error {
		c.quit = true
		return nil
	},
})
