package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	proccore "github.com/tinykern/proccore/go"
	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/kernel/posix"
	"github.com/tinykern/proccore/go/loader"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/ui"
	"github.com/tinykern/proccore/go/vfs"
)

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// KernelCmd is the shared front end of the commands that boot a kernel.
type KernelCmd struct {
	Config *models.Config

	SetupFlags  func() error
	SetupKernel func() error
	RunKernel   func(args, env []string) error
	Teardown    func()

	Kernel *proccore.Kernel
	FS     *vfs.MemFS
	Flags  *flag.FlagSet
	// guest console
	In  io.Reader
	Out io.Writer
	// colour for reports on Out
	Color bool
}

func NewKernelCmd() *KernelCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	return &KernelCmd{Flags: fs, In: os.Stdin, Out: os.Stdout}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *KernelCmd) PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range err.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		widths := make([]int, 2)
		for _, f := range frames {
			for i, s := range f[:2] {
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
		for _, f := range frames {
			for i := 0; i < 2; i++ {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(os.Stderr, "%s()\n", f[2])
		}
	}
}

// LoadExe reads a KX image, or assembles it when the name ends in .s.
func LoadExe(p string) ([]byte, error) {
	if strings.HasSuffix(p, ".s") {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		prog, err := kx.Assemble(f)
		if err != nil {
			return nil, errors.Wrapf(err, "assembling %s", p)
		}
		return loader.FromProgram(prog).Bytes(), nil
	}
	return os.ReadFile(p)
}

// guestPath puts a host executable into the guest filesystem and returns
// its guest path. Paths already in the guest are used as they are.
func (c *KernelCmd) guestPath(exe string) (string, error) {
	if info, err := c.FS.Stat(exe); err == nil && !info.IsDir() {
		return vfs.Clean(exe), nil
	}
	data, err := LoadExe(exe)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(exe), ".s")
	guest := path.Join("/bin", name)
	if err := c.FS.WriteFile(guest, data, 0755); err != nil {
		return "", err
	}
	return guest, nil
}

// Run parses flags, boots the executable named by the first argument as
// init and returns the process exit code.
func (c *KernelCmd) Run(argv, env []string) int {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	fs := c.Flags
	def := models.DefaultConfig()
	procs := fs.Int("procs", def.MaxProcs, "process table capacity")
	pidmax := fs.Int("pidmax", def.PidMax, "largest pid before allocation wraps")
	slice := fs.Duration("slice", def.TimeSlice, "round-robin time slice")
	hz := fs.Uint64("hz", def.ClockHz, "simulated instructions per second")
	entry := fs.String("entry", def.Entry, "trap entry convention: syscall or int80")
	wait := fs.String("wait", def.WaitStrategy, "wait4 strategy: block or poll")
	poll := fs.Int("poll", def.PollInterval, "ticks a polling waiter stays off the cpu")
	maxsteps := fs.Uint64("maxsteps", 0, "stop after this many instructions (0 is unlimited)")

	strace := fs.Bool("strace", false, "trace syscalls")
	tracefile := fs.String("to", "", "binary event trace output file")
	strsize := fs.Int("strsize", def.Strsize, "limit -strace'd strings to length (0 disables)")
	// used for Usage grouping
	tnames := []string{"strace", "to", "strsize"}

	verbose := fs.Bool("v", false, "verbose output")
	color := fs.Bool("color", false, "force colour output")
	root := fs.String("root", "", "host directory to copy into the guest filesystem")
	outfile := fs.String("o", "", "redirect debugging output to file (default stderr)")
	cpuprofile := fs.String("cpuprofile", "", "write cpu profile to <file>")
	memprofile := fs.String("memprofile", "", "write mem profile to <file>")

	var envSet strslice
	var envUnset strslice
	fs.Var(&envSet, "set", "set environment var in the form name=value")
	fs.Var(&envUnset, "unset", "unset environment variable")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <exe> [args...]\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		var tflags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) {
			for _, name := range tnames {
				if name == f.Name {
					tflags = append(tflags, f)
					return
				}
			}
			flags = append(flags, f)
		})
		models.PrintFlags(os.Stderr, flags)
		fmt.Fprintf(os.Stderr, "\nTrace Options:\n")
		models.PrintFlags(os.Stderr, tflags)
		fmt.Fprintf(os.Stderr, "\nExample:\n  %s -strace -procs 16 samples/init.s\n", argv[0])
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			panic(err)
		}
	}
	fs.Parse(argv[1:])

	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		return 1
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(f)
	}

	config := &models.Config{
		MaxProcs:     *procs,
		PidMax:       *pidmax,
		TimeSlice:    *slice,
		ClockHz:      *hz,
		Entry:        *entry,
		WaitStrategy: *wait,
		PollInterval: *poll,
		MaxSteps:     *maxsteps,

		TraceSys:  *strace,
		Verbose:   *verbose,
		Color:     *color,
		Tracefile: *tracefile,
		Strsize:   *strsize,
		Output:    os.Stderr,
	}
	c.Config = config
	c.Color = *color
	if f, ok := c.Out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		c.Color = true
	}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(err)
		}
		config.Output = out
	}

	// merge environment with flags
	envSkip := make(map[string]bool)
	for _, v := range envSet {
		if strings.Contains(v, "=") {
			split := strings.SplitN(v, "=", 2)
			envSkip[split[0]] = true
		} else {
			fmt.Fprintf(os.Stderr, "warning: skipping invalid env set %#v\n", v)
		}
	}
	for _, v := range envUnset {
		envSkip[v] = true
	}
	for _, v := range env {
		if strings.Contains(v, "=") {
			split := strings.SplitN(v, "=", 2)
			if _, ok := envSkip[split[0]]; !ok {
				envSet = append(envSet, v)
			}
		}
	}
	env = envSet

	c.FS = vfs.NewMemFS()
	c.FS.AddDevice(posix.ConsolePath, &vfs.Console{In: c.In, Out: c.Out})
	if *root != "" {
		if err := vfs.LoadHostDir(c.FS, *root, "/"); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	exe, err := c.guestPath(args[0])
	if err != nil {
		c.PrintError(err)
		return 1
	}
	args[0] = exe

	k, err := proccore.New(config, c.FS)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	c.Kernel = k
	if c.SetupKernel != nil {
		if err := c.SetupKernel(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	teardown := func() {
		if err := k.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not write heap profile: %s\n", err)
			} else {
				pprof.WriteHeapProfile(f)
				f.Close()
			}
		}
		if c.Teardown != nil {
			c.Teardown()
		}
	}
	defer teardown()

	if _, err := k.Boot(exe, args, env); err != nil {
		c.PrintError(err)
		return 1
	}
	start := time.Now()
	if c.RunKernel != nil {
		err = c.RunKernel(args, env)
	} else {
		err = k.Run(Interruptible())
	}
	if *verbose {
		fmt.Fprintf(config.Output, "[%d instructions, %d ticks, %d switches in %s]\n",
			k.Steps, k.Sched.Ticks, k.Sched.Switches, time.Since(start))
	}
	return c.exitCode(err)
}

func (c *KernelCmd) exitCode(err error) int {
	switch e := err.(type) {
	case nil:
		return 0
	case models.ExitStatus:
		return int(e)
	case *proccore.Fatal:
		ui.Crash(c.Stdout(), c.Kernel, e, c.Color)
		return 1
	}
	c.PrintError(err)
	return 1
}

// Stdout is the console output, translating colour codes where the
// terminal needs it.
func (c *KernelCmd) Stdout() io.Writer {
	f, ok := c.Out.(*os.File)
	if !ok {
		return c.Out
	}
	if c.Color {
		return colorable.NewColorable(f)
	}
	return colorable.NewNonColorable(f)
}

// Interruptible is a context cancelled by ^C.
func Interruptible() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx
}
