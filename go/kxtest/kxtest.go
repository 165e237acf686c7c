// Package kxtest boots KX programs on an in-memory filesystem for tests.
package kxtest

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"testing"

	proccore "github.com/tinykern/proccore/go"
	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/loader"
	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/vfs"
)

// Prelude names the syscalls and flags test programs use.
const Prelude = `
.equ SYS_read, 0
.equ SYS_write, 1
.equ SYS_open, 2
.equ SYS_close, 3
.equ SYS_sched_yield, 24
.equ SYS_dup, 32
.equ SYS_getpid, 39
.equ SYS_fork, 57
.equ SYS_execve, 59
.equ SYS_exit, 60
.equ SYS_wait4, 61
.equ SYS_kill, 62
.equ SYS_getuid, 102
.equ SYS_getgid, 104
.equ SYS_setuid, 105
.equ SYS_setgid, 106
.equ SYS_geteuid, 107
.equ SYS_getegid, 108
.equ SYS_getppid, 110
.equ SYS_exit_group, 231
.equ WNOHANG, 1
.equ SIGKILL, 9
.equ SIGTERM, 15
.equ SIGCHLD, 17
.text
`

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Assemble builds a KX image from src with Prelude prepended.
func Assemble(t testing.TB, src string) []byte {
	t.Helper()
	prog, err := kx.AssembleString(Prelude + src)
	if err != nil {
		t.Fatalf("assembling: %v", err)
	}
	return loader.FromProgram(prog).Bytes()
}

// Config is the default configuration with a short time slice, an
// instruction limit so a broken test cannot spin forever, and kernel log
// output dropped.
func Config() *models.Config {
	cfg := models.DefaultConfig()
	cfg.ClockHz = 10000
	cfg.MaxSteps = 5000000
	cfg.Output = nopCloser{ioutil.Discard}
	return cfg
}

type Machine struct {
	*proccore.Kernel
	FS *vfs.MemFS
	// everything written to the console
	Out *bytes.Buffer
	In  *bytes.Buffer
}

// New assembles progs (path -> source) into a fresh filesystem and creates
// a kernel on it. cfg may be nil.
func New(t testing.TB, cfg *models.Config, progs map[string]string) *Machine {
	t.Helper()
	m := &Machine{FS: vfs.NewMemFS(), Out: &bytes.Buffer{}, In: &bytes.Buffer{}}
	m.FS.AddDevice("/dev/console", &vfs.Console{In: m.In, Out: m.Out})
	for path, src := range progs {
		if err := m.FS.WriteFile(path, Assemble(t, src), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if cfg == nil {
		cfg = Config()
	}
	k, err := proccore.New(cfg, m.FS)
	if err != nil {
		t.Fatal(err)
	}
	m.Kernel = k
	return m
}

// Boot starts path as pid 1.
func (m *Machine) Boot(t testing.TB, path string, argv ...string) *proc.Process {
	t.Helper()
	if len(argv) == 0 {
		argv = []string{path}
	}
	p, err := m.Kernel.Boot(path, argv, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// Run boots init and runs the machine until it halts.
func Run(t testing.TB, cfg *models.Config, progs map[string]string, init string) (*Machine, error) {
	t.Helper()
	m := New(t, cfg, progs)
	m.Boot(t, init)
	return m, m.Kernel.Run(context.Background())
}
