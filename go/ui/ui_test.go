package ui_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/tinykern/proccore/go/kxtest"
	"github.com/tinykern/proccore/go/models/trace"
	"github.com/tinykern/proccore/go/ui"
)

const forkSpin = `
_start:
    mov rax, SYS_fork
    syscall
spin:
    jmp spin
`

func machine(t *testing.T) (*kxtest.Machine, *ui.Context, *bytes.Buffer) {
	m := kxtest.New(t, nil, map[string]string{"/init": forkSpin})
	m.Boot(t, "/init", "init", "-v")
	var out bytes.Buffer
	return m, ui.NewContext(&out, m.Kernel, false), &out
}

func TestPs(t *testing.T) {
	m, c, out := machine(t)
	c.Exec("step")
	out.Reset()
	ui.Ps(out, m.Table, m.Sched.Current(), false)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("ps output:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], " PID") || !strings.HasSuffix(lines[0], "CMD") {
		t.Errorf("header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "*") || !strings.HasSuffix(lines[1], "init -v") {
		t.Errorf("init row %q", lines[1])
	}
	if !strings.Contains(lines[2], " R ") {
		t.Errorf("child row %q", lines[2])
	}
}

func TestMonitorCommands(t *testing.T) {
	m, c, out := machine(t)
	if !c.Exec("step 2") {
		t.Fatal("step quit the monitor")
	}
	if m.Table.Len() != 2 {
		t.Fatalf("%d processes after stepping over fork", m.Table.Len())
	}
	out.Reset()
	c.Exec("kill 2 term")
	if !strings.Contains(out.String(), "SIGTERM pending on pid 2") {
		t.Errorf("kill printed %q", out.String())
	}
	out.Reset()
	c.Exec("frame 2")
	if !strings.Contains(out.String(), "trap: syscall 57") {
		t.Errorf("frame printed %q", out.String())
	}
	out.Reset()
	c.Exec("stats")
	if !strings.Contains(out.String(), "ready queue") {
		t.Errorf("stats printed %q", out.String())
	}
	out.Reset()
	c.Exec("bogus")
	c.Exec(`kill "2`)
	if !strings.Contains(out.String(), "command not found: bogus") || !strings.Contains(out.String(), "parse error") {
		t.Errorf("bad input printed %q", out.String())
	}
	out.Reset()
	c.Exec("kill 9 1")
	if !strings.Contains(out.String(), "no process 9") {
		t.Errorf("kill of a missing pid printed %q", out.String())
	}
	if c.Exec("quit") {
		t.Error("quit did not end the monitor")
	}
}

func TestFrameShowsKernelRewrites(t *testing.T) {
	m, c, out := machine(t)
	c.Exec("step")
	if r := m.Resumed(); r == nil || r.Pid != 1 {
		t.Fatalf("resumed %v, expecting init", r)
	}
	out.Reset()
	c.Exec("frame 1")
	// fork trapped with its number in rax and resumes with the child pid
	if !strings.Contains(out.String(), "  rax 0x39 -> 0x2\n") {
		t.Errorf("frame 1 printed %q", out.String())
	}
	if n := strings.Count(out.String(), "->"); n != 1 {
		t.Errorf("%d registers marked as rewritten: %q", n, out.String())
	}
	out.Reset()
	c.Exec("frame 2")
	if strings.Contains(out.String(), "->") {
		t.Errorf("child frame compared against another process: %q", out.String())
	}
}

func TestMonitorHelp(t *testing.T) {
	_, c, out := machine(t)
	c.Exec("help")
	for name := range ui.Commands {
		if !strings.Contains(out.String(), "  "+name) {
			t.Errorf("help is missing %s", name)
		}
	}
}

type closeBuffer struct{ *bytes.Buffer }

func (closeBuffer) Close() error { return nil }

func TestStreamUI(t *testing.T) {
	var file bytes.Buffer
	w, err := trace.NewWriter(closeBuffer{&file}, trace.TraceHeader{Entry: "syscall", SliceSteps: 100, MaxProcs: 8})
	if err != nil {
		t.Fatal(err)
	}
	tr := &trace.Tracer{W: w}
	tr.Emit(trace.EvBoot, 1)
	tr.Emit(trace.EvFork, 1, 2)
	tr.Emit(trace.EvExit, 2, 0x300)
	tr.Emit(trace.EvReap, 1, 2, 0x300)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := trace.NewReader(io.NopCloser(&file))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	s := ui.NewStreamUI(&out, false)
	s.Pid = 1
	if err := s.Play(r); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"[trace: entry syscall, slice 100 steps, 8 process slots]", "child 2 status 0x300", "[4 records, 2 pids, last tick 0]"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "exit    status") {
		t.Errorf("pid filter let pid 2 through:\n%s", got)
	}
}
