package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tinykern/proccore/go/models"
)

var echoed []string

func init() {
	Register("zz-echo", "records its argv", func(args []string) { echoed = args })
}

func TestRunHello(t *testing.T) {
	var out bytes.Buffer
	c := NewKernelCmd()
	c.In = strings.NewReader("")
	c.Out = &out
	var booted []string
	c.RunKernel = func(args, env []string) error {
		booted = args
		return c.Kernel.Run(context.Background())
	}
	argv := []string{"run", "-procs", "8", "-hz", "20000", "-wait", "poll", "../../samples/hello.s", "a", "b"}
	// hello exits with argc
	if code := c.Run(argv, []string{"HOME=/"}); code != 3 {
		t.Fatalf("exit code %d, expecting 3", code)
	}
	if c.Config.MaxProcs != 8 || c.Config.ClockHz != 20000 || c.Config.WaitStrategy != "poll" {
		t.Errorf("flags not carried into config: %+v", c.Config)
	}
	if c.Kernel.Config != c.Config {
		t.Error("kernel booted with another config")
	}
	if info, err := c.FS.Stat("/bin/hello"); err != nil || info.IsDir() {
		t.Fatalf("assembled image not installed: %v", err)
	}
	if len(booted) != 3 || booted[0] != "/bin/hello" {
		t.Errorf("booted %q", booted)
	}
	if got := out.String(); got != "/bin/hello\na\nb\n" {
		t.Errorf("console got %q", got)
	}
}

func TestRunWithoutExe(t *testing.T) {
	c := NewKernelCmd()
	c.Flags.SetOutput(&bytes.Buffer{})
	if code := c.Run([]string{"run"}, nil); code != 1 {
		t.Errorf("exit code %d", code)
	}
	if c.Kernel != nil {
		t.Error("kernel booted with no executable")
	}
}

func TestExitCode(t *testing.T) {
	c := NewKernelCmd()
	for _, tc := range []struct {
		err  error
		code int
	}{
		{nil, 0},
		{models.ExitStatus(5), 5},
		{models.ExitedStatus(7).ExitStatus(), 7},
	} {
		if code := c.exitCode(tc.err); code != tc.code {
			t.Errorf("exitCode(%v) = %d, expecting %d", tc.err, code, tc.code)
		}
	}
}

func TestDispatch(t *testing.T) {
	var stderr bytes.Buffer
	if !Dispatch([]string{"kcore", "zz-echo", "-x", "y"}, &stderr) {
		t.Fatalf("dispatch failed: %s", stderr.String())
	}
	if strings.Join(echoed, "|") != "kcore zz-echo|-x|y" {
		t.Errorf("tool got %q", echoed)
	}
	if Dispatch([]string{"kcore", "nope"}, &stderr) {
		t.Fatal("unknown tool dispatched")
	}
	if !strings.Contains(stderr.String(), "Command 'nope' not found.") || !strings.Contains(stderr.String(), "  zz-echo  records its argv\n") {
		t.Errorf("usage %q", stderr.String())
	}
	if _, ok := Lookup("zz-echo"); !ok {
		t.Error("lookup missed a registered tool")
	}
}
