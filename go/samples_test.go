package proccore_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/kxtest"
	"github.com/tinykern/proccore/go/loader"
	"github.com/tinykern/proccore/go/models"
)

func runSample(t *testing.T, cfg *models.Config, name string, argv ...string) (*kxtest.Machine, error) {
	t.Helper()
	src, err := ioutil.ReadFile(filepath.Join("..", "samples", name+".s"))
	if err != nil {
		t.Fatal(err)
	}
	prog, err := kx.AssembleString(string(src))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	m := kxtest.New(t, cfg, nil)
	path := "/bin/" + name
	if err := m.FS.WriteFile(path, loader.FromProgram(prog).Bytes(), 0755); err != nil {
		t.Fatal(err)
	}
	m.Boot(t, path, argv...)
	return m, m.Run(context.Background())
}

func TestSampleHello(t *testing.T) {
	m, err := runSample(t, nil, "hello", "hello", "a", "b")
	if err != models.ExitStatus(3) {
		t.Fatalf("Run() = %v", err)
	}
	if m.Out.String() != "hello\na\nb\n" {
		t.Errorf("console got %q", m.Out.String())
	}
}

func TestSampleInit(t *testing.T) {
	m, err := runSample(t, nil, "init")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	out := m.Out.String()
	if n := strings.Count(out, "worker pid "); n != 3 {
		t.Errorf("%d workers started:\n%s", n, out)
	}
	for _, want := range []string{"reaped pid 2 status 1", "reaped pid 3 status 2", "reaped pid 4 status 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestSamplePingPong(t *testing.T) {
	cfg := kxtest.Config()
	cfg.ClockHz = 10000000
	m, err := runSample(t, cfg, "pingpong")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if want := strings.Repeat("ping\npong\n", 5); m.Out.String() != want {
		t.Errorf("console got %q", m.Out.String())
	}
}

func TestSampleOrphans(t *testing.T) {
	m, err := runSample(t, nil, "orphans")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if m.Out.String() != "adopted by init (1)\n" {
		t.Errorf("console got %q", m.Out.String())
	}
}
