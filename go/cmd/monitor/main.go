package monitor

import (
	"os"

	"github.com/tinykern/proccore/go/cmd"
	"github.com/tinykern/proccore/go/ui"
)

func Main(args []string) {
	c := cmd.NewKernelCmd()
	c.RunKernel = func(args, env []string) error {
		m, err := ui.NewMonitor(c.Kernel, c.Color)
		if err != nil {
			return err
		}
		return m.Run()
	}
	os.Exit(c.Run(args, nil))
}

func init() { cmd.Register("monitor", "boot an executable and step it interactively", Main) }
