package run

import (
	"os"

	"github.com/tinykern/proccore/go/cmd"
)

func Main(args []string) {
	os.Exit(cmd.NewKernelCmd().Run(args, nil))
}

func init() { cmd.Register("run", "boot an executable as init", Main) }
