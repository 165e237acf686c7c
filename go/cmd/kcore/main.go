package main

import (
	"github.com/tinykern/proccore/go/cmd"

	_ "github.com/tinykern/proccore/go/cmd/asm"
	_ "github.com/tinykern/proccore/go/cmd/dis"
	_ "github.com/tinykern/proccore/go/cmd/monitor"
	_ "github.com/tinykern/proccore/go/cmd/run"
	_ "github.com/tinykern/proccore/go/cmd/trace"
)

func main() { cmd.Main() }
