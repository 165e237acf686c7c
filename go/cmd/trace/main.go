package trace

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/cmd"
	"github.com/tinykern/proccore/go/models/trace"
	"github.com/tinykern/proccore/go/ui"
)

func parseKinds(s string) (map[trace.Kind]bool, error) {
	if s == "" {
		return nil, nil
	}
	byName := make(map[string]trace.Kind)
	for k := trace.EvBoot; k <= trace.EvHalt; k++ {
		byName[k.String()] = k
	}
	kinds := make(map[trace.Kind]bool)
	for _, name := range strings.Split(s, ",") {
		k, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, errors.Errorf("unknown event kind %q", name)
		}
		kinds[k] = true
	}
	return kinds, nil
}

func Main(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	pid := fs.Int("pid", 0, "only show events for this pid")
	kind := fs.String("kind", "", "only show these comma-separated event kinds")
	color := fs.Bool("color", isatty.IsTerminal(os.Stdout.Fd()), "colour events")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <tracefile>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	kinds, err := parseKinds(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	r, err := trace.NewReader(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer r.Close()
	stream := ui.NewStreamUI(colorable.NewColorableStdout(), *color)
	stream.Kinds = kinds
	stream.Pid = *pid
	if err := stream.Play(r); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() { cmd.Register("trace", "print a recorded event trace", Main) }
