package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/mattn/go-runewidth"
)

// Subcommand is one tool reachable as `kcore <name>`.
type Subcommand struct {
	Name, Desc string
	Main       func(args []string)
}

var subcommands = make(map[string]*Subcommand)

// Register adds a tool to the kcore launcher. Tools register from init, so
// a duplicate name is a programming error.
func Register(name, desc string, main func(args []string)) {
	if _, ok := subcommands[name]; ok {
		panic("cmd: " + name + " registered twice")
	}
	subcommands[name] = &Subcommand{Name: name, Desc: desc, Main: main}
}

func Lookup(name string) (*Subcommand, bool) {
	sc, ok := subcommands[name]
	return sc, ok
}

// Subcommands lists the registered tools in natural name order.
func Subcommands() []*Subcommand {
	list := make([]*Subcommand, 0, len(subcommands))
	for _, sc := range subcommands {
		list = append(list, sc)
	}
	sort.Slice(list, func(i, j int) bool { return sortorder.NaturalLess(list[i].Name, list[j].Name) })
	return list
}

func usage(w io.Writer, prog string) {
	list := Subcommands()
	width := 0
	for _, sc := range list {
		if n := runewidth.StringWidth(sc.Name); n > width {
			width = n
		}
	}
	fmt.Fprintln(w, "Commands:")
	for _, sc := range list {
		fmt.Fprintf(w, "  %s  %s\n", runewidth.FillRight(sc.Name, width), sc.Desc)
	}
	fmt.Fprintf(w, "\nExample: %s run -strace samples/init.s\n\n", prog)
}

// Dispatch picks the tool named by args[1] and hands it the rest, with
// "prog name" as its argv[0]. It returns false after printing usage when
// there is no such tool.
func Dispatch(args []string, stderr io.Writer) bool {
	if len(args) < 2 {
		usage(stderr, args[0])
		return false
	}
	sc, ok := Lookup(args[1])
	if !ok {
		fmt.Fprintf(stderr, "Command '%s' not found.\n\n", args[1])
		usage(stderr, args[0])
		return false
	}
	sc.Main(append([]string{args[0] + " " + args[1]}, args[2:]...))
	return true
}

func Main() {
	if !Dispatch(os.Args, os.Stderr) {
		os.Exit(1)
	}
}
