package asm

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tinykern/proccore/go/cmd"
	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/loader"
)

func Main(args []string) {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	out := fs.String("o", "", "output image (default: input with .kx)")
	labels := fs.Bool("l", false, "list label addresses")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.s>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	src := fs.Arg(0)
	f, err := os.Open(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	prog, err := kx.Assemble(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
		os.Exit(1)
	}
	if *out == "" {
		*out = strings.TrimSuffix(src, ".s") + ".kx"
	}
	img := loader.FromProgram(prog)
	if err := os.WriteFile(*out, img.Bytes(), 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *labels {
		names := make([]string, 0, len(prog.Labels))
		for name := range prog.Labels {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return prog.Labels[names[i]] < prog.Labels[names[j]] })
		for _, name := range names {
			fmt.Printf("%#08x %s\n", prog.Labels[name], name)
		}
	}
	fmt.Fprintf(os.Stderr, "%s: text %#x data %#x bss %#x entry %#x\n", *out, len(img.Text), len(img.Data), img.Bss, img.Entry)
}

func init() { cmd.Register("asm", "assemble KX source into an image", Main) }
