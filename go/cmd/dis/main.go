package dis

import (
	"flag"
	"fmt"
	"os"

	"github.com/tinykern/proccore/go/arch/x86_64"
	"github.com/tinykern/proccore/go/cmd"
	"github.com/tinykern/proccore/go/loader"
	"github.com/tinykern/proccore/go/models"
)

func Main(args []string) {
	fs := flag.NewFlagSet("dis", flag.ExitOnError)
	base := fs.Uint64("base", 0, "address to show the text at")
	data := fs.Bool("data", false, "hexdump the data section too")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <exe>\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	exe := fs.Arg(0)
	raw, err := cmd.LoadExe(exe)
	if err == nil {
		var img *loader.Image
		if img, err = loader.LoadBytes(raw); err == nil {
			err = dump(img, *base, *data)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", exe, err)
		os.Exit(1)
	}
}

func dump(img *loader.Image, base uint64, data bool) error {
	fmt.Printf("[text %#x bytes, entry %#x]\n", len(img.Text), base+img.Entry)
	ins, err := x86_64.Arch.Dis.Dis(img.Text, base)
	for _, i := range ins {
		mark := " "
		if i.Addr() == base+img.Entry {
			mark = ">"
		}
		fmt.Printf("%s %#08x: %-6s %s\n", mark, i.Addr(), i.Mnemonic(), i.OpStr())
	}
	if err != nil {
		return err
	}
	if data && len(img.Data) > 0 {
		fmt.Printf("[data %#x bytes]\n", len(img.Data))
		for _, line := range models.HexDump(base+img.DataOff(), img.Data, 64) {
			fmt.Println(line)
		}
	}
	if img.Bss > 0 {
		fmt.Printf("[bss %#x bytes]\n", img.Bss)
	}
	return nil
}

func init() { cmd.Register("dis", "disassemble a KX image or source file", Main) }
