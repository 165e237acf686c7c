package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/mgutz/ansi"

	"github.com/tinykern/proccore/go/kernel/proc"
)

const cmdWidth = 32

var psColumns = []string{"PID", "PPID", "S", "UID", "SYSC", "VOL", "INVOL", "SW", "CMD"}

var (
	psCurrent = ansi.ColorCode("green+b")
	psZombie  = ansi.ColorCode("black+h")
)

func psCmd(p *proc.Process) string {
	cmd := p.Name
	if len(p.Args) > 0 {
		cmd = strings.Join(p.Args, " ")
	}
	if p.State == proc.Zombie {
		cmd = "[" + p.Name + "] <defunct>"
	}
	return runewidth.Truncate(cmd, cmdWidth, "…")
}

func psRow(p *proc.Process) []string {
	return []string{
		fmt.Sprint(p.Pid), fmt.Sprint(p.Ppid), p.State.Letter(), fmt.Sprint(p.Creds.Euid),
		fmt.Sprint(p.Syscalls), fmt.Sprint(p.Voluntary), fmt.Sprint(p.Involuntary), fmt.Sprint(p.Switches),
		psCmd(p),
	}
}

// Ps writes the process table, one row per process in pid order. The
// current process is marked with a star.
func Ps(w io.Writer, t *proc.Table, current *proc.Process, color bool) {
	var procs []*proc.Process
	t.Each(func(p *proc.Process) { procs = append(procs, p) })
	rows := [][]string{psColumns}
	for _, p := range procs {
		rows = append(rows, psRow(p))
	}
	widths := make([]int, len(psColumns))
	for _, row := range rows {
		for i, col := range row {
			if n := runewidth.StringWidth(col); n > widths[i] {
				widths[i] = n
			}
		}
	}
	last := len(psColumns) - 1
	for i, row := range rows {
		var p *proc.Process
		if i > 0 {
			p = procs[i-1]
		}
		cells := make([]string, len(row))
		for j, col := range row {
			switch {
			case j == last:
				cells[j] = col
			case psColumns[j] == "S":
				cells[j] = runewidth.FillRight(col, widths[j])
			default:
				cells[j] = runewidth.FillLeft(col, widths[j])
			}
		}
		mark := " "
		if p != nil && p == current {
			mark = "*"
		}
		line := strings.TrimRight(mark+strings.Join(cells, "  "), " ")
		if color && p != nil {
			switch {
			case p == current:
				line = psCurrent + line + ansi.Reset
			case !p.Alive():
				line = psZombie + line + ansi.Reset
			}
		}
		fmt.Fprintln(w, line)
	}
}
