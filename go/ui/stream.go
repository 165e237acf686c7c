package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/mgutz/ansi"

	"github.com/tinykern/proccore/go/models/trace"
)

var kindColors = map[trace.Kind]string{
	trace.EvBoot:   ansi.ColorCode("green+b"),
	trace.EvFork:   ansi.ColorCode("green"),
	trace.EvExec:   ansi.ColorCode("cyan"),
	trace.EvExit:   ansi.ColorCode("yellow"),
	trace.EvReap:   ansi.ColorCode("yellow+h"),
	trace.EvSignal: ansi.ColorCode("red"),
	trace.EvFault:  ansi.ColorCode("red+b"),
	trace.EvHalt:   ansi.ColorCode("magenta"),
}

// StreamUI prints a recorded event stream.
type StreamUI struct {
	w     io.Writer
	Color bool
	// only print these kinds, nil prints all
	Kinds map[trace.Kind]bool
	// only print this pid, 0 prints all
	Pid int

	counts map[trace.Kind]uint64
	pids   map[int32]bool
	last   uint64
}

func NewStreamUI(w io.Writer, color bool) *StreamUI {
	return &StreamUI{w: w, Color: color, counts: make(map[trace.Kind]uint64), pids: make(map[int32]bool)}
}

func (s *StreamUI) Printf(f string, args ...interface{}) { fmt.Fprintf(s.w, f, args...) }
func (s *StreamUI) Println(args ...interface{})          { fmt.Fprintln(s.w, args...) }

func (s *StreamUI) OnStart(h trace.TraceHeader) {
	s.Printf("[trace: entry %s, slice %d steps, %d process slots]\n", h.Entry, h.SliceSteps, h.MaxProcs)
}

func (s *StreamUI) Feed(r *trace.Record) {
	s.counts[r.Kind]++
	s.pids[r.Pid] = true
	s.last = r.Tick
	if s.Kinds != nil && !s.Kinds[r.Kind] {
		return
	}
	if s.Pid != 0 && int(r.Pid) != s.Pid {
		return
	}
	line := r.String()
	if c, ok := kindColors[r.Kind]; ok && s.Color {
		line = c + line + ansi.Reset
	}
	s.Println(line)
}

// Play feeds every record from r, then prints a summary.
func (s *StreamUI) Play(r *trace.TraceReader) error {
	s.OnStart(r.Header)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		s.Feed(rec)
	}
	s.OnExit()
	return nil
}

func (s *StreamUI) OnExit() {
	kinds := make([]trace.Kind, 0, len(s.counts))
	var total uint64
	for k, n := range s.counts {
		kinds = append(kinds, k)
		total += n
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	s.Printf("[%d records, %d pids, last tick %d]\n", total, len(s.pids), s.last)
	for _, k := range kinds {
		s.Printf("  %-8s %d\n", k, s.counts[k])
	}
}
