package vfs

import (
	"io"

	"github.com/tinykern/proccore/go/kernel/proc"
)

// Console is the terminal device behind stdio.
type Console struct {
	In  io.Reader
	Out io.Writer
}

func (c *Console) Open(flags int) (proc.File, error) {
	return consoleFile{c}, nil
}

type consoleFile struct{ c *Console }

func (f consoleFile) Read(p []byte) (int, error) {
	if f.c.In == nil {
		return 0, io.EOF
	}
	return f.c.In.Read(p)
}

func (f consoleFile) Write(p []byte) (int, error) {
	if f.c.Out == nil {
		return len(p), nil
	}
	return f.c.Out.Write(p)
}

func (f consoleFile) Close() error { return nil }
