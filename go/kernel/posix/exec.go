package posix

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/arch/x86_64"
	co "github.com/tinykern/proccore/go/kernel/common"
	"github.com/tinykern/proccore/go/kernel/proc"
	"github.com/tinykern/proccore/go/loader"
	"github.com/tinykern/proccore/go/models/cpu"
	"github.com/tinykern/proccore/go/models/trace"
)

// loadImage resolves and validates an executable without touching any
// process. Errors are errnos.
func (k *Kernel) loadImage(path string) (*loader.Image, error) {
	fi, err := k.FS.Stat(path)
	if err != nil {
		return nil, Errno(err)
	}
	if fi.IsDir() || !fi.Executable() {
		return nil, co.EACCES
	}
	data, err := k.FS.ReadFile(path)
	if err != nil {
		return nil, Errno(err)
	}
	img, err := loader.Load(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		k.Log.Debugf("exec %s: %v", path, err)
		return nil, co.ENOEXEC
	}
	return img, nil
}

// stackImage lays out argc, argv and envp the way the System V ABI does at
// process entry, with the strings above the pointer arrays. It returns the
// bytes to place at sp and the addresses of the argv and envp arrays.
func stackImage(top uint64, argv, envv []string) (data []byte, sp, argvp, envp uint64) {
	var strs []byte
	var ptrs []uint64
	size := uint64(0)
	for _, s := range append(append([]string(nil), argv...), envv...) {
		size += uint64(len(s)) + 1
	}
	strBase := top - size
	for _, s := range append(append([]string(nil), argv...), envv...) {
		ptrs = append(ptrs, strBase+uint64(len(strs)))
		strs = append(strs, s...)
		strs = append(strs, 0)
	}
	// argc, argv..., NULL, envp..., NULL
	words := 1 + len(argv) + 1 + len(envv) + 1
	sp = (strBase - uint64(words*8)) &^ 15
	buf := make([]byte, top-sp)
	w := buf
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(w, v)
		w = w[8:]
	}
	put(uint64(len(argv)))
	for _, p := range ptrs[:len(argv)] {
		put(p)
	}
	put(0)
	for _, p := range ptrs[len(argv):] {
		put(p)
	}
	put(0)
	copy(buf[strBase-sp:], strs)
	argvp = sp + 8
	envp = argvp + uint64(len(argv)+1)*8
	return buf, sp, argvp, envp
}

// exec replaces p's image and stack and gives it a fresh frame at entry.
// Nothing about p changes unless it succeeds.
func (k *Kernel) exec(p *proc.Process, path string, img *loader.Image, argv, envv []string) error {
	image, err := k.Regions.Alloc(img.Size(), cpu.PROT_READ|cpu.PROT_WRITE, path)
	if err != nil {
		return err
	}
	stack, err := k.Regions.Alloc(proc.StackSize, cpu.PROT_READ|cpu.PROT_WRITE, "[stack]")
	if err != nil {
		k.Regions.Release(image)
		return err
	}
	fail := func(err error) error {
		k.Regions.Release(image)
		k.Regions.Release(stack)
		return err
	}
	if err := k.Cpu.MemWrite(image.Base, img.Text); err != nil {
		return fail(err)
	}
	if len(img.Data) > 0 {
		if err := k.Cpu.MemWrite(image.Base+img.DataOff(), img.Data); err != nil {
			return fail(err)
		}
	}
	if err := k.Cpu.MemProt(image.Base, img.DataOff(), cpu.PROT_READ|cpu.PROT_EXEC); err != nil {
		return fail(err)
	}
	data, sp, argvp, envp := stackImage(stack.Top(), argv, envv)
	if uint64(len(data)) > stack.Size {
		return fail(co.E2BIG)
	}
	if err := k.Cpu.MemWrite(sp, data); err != nil {
		return fail(err)
	}
	frame := x86_64.UserFrame(image.Base+img.Entry, sp)
	frame.Rdi = uint64(len(argv))
	frame.Rsi = argvp
	frame.Rdx = envp
	addr := p.Context.KStackTop - x86_64.FrameSize
	if err := x86_64.WriteFrame(k.Cpu, addr, frame); err != nil {
		return fail(errors.Wrap(err, "installing exec frame"))
	}

	// point of no return
	k.Regions.Release(p.Image)
	k.Regions.Release(p.Stack)
	p.Image, p.Stack = image, stack
	p.Context.KSP = addr
	if p == k.current() && k.Frame != nil {
		*k.Frame = *frame
	}
	p.Files.CloseOnExec()
	p.Name = path
	p.Args = argv
	k.Tracer.Emit(trace.EvExec, p.Pid, int64(frame.Rip))
	k.Log.Debugf("exec pid %d: %s entry %#x sp %#x", p.Pid, path, frame.Rip, sp)
	return nil
}

func (k *Kernel) Execve(path string, argv, envp co.UserStrings) int64 {
	img, err := k.loadImage(path)
	if err != nil {
		return errRet(err)
	}
	if err := k.exec(k.current(), path, img, argv, envp); err != nil {
		k.Log.Debugf("execve %s: %v", path, err)
		return errRet(err)
	}
	k.NoReturn()
	return 0
}
