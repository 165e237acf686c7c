package proccore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinykern/proccore/go/models"
	"github.com/tinykern/proccore/go/models/cpu"
)

// Task is the machine the kernel runs on, plus the views of it the monitor
// and the fatal path need.
type Task struct {
	cpu.Cpu

	arch *models.Arch
}

func NewTask(c cpu.Cpu, arch *models.Arch) *Task {
	return &Task{Cpu: c, arch: arch}
}

func (t *Task) Arch() *models.Arch {
	return t.arch
}

// Dis disassembles size bytes at addr, one instruction per line.
func (t *Task) Dis(addr, size uint64) (string, error) {
	mem, err := t.MemRead(addr, size)
	if err != nil {
		return "", err
	}
	ins, err := t.arch.Dis.Dis(mem, addr)
	lines := make([]string, 0, len(ins))
	for _, i := range ins {
		lines = append(lines, fmt.Sprintf("%#x: %s %s", i.Addr(), i.Mnemonic(), i.OpStr()))
	}
	return strings.Join(lines, "\n"), err
}

type mapper interface {
	Mappings() cpu.Pages
}

// Mappings lists the machine's memory map, when the CPU keeps one.
func (t *Task) Mappings() cpu.Pages {
	if m, ok := t.Cpu.(mapper); ok {
		return m.Mappings()
	}
	return nil
}

func (t *Task) RegDump() ([]models.RegVal, error) {
	return t.arch.RegDump(t.Cpu)
}

func (t *Task) RegRead(enum int) (uint64, error) {
	val, err := t.Cpu.RegRead(enum)
	return val, errors.Wrap(err, "t.RegRead() failed")
}

func (t *Task) MemRead(addr, size uint64) ([]byte, error) {
	data, err := t.Cpu.MemRead(addr, size)
	return data, errors.Wrap(err, "t.MemRead() failed")
}
