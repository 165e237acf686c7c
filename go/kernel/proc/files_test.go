package proc

import (
	"bytes"
	"testing"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models/cpu"
)

type testFile struct {
	bytes.Buffer
	closed int
}

func (f *testFile) Close() error {
	f.closed++
	return nil
}

func TestFileTable(t *testing.T) {
	var ft FileTable
	f := &testFile{}
	fd, err := ft.Install(NewOpenFile(f, "/dev/console", 0), false)
	if err != nil || fd != 0 {
		t.Fatalf("install: fd %d err %v", fd, err)
	}
	dup, err := ft.Dup(fd)
	if err != nil || dup != 1 {
		t.Fatalf("dup: fd %d err %v", dup, err)
	}
	child := ft.Clone()
	of, _ := ft.Get(0)
	if of.Refs() != 4 {
		t.Fatalf("refs = %d after dup and fork", of.Refs())
	}
	ft.CloseAll()
	if f.closed != 0 {
		t.Fatal("closed while the child still holds it")
	}
	child.Close(0)
	child.Close(1)
	if f.closed != 1 {
		t.Fatalf("closed %d times", f.closed)
	}
	if err := child.Close(1); err != ErrBadFd {
		t.Fatalf("double close: %v", err)
	}
	for i := 0; i < MaxOpenFiles; i++ {
		ft.Install(NewOpenFile(&testFile{}, "x", 0), i%2 == 0)
	}
	if _, err := ft.Install(NewOpenFile(&testFile{}, "x", 0), false); err != ErrTooManyFiles {
		t.Fatalf("overfull table: %v", err)
	}
	ft.CloseOnExec()
	if ft.Count() != MaxOpenFiles/2 || ft.CloseOnExecSet(1) {
		t.Fatalf("%d files left after exec", ft.Count())
	}
}

func TestMemory(t *testing.T) {
	c := kx.NewCpu()
	mem := NewMemory(c, 3)
	img, err := mem.Alloc(0x1800, cpu.PROT_ALL, "image")
	if err != nil {
		t.Fatal(err)
	}
	if img.Base != UserBase || img.Size != 0x2000 {
		t.Fatalf("bad region %s", img)
	}
	c.MemWrite(img.Base+0x10, []byte("data"))
	cp, err := mem.Copy(img, "copy")
	if err != nil {
		t.Fatal(err)
	}
	if cp.Base != UserBase+RegionSize {
		t.Fatalf("copy at %#x", cp.Base)
	}
	got, _ := c.MemRead(cp.Base+0x10, 4)
	if string(got) != "data" {
		t.Fatalf("copy holds %q", got)
	}
	mem.Ref(img)
	mem.Release(img)
	if mapped, _ := c.RangeValid(img.Base, img.Size, 0); !mapped {
		t.Fatal("shared region unmapped early")
	}
	mem.Release(img)
	if mapped, _ := c.RangeValid(img.Base, 1, 0); mapped {
		t.Fatal("region still mapped")
	}
	if err := mem.Release(img); err == nil {
		t.Fatal("released a dead region")
	}
	mem.Alloc(StackSize, cpu.PROT_READ|cpu.PROT_WRITE, "a")
	mem.Alloc(StackSize, cpu.PROT_READ|cpu.PROT_WRITE, "b")
	if _, err := mem.Alloc(StackSize, cpu.PROT_READ, "c"); err != ErrNoMemory {
		t.Fatalf("alloc past the last slot: %v", err)
	}
	if mem.InUse() != 3 {
		t.Fatalf("%d slots in use", mem.InUse())
	}
}
