package common

import (
	"strings"
	"testing"

	"github.com/tinykern/proccore/go/cpu/kx"
	"github.com/tinykern/proccore/go/models/cpu"
)

const (
	nrWrite  = 1
	nrOpen   = 2
	nrFork   = 57
	nrExecve = 59
	nrExit   = 60
	nrKill   = 62
)

type testKernel struct {
	KernelBase
	exitCode int
	forkRet  ReturnAddr
	opened   string
	argv     UserStrings
	written  []byte
}

func (k *testKernel) Exit(code int) int64 {
	k.exitCode = code
	k.NoReturn()
	return 0
}

func (k *testKernel) Fork(ret ReturnAddr) int64 {
	k.forkRet = ret
	return 2
}

func (k *testKernel) Open(path string, flags int) int64 {
	k.opened = path
	return 3
}

func (k *testKernel) Write(fd Fd, buf Buf, size Len) int64 {
	p, err := buf.Read(uint64(size))
	if err != nil {
		return EFAULT.Ret()
	}
	k.written = append(k.written, p...)
	return int64(size)
}

func (k *testKernel) Execve(path string, argv, envp UserStrings) int64 {
	k.argv = argv
	return ENOENT.Ret()
}

// not a syscall name, must not be bound
func (k *testKernel) Helper() int64 { return 1 }

var _ Kernel = (*testKernel)(nil)

const memBase uint64 = 0x400000

func newTestKernel(t *testing.T) (*testKernel, *kx.KxCpu) {
	c := kx.NewCpu()
	c.MemMapProt(memBase, 0x1000, cpu.PROT_READ|cpu.PROT_WRITE)
	c.MemMapProt(cpu.KernelSpace, 0x1000, cpu.PROT_READ|cpu.PROT_WRITE)
	k := &testKernel{}
	Init(k, c)
	return k, c
}

func putPtrs(c *kx.KxCpu, addr uint64, ptrs ...uint64) {
	for i, p := range ptrs {
		c.WriteUint(addr+uint64(i*8), 8, 0, p)
	}
}

func TestCamelToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Exit":       "exit",
		"ExitGroup":  "exit_group",
		"SchedYield": "sched_yield",
		"Wait4":      "wait4",
	}
	for in, want := range tests {
		if got := camelToSnakeCase(in); got != want {
			t.Errorf("%s -> %s, expecting %s", in, got, want)
		}
	}
}

func TestEmbeddedBase(t *testing.T) {
	k, _ := newTestKernel(t)
	var kf Kernel = k
	if kf.ProcKernel() != &k.KernelBase {
		t.Fatal("ProcKernel does not return the embedded base")
	}
	if b := NewBuf(k, memBase); b.K != &k.KernelBase {
		t.Fatal("buffer bound to another kernel")
	}
}

func TestDispatch(t *testing.T) {
	k, _ := newTestKernel(t)
	if len(k.Syscalls) != 5 {
		t.Errorf("bound %d handlers", len(k.Syscalls))
	}
	ret, write := k.Dispatch(nrExit, [6]uint64{43}, 0)
	if k.exitCode != 43 || write {
		t.Fatalf("exit: code %d write %v ret %d", k.exitCode, write, ret)
	}
	ret, write = k.Dispatch(nrFork, [6]uint64{}, 0x401008)
	if ret != 2 || !write || k.forkRet != 0x401008 {
		t.Fatalf("fork: ret %d, return address %#x", ret, k.forkRet)
	}
	if ret, _ := k.Dispatch(999, [6]uint64{}, 0); ret != ENOSYS.Ret() {
		t.Fatalf("unknown syscall returned %d", ret)
	}
	if ret, _ := k.Dispatch(nrKill, [6]uint64{}, 0); ret != ENOSYS.Ret() {
		t.Fatalf("unbound syscall returned %d", ret)
	}
	if ret, _ := k.Dispatch(^uint64(0), [6]uint64{}, 0); ret != ENOSYS.Ret() {
		t.Fatalf("huge syscall number returned %d", ret)
	}
}

func TestArguments(t *testing.T) {
	k, c := newTestKernel(t)
	c.MemWrite(memBase, []byte("/bin/init\x00"))
	if ret, _ := k.Dispatch(nrOpen, [6]uint64{memBase, 0}, 0); ret != 3 || k.opened != "/bin/init" {
		t.Fatalf("open: %d %q", ret, k.opened)
	}
	if ret, _ := k.Dispatch(nrWrite, [6]uint64{1, memBase, 4}, 0); ret != 4 || string(k.written) != "/bin" {
		t.Fatalf("write: %d %q", ret, k.written)
	}
	// pointers into the kernel or unmapped memory fault
	bad := []uint64{0, cpu.KernelSpace, 0x900000}
	for _, addr := range bad {
		if ret, _ := k.Dispatch(nrOpen, [6]uint64{addr}, 0); ret != EFAULT.Ret() {
			t.Errorf("open(%#x) = %d", addr, ret)
		}
		if ret, _ := k.Dispatch(nrWrite, [6]uint64{1, addr, 8}, 0); ret != EFAULT.Ret() {
			t.Errorf("write(%#x) = %d", addr, ret)
		}
	}
	long := strings.Repeat("a", MaxStr) + "\x00"
	c.MemWrite(memBase+0x100, []byte(long))
	if ret, _ := k.Dispatch(nrOpen, [6]uint64{memBase + 0x100}, 0); ret != ENAMETOOLONG.Ret() {
		t.Errorf("long path returned %d", ret)
	}
}

func TestStringArrays(t *testing.T) {
	k, c := newTestKernel(t)
	c.MemWrite(memBase, []byte("sh\x00-c\x00"))
	arr := memBase + 0x800
	putPtrs(c, arr, memBase, memBase+3, 0)
	k.Dispatch(nrExecve, [6]uint64{memBase, arr, 0}, 0)
	if len(k.argv) != 2 || k.argv[0] != "sh" || k.argv[1] != "-c" {
		t.Fatalf("argv %q", k.argv)
	}
	many := make([]uint64, MaxArgs+2)
	for i := range many[:MaxArgs+1] {
		many[i] = memBase
	}
	putPtrs(c, arr, many...)
	if ret, _ := k.Dispatch(nrExecve, [6]uint64{memBase, arr, 0}, 0); ret != E2BIG.Ret() {
		t.Fatalf("%d args returned %d", MaxArgs+1, ret)
	}
}

func TestErrno(t *testing.T) {
	if EAGAIN.Kind() != ResourceExhausted || ECHILD.Kind() != NotFound || EPERM.Kind() != PermissionDenied {
		t.Fatal("bad errno kinds")
	}
	if e, ok := AsErrno(-10); !ok || e != ECHILD {
		t.Fatal("AsErrno(-10)")
	}
	if _, ok := AsErrno(5); ok {
		t.Fatal("positive result decoded as errno")
	}
	if ECHILD.Error() != "ECHILD" {
		t.Fatalf("ECHILD named %q", ECHILD.Error())
	}
}

func TestStrace(t *testing.T) {
	k, c := newTestKernel(t)
	c.MemWrite(memBase, []byte("hi\n"))
	args := [6]uint64{1, memBase, 3}
	line := k.StraceCall(5, nrWrite, args)
	ret, write := k.Dispatch(nrWrite, args, 0)
	line += k.StraceRet(nrWrite, args, ret, write)
	if line != `[5] write(1, "hi\n", 3) = 3` {
		t.Fatalf("strace line %s", line)
	}
	line = k.StraceRet(nrOpen, args, ENOENT.Ret(), true)
	if line != " = -1 ENOENT" {
		t.Fatalf("error line %q", line)
	}
}
