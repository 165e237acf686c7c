package common

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lunixbochs/argjoy"
	"github.com/lunixbochs/ghostrace/ghost/sys/num"

	"github.com/tinykern/proccore/go/models"
)

// Memory is what handlers need to reach user buffers.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
	RangeValid(addr, size uint64, prot int) (bool, bool)
}

type KernelBase struct {
	// handler table, by syscall number
	Syscalls map[int]Syscall
	Mem      Memory
	Argjoy   argjoy.Argjoy
	Log      *models.Logger
	// longest string argument shown in syscall traces
	Strsize int

	noReturn bool
	// last argument decoding failure, argjoy may not preserve it
	argErr error
}

func (k *KernelBase) ProcKernel() *KernelBase {
	return k
}

type Kernel interface {
	ProcKernel() *KernelBase
}

// Numbers is the syscall table handlers are bound against.
var Numbers = num.Linux_x86_64

func camelToSnakeCase(name string) string {
	var words []string
	last := 0
	for i, c := range name {
		if unicode.IsUpper(c) {
			if i > 0 {
				words = append(words, name[last:i])
			}
			last = i
		}
	}
	words = append(words, name[last:])
	return strings.ToLower(strings.Join(words, "_"))
}

var returnAddrType = reflect.TypeOf(ReturnAddr(0))

// Init builds the handler table from kf's exported methods. A method becomes
// the handler for the syscall whose name is its snake_case name.
func Init(kf Kernel, mem Memory) {
	k := kf.ProcKernel()
	k.Mem = mem
	k.Syscalls = make(map[int]Syscall)
	byName := make(map[string]int, len(Numbers))
	for nr, name := range Numbers {
		byName[name] = nr
	}
	instance := reflect.ValueOf(kf)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		name := method.Name
		if strings.HasPrefix(name, "Literal") {
			name = strings.Replace(name, "Literal", "", 1)
		} else if r, size := utf8.DecodeRuneInString(name); size <= 0 || !unicode.IsUpper(r) {
			continue
		}
		name = camelToSnakeCase(name)
		nr, ok := byName[name]
		if !ok {
			continue
		}
		in := make([]reflect.Type, method.Type.NumIn()-1)
		for j := 1; j < method.Type.NumIn(); j++ {
			in[j-1] = method.Type.In(j)
		}
		wantsRet := len(in) > 0 && in[0] == returnAddrType
		if wantsRet {
			in = in[1:]
		}
		if len(in) > 6 {
			continue
		}
		out := make([]reflect.Type, method.Type.NumOut())
		for j := 0; j < method.Type.NumOut(); j++ {
			out[j] = method.Type.Out(j)
		}
		k.Syscalls[nr] = Syscall{
			Num:        nr,
			Name:       name,
			Kernel:     k,
			Instance:   instance,
			Method:     method,
			In:         in,
			Out:        out,
			ReturnAddr: wantsRet,
		}
	}
	k.Argjoy.Register(k.commonArgCodec)
	k.Argjoy.Register(argjoy.IntToInt)
}

func (k *KernelBase) Lookup(nr int) *Syscall {
	if sys, ok := k.Syscalls[nr]; ok {
		return &sys
	}
	return nil
}

// NoReturn tells the dispatcher not to write a return value: the handler
// replaced or abandoned the caller's frame.
func (k *KernelBase) NoReturn() {
	k.noReturn = true
}

// Dispatch runs the handler for nr. It never panics on user input: unknown
// numbers get -ENOSYS and undecodable arguments -EFAULT. write is false when
// the frame's return register must be left alone.
func (k *KernelBase) Dispatch(nr uint64, args [6]uint64, ret ReturnAddr) (val int64, write bool) {
	k.noReturn = false
	k.argErr = nil
	sys, ok := k.Syscalls[int(nr)]
	if !ok || nr > 1<<31 {
		return ENOSYS.Ret(), true
	}
	val, err := sys.Call(args[:], ret)
	if err != nil {
		k.Log.Debugf("%s: %v", sys.Name, err)
		if k.argErr != nil {
			err = k.argErr
		}
		return ArgErrno(err).Ret(), true
	}
	return val, !k.noReturn
}

// StraceCall formats the call half of an strace line. It must run before
// the handler, which may replace the memory the arguments point to.
func (k *KernelBase) StraceCall(pid int, nr uint64, args [6]uint64) string {
	sys, ok := k.Syscalls[int(nr)]
	if !ok {
		name := Numbers[int(nr)]
		if name == "" {
			name = "syscall"
		}
		return sprintf("[%d] %s(%#x)", pid, name, nr)
	}
	return sprintf("[%d] %s", pid, sys.Trace(args[:]))
}

// StraceRet formats the result half.
func (k *KernelBase) StraceRet(nr uint64, args [6]uint64, ret int64, write bool) string {
	if !write {
		return " = ?"
	}
	if sys, ok := k.Syscalls[int(nr)]; ok {
		return sys.TraceRet(args[:], ret)
	}
	return " = " + retString(ret)
}
