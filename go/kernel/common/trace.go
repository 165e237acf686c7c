package common

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var sprintf = fmt.Sprintf

func hex(a interface{}) string {
	tmp := fmt.Sprintf("0x%x", a)
	if strings.HasPrefix(tmp, "0x-") {
		tmp = "-0x" + tmp[3:]
	}
	return tmp
}

// repr quotes p, truncated to max bytes.
func repr(p []byte, max int) string {
	if max > 0 && len(p) > max {
		return strconv.Quote(string(p[:max])) + "..."
	}
	return strconv.Quote(string(p))
}

func retString(ret int64) string {
	if e, ok := AsErrno(ret); ok {
		return fmt.Sprintf("-1 %s", ErrnoName(e))
	}
	return fmt.Sprintf("%d", ret)
}

func (s Syscall) traceArg(args ...interface{}) string {
	switch arg := args[0].(type) {
	case Obuf:
		return hex(arg.Addr)
	case Buf:
		if len(args) > 1 {
			if length, ok := args[1].(Len); ok {
				if mem, err := arg.Read(uint64(length)); err == nil {
					return repr(mem, s.Kernel.Strsize)
				}
			}
		}
		return hex(arg.Addr)
	case Ptr:
		return hex(arg)
	case Fd:
		return fmt.Sprintf("%d", int32(arg))
	case string:
		return repr([]byte(arg), s.Kernel.Strsize)
	case UserStrings:
		out := make([]string, len(arg))
		for i, a := range arg {
			out[i] = repr([]byte(a), s.Kernel.Strsize)
		}
		return "[" + strings.Join(out, ", ") + "]"
	case uint64:
		return hex(arg)
	default:
		return fmt.Sprintf("%v", arg)
	}
}

func (s Syscall) traceArgs(regs []uint64) string {
	inRef, err := s.Kernel.Argjoy.Convert(s.In, false, regs[:len(s.In)])
	if err != nil {
		return err.Error()
	}
	in := make([]interface{}, len(inRef))
	for i, val := range inRef {
		in[i] = val.Interface()
	}
	ret := make([]string, len(in))
	for i := range in {
		ret[i] = s.traceArg(in[i:]...)
	}
	return strings.Join(ret, ", ")
}

func (s Syscall) Trace(regs []uint64) string {
	return fmt.Sprintf("%s(%s)", s.Name, s.traceArgs(regs))
}

func (s Syscall) TraceRet(args []uint64, ret int64) string {
	var out []string
	for i, typ := range s.In {
		if typ == reflect.TypeOf(Obuf{}) && len(args) > i+1 && ret >= 0 && uint64(ret) <= args[i+1] {
			if mem, err := (Buf{Addr: args[i], K: s.Kernel}).Read(uint64(ret)); err == nil {
				out = append(out, repr(mem, s.Kernel.Strsize))
			}
		}
	}
	out = append(out, retString(ret))
	return " = " + strings.Join(out, ", ")
}
