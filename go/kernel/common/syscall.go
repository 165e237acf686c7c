package common

import (
	"reflect"

	"github.com/pkg/errors"
)

// ReturnAddr is the user address a trap resumes at. A handler whose first
// parameter has this type receives it from the dispatcher.
type ReturnAddr uint64

type Syscall struct {
	Num        int
	Name       string
	Kernel     *KernelBase
	Instance   reflect.Value
	Method     reflect.Method
	In         []reflect.Type
	Out        []reflect.Type
	ReturnAddr bool
}

var int64Type = reflect.TypeOf(int64(0))

// Call converts the raw argument registers and runs the handler.
func (sys Syscall) Call(args []uint64, ret ReturnAddr) (int64, error) {
	in := make([]reflect.Value, 0, len(sys.In)+2)
	in = append(in, sys.Instance)
	if sys.ReturnAddr {
		in = append(in, reflect.ValueOf(ret))
	}
	converted, err := sys.Kernel.Argjoy.Convert(sys.In, false, args[:len(sys.In)])
	if err != nil {
		return 0, errors.Wrapf(err, "converting arguments to %s()", sys.Name)
	}
	in = append(in, converted...)
	out := sys.Method.Func.Call(in)
	if len(out) > 0 && out[0].Type().ConvertibleTo(int64Type) {
		return out[0].Convert(int64Type).Int(), nil
	}
	return 0, nil
}
