package common

import (
	"github.com/lunixbochs/argjoy"
)

// UserStrings is a NULL-terminated array of pointers to strings, like argv.
type UserStrings []string

func (k *KernelBase) commonArgCodec(arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		switch v := arg.(type) {
		case *Buf:
			*v = NewBuf(k, reg)
		case *Obuf:
			*v = Obuf{NewBuf(k, reg)}
		case *Len:
			*v = Len(reg)
		case *Fd:
			*v = Fd(reg)
		case *Ptr:
			*v = Ptr(reg)
		case *int:
			*v = int(int64(reg))
		case *int32:
			*v = int32(reg)
		case *string:
			s, err := k.ReadStr(reg)
			if err != nil {
				k.argErr = err
				return err
			}
			*v = s
		case *UserStrings:
			a, err := k.ReadStrArray(reg)
			if err != nil {
				k.argErr = err
				return err
			}
			*v = UserStrings(a)
		default:
			return argjoy.NoMatch
		}
		return nil
	}
	return argjoy.NoMatch
}
