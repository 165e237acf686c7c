package posix

func (k *Kernel) SchedYield() int64 {
	k.current().Voluntary++
	k.Sched.YieldCurrent()
	return 0
}
