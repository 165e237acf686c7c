package trace

// Tracer stamps records with the kernel tick and writes them. A nil Tracer
// discards everything. The first write error stops further writes and is
// kept in Err.
type Tracer struct {
	W     *TraceWriter
	Clock func() uint64
	Err   error
	// records written
	Count uint64
}

func (t *Tracer) Emit(kind Kind, pid int, args ...int64) {
	if t == nil || t.W == nil || t.Err != nil {
		return
	}
	r := Record{Kind: kind, Pid: int32(pid)}
	if t.Clock != nil {
		r.Tick = t.Clock()
	}
	for i, v := range args {
		switch i {
		case 0:
			r.A0 = v
		case 1:
			r.A1 = v
		case 2:
			r.A2 = v
		}
	}
	if err := t.W.Pack(&r); err != nil {
		t.Err = err
		return
	}
	t.Count++
}

func (t *Tracer) Close() error {
	if t == nil || t.W == nil {
		return nil
	}
	err := t.W.Close()
	if t.Err != nil {
		return t.Err
	}
	return err
}
