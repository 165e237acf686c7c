package trace

import (
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var TRACE_MAGIC = "KTRC"

const TRACE_VERSION = 1

type TraceHeader struct {
	// MAGIC ("KTRC")
	Magic   string `struc:"[4]byte"`
	Version uint32
	// canonical trap entry convention. Right-null-padded.
	Entry string `struc:"[8]byte"`
	// instructions per time slice
	SliceSteps uint64
	MaxProcs   uint32
}

// TraceWriter streams records through snappy after an uncompressed header.
type TraceWriter struct {
	w  io.WriteCloser
	zw *snappy.Writer
}

func NewWriter(w io.WriteCloser, header TraceHeader) (*TraceWriter, error) {
	header.Magic = TRACE_MAGIC
	header.Version = TRACE_VERSION
	if err := struc.Pack(w, &header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (t *TraceWriter) Pack(r *Record) error {
	return errors.Wrap(struc.Pack(t.zw, r), "failed to pack record")
}

func (t *TraceWriter) Close() error {
	if err := t.zw.Close(); err != nil {
		t.w.Close()
		return err
	}
	return t.w.Close()
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	if t.Header.Version != TRACE_VERSION {
		return nil, errors.Errorf("unsupported trace version %d", t.Header.Version)
	}
	t.Header.Entry = strings.TrimRight(t.Header.Entry, "\x00")
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns io.EOF after the last record.
func (t *TraceReader) Next() (*Record, error) {
	var r Record
	if err := struc.Unpack(t.zr, &r); err != nil {
		if errors.Cause(err) == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "failed to unpack record")
	}
	return &r, nil
}

func (t *TraceReader) Close() {
	t.zr.Reset(nil)
	t.r.Close()
}
