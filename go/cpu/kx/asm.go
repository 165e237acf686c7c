package kx

import (
	"bufio"
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sections are laid out text, data, bss. Data starts on the next SectionAlign boundary after text.
const SectionAlign = 0x1000

const (
	secText = iota
	secData
	secBss
)

// Program is the output of the assembler. Offsets are relative to the load base.
type Program struct {
	Text  []byte
	Data  []byte
	Bss   uint64
	Entry uint64
	// label -> offset from load base
	Labels map[string]uint64
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

func (p *Program) DataOff() uint64 { return alignUp(uint64(len(p.Text)), SectionAlign) }
func (p *Program) BssOff() uint64  { return p.DataOff() + alignUp(uint64(len(p.Data)), 8) }

type stmt struct {
	line    int
	section int
	off     uint64
	name    string
	args    []string
	size    uint64
}

type assembler struct {
	stmts   []*stmt
	labels  map[string]labelRef
	equ     map[string]int64
	sizes   [3]uint64
	section int
}

type labelRef struct {
	section int
	off     uint64
}

// Assemble translates KX assembly into a Program.
func Assemble(r io.Reader) (*Program, error) {
	a := &assembler{labels: make(map[string]labelRef), equ: make(map[string]int64)}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		if err := a.parseLine(lineno, scanner.Text()); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read failed")
	}
	return a.emit()
}

func AssembleString(src string) (*Program, error) {
	return Assemble(strings.NewReader(src))
}

func stripComment(line string) string {
	quoted := false
	for i, c := range line {
		switch {
		case c == '"' && (i == 0 || line[i-1] != '\\'):
			quoted = !quoted
		case (c == ';' || c == '#') && !quoted:
			return line[:i]
		}
	}
	return line
}

// splits on commas outside of quotes
func splitArgs(s string) []string {
	var args []string
	quoted, start := false, 0
	for i, c := range s {
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			quoted = !quoted
		case c == ',' && !quoted:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(args) > 0 {
		args = append(args, rest)
	}
	return args
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

func (a *assembler) parseLine(lineno int, line string) error {
	line = strings.TrimSpace(stripComment(line))
	for {
		i := strings.Index(line, ":")
		if i < 0 || strings.ContainsAny(line[:i], " \t\"[") {
			break
		}
		label := line[:i]
		if !isIdent(label) {
			return errors.Errorf("bad label %q", label)
		}
		if _, dup := a.labels[label]; dup {
			return errors.Errorf("duplicate label %q", label)
		}
		a.labels[label] = labelRef{a.section, a.sizes[a.section]}
		line = strings.TrimSpace(line[i+1:])
	}
	if line == "" {
		return nil
	}
	name, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	name = strings.ToLower(name)
	st := &stmt{line: lineno, section: a.section, name: name, args: splitArgs(rest)}

	switch name {
	case ".text":
		a.section = secText
		return nil
	case ".data":
		a.section = secData
		return nil
	case ".bss":
		a.section = secBss
		return nil
	case ".global", ".globl":
		return nil
	case ".equ", ".set":
		if len(st.args) != 2 || !isIdent(st.args[0]) {
			return errors.New(".equ wants NAME, value")
		}
		val, err := a.expr(st.args[1])
		if err != nil {
			return err
		}
		a.equ[st.args[0]] = val
		return nil
	case ".align":
		if len(st.args) != 1 {
			return errors.New(".align wants one argument")
		}
		n, err := a.expr(st.args[0])
		if err != nil || n <= 0 || n&(n-1) != 0 {
			return errors.Errorf("bad alignment %q", st.args[0])
		}
		cur := a.sizes[a.section]
		st.size = alignUp(cur, uint64(n)) - cur
	case ".zero", ".space":
		if len(st.args) != 1 {
			return errors.Errorf("%s wants one argument", name)
		}
		n, err := a.expr(st.args[0])
		if err != nil || n < 0 {
			return errors.Errorf("bad size %q", st.args[0])
		}
		st.size = uint64(n)
	case ".string", ".asciz", ".ascii":
		var total uint64
		for _, arg := range st.args {
			s, err := strconv.Unquote(arg)
			if err != nil {
				return errors.Errorf("bad string %s", arg)
			}
			total += uint64(len(s))
			if name != ".ascii" {
				total++
			}
		}
		st.size = total
	case ".quad":
		st.size = 8 * uint64(len(st.args))
	case ".byte":
		st.size = uint64(len(st.args))
	default:
		if strings.HasPrefix(name, ".") {
			return errors.Errorf("unknown directive %s", name)
		}
		if _, ok := opNames[name]; !ok {
			return errors.Errorf("unknown instruction %q", name)
		}
		if a.section != secText {
			return errors.Errorf("instruction %q outside .text", name)
		}
		st.size = InsSize
	}
	if a.section == secBss && name != ".zero" && name != ".space" && name != ".align" {
		return errors.Errorf("%s not allowed in .bss", name)
	}
	st.off = a.sizes[a.section]
	a.sizes[a.section] += st.size
	a.stmts = append(a.stmts, st)
	return nil
}

// expr evaluates sums and differences of numbers, character literals and .equ names.
func (a *assembler) expr(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty expression")
	}
	var total int64
	sign := int64(1)
	for s != "" {
		switch s[0] {
		case '+':
			s = strings.TrimSpace(s[1:])
			continue
		case '-':
			sign = -sign
			s = strings.TrimSpace(s[1:])
			continue
		}
		end := strings.IndexAny(s, "+-")
		if s[0] == '\'' {
			end = strings.Index(s[1:], "'")
			if end >= 0 {
				end += 2
			}
		}
		term := s
		if end > 0 {
			term = s[:end]
			s = strings.TrimSpace(s[end:])
		} else {
			s = ""
		}
		term = strings.TrimSpace(term)
		val, err := a.term(term)
		if err != nil {
			return 0, err
		}
		total += sign * val
		sign = 1
	}
	return total, nil
}

func (a *assembler) term(t string) (int64, error) {
	if v, ok := a.equ[t]; ok {
		return v, nil
	}
	if len(t) >= 3 && t[0] == '\'' && t[len(t)-1] == '\'' {
		s, _, _, err := strconv.UnquoteChar(t[1:len(t)-1], '\'')
		if err != nil {
			return 0, errors.Errorf("bad character %s", t)
		}
		return int64(s), nil
	}
	v, err := strconv.ParseInt(t, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(t, 0, 64)
		if uerr != nil {
			return 0, errors.Errorf("bad number %q", t)
		}
		v = int64(u)
	}
	return v, nil
}

func (a *assembler) base(section int) uint64 {
	switch section {
	case secData:
		return alignUp(a.sizes[secText], SectionAlign)
	case secBss:
		return a.base(secData) + alignUp(a.sizes[secData], 8)
	}
	return 0
}

func (a *assembler) addr(label string) (uint64, bool) {
	ref, ok := a.labels[label]
	if !ok {
		return 0, false
	}
	return a.base(ref.section) + ref.off, true
}

// rel resolves a label (or [rip+label]) relative to the end of the instruction at pc
func (a *assembler) rel(arg string, pc uint64) (int64, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		inner := strings.TrimSpace(arg[1 : len(arg)-1])
		if !strings.HasPrefix(inner, "rip") {
			return 0, errors.Errorf("expected [rip+label], got %s", arg)
		}
		arg = strings.TrimLeft(strings.TrimSpace(inner[3:]), "+ ")
	}
	target, ok := a.addr(arg)
	if !ok {
		return 0, errors.Errorf("undefined label %q", arg)
	}
	return int64(target) - int64(pc+InsSize), nil
}

func reg(s string) (int, error) {
	if r, ok := RegEnum(strings.ToLower(strings.TrimSpace(s))); ok {
		return r, nil
	}
	return 0, errors.Errorf("expected register, got %q", s)
}

// parses [reg], [reg+expr], [reg-expr]
func (a *assembler) memArg(s string) (int, int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return 0, 0, errors.Errorf("expected memory operand, got %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	i := strings.IndexAny(inner, "+-")
	if i < 0 {
		r, err := reg(inner)
		return r, 0, err
	}
	r, err := reg(inner[:i])
	if err != nil {
		return 0, 0, err
	}
	off, err := a.expr(inner[i:])
	return r, off, err
}

// reg or immediate
func (a *assembler) srcArg(s string) (src, flags int, imm int64, err error) {
	if r, rerr := reg(s); rerr == nil {
		return r, 0, 0, nil
	}
	imm, err = a.expr(s)
	if err == nil && (imm > 0x7fffffff || imm < -0x80000000) {
		err = errors.Errorf("immediate %s out of range", s)
	}
	return 0, F_IMM, imm, err
}

func (a *assembler) encode(st *stmt) ([]byte, error) {
	op := opNames[st.name]
	data := opData[op]
	want := map[int]int{A_NONE: 0, A_RR: 2, A_REL: 1, A_LOAD: 2, A_STORE: 2, A_LEA: 2, A_SRC: 1, A_DST: 1, A_IMM: 1}[data.arg]
	if len(st.args) != want {
		return nil, errors.Errorf("%s takes %d operands, got %d", st.name, want, len(st.args))
	}
	pc := st.off
	switch data.arg {
	case A_NONE:
		return Encode(op, 0, 0, 0, 0), nil
	case A_RR:
		dst, err := reg(st.args[0])
		if err != nil {
			return nil, err
		}
		src, flags, imm, err := a.srcArg(st.args[1])
		if err != nil {
			return nil, err
		}
		return Encode(op, dst, src, flags, imm), nil
	case A_REL:
		off, err := a.rel(st.args[0], pc)
		if err != nil {
			return nil, err
		}
		return Encode(op, 0, 0, 0, off), nil
	case A_LOAD:
		dst, err := reg(st.args[0])
		if err != nil {
			return nil, err
		}
		base, off, err := a.memArg(st.args[1])
		if err != nil {
			return nil, err
		}
		return Encode(op, dst, base, 0, off), nil
	case A_STORE:
		base, off, err := a.memArg(st.args[0])
		if err != nil {
			return nil, err
		}
		src, err := reg(st.args[1])
		if err != nil {
			return nil, err
		}
		return Encode(op, base, src, 0, off), nil
	case A_LEA:
		dst, err := reg(st.args[0])
		if err != nil {
			return nil, err
		}
		off, err := a.rel(st.args[1], pc)
		if err != nil {
			return nil, err
		}
		return Encode(op, dst, 0, 0, off), nil
	case A_SRC:
		src, flags, imm, err := a.srcArg(st.args[0])
		if err != nil {
			return nil, err
		}
		return Encode(op, 0, src, flags, imm), nil
	case A_DST:
		dst, err := reg(st.args[0])
		if err != nil {
			return nil, err
		}
		return Encode(op, dst, 0, 0, 0), nil
	case A_IMM:
		imm, err := a.expr(st.args[0])
		if err != nil {
			return nil, err
		}
		return Encode(op, 0, 0, F_IMM, imm), nil
	}
	return nil, errors.Errorf("cannot encode %s", st.name)
}

func (a *assembler) directive(st *stmt, out []byte) error {
	switch st.name {
	case ".string", ".asciz", ".ascii":
		pos := 0
		for _, arg := range st.args {
			s, _ := strconv.Unquote(arg)
			pos += copy(out[pos:], s)
			if st.name != ".ascii" {
				out[pos] = 0
				pos++
			}
		}
	case ".quad":
		for i, arg := range st.args {
			v, err := a.expr(arg)
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
	case ".byte":
		for i, arg := range st.args {
			v, err := a.expr(arg)
			if err != nil || v < -128 || v > 255 {
				return errors.Errorf("bad byte %q", arg)
			}
			out[i] = byte(v)
		}
	}
	return nil
}

func (a *assembler) emit() (*Program, error) {
	prog := &Program{
		Text:   make([]byte, a.sizes[secText]),
		Data:   make([]byte, a.sizes[secData]),
		Bss:    a.sizes[secBss],
		Labels: make(map[string]uint64, len(a.labels)),
	}
	for _, st := range a.stmts {
		var buf []byte
		switch st.section {
		case secText:
			buf = prog.Text[st.off : st.off+st.size]
		case secData:
			buf = prog.Data[st.off : st.off+st.size]
		default:
			continue
		}
		if strings.HasPrefix(st.name, ".") {
			if err := a.directive(st, buf); err != nil {
				return nil, errors.Wrapf(err, "line %d", st.line)
			}
			continue
		}
		if st.off%InsSize != 0 {
			return nil, errors.Errorf("line %d: misaligned instruction", st.line)
		}
		code, err := a.encode(st)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", st.line)
		}
		copy(buf, code)
	}
	for name := range a.labels {
		prog.Labels[name], _ = a.addr(name)
	}
	if entry, ok := prog.Labels["_start"]; ok {
		prog.Entry = entry
	}
	return prog, nil
}
