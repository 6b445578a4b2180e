// Package irtext reads IR programs written as s-expressions.
//
//	(version "1.0.0")
//	(var x)
//	(string hello "hello, world")
//	(func main
//		(assign (var x) (+ (var x) 1))
//		(return (var x)))
package irtext

import (
	"bytes"
	"context"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ir"
)

type (
	parser struct {
		name string
		b    []byte

		prog *ir.Program

		declared map[string]*ir.Entity
		params   map[string]*ir.Entity
	}

	spaces uint64
)

// VersionConstraint is the range of IR text versions understood.
const VersionConstraint = "^1.0"

var space = newSpaces(' ', '\t', '\r', '\n')

func newSpaces(skip ...byte) (ss spaces) {
	for _, q := range skip {
		ss |= 1 << q
	}

	return
}

// Parse reads a whole IR program.
func Parse(ctx context.Context, name string, text []byte) (prog *ir.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "irtext: parse", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	p := &parser{
		name: name,
		b:    text,
		prog: &ir.Program{
			Scope: &ir.Scope{},
		},
		declared: map[string]*ir.Entity{},
	}

	i := p.skip(0)

	if p.keywordAt(i, "version") {
		i, err = p.version(i)
		if err != nil {
			return nil, err
		}
	}

	for i = p.skip(i); i < len(p.b); i = p.skip(i) {
		i, err = p.decl(i)
		if err != nil {
			return nil, err
		}
	}

	tr.Printw("program parsed", "funcs", len(p.prog.Funcs), "entities", len(p.prog.Scope.Entities))

	return p.prog, nil
}

func (p *parser) version(st int) (i int, err error) {
	i, _ = p.open(st)
	_, i, _ = p.atom(i)

	vst := p.skip(i)

	s, i, err := p.str(vst)
	if err != nil {
		return i, err
	}

	v, err := semver.NewVersion(s)
	if err != nil {
		return vst, p.wrap(err, vst, "version")
	}

	c, err := semver.NewConstraint(VersionConstraint)
	if err != nil {
		return vst, errors.Wrap(err, "version constraint")
	}

	if !c.Check(v) {
		return vst, p.errorf(vst, "unsupported version %v, want %v", v, VersionConstraint)
	}

	return p.close(i)
}

func (p *parser) decl(st int) (i int, err error) {
	i, err = p.open(st)
	if err != nil {
		return i, err
	}

	kst := p.skip(i)

	kw, i, err := p.atom(kst)
	if err != nil {
		return i, err
	}

	switch kw {
	case "var", "string":
		nst := p.skip(i)

		name, j, err := p.atom(nst)
		if err != nil {
			return j, err
		}

		i = j

		e, err := p.declare(nst, name, ir.EntityVar)
		if err != nil {
			return nst, err
		}

		if kw == "string" {
			e.Kind = ir.EntityString

			e.Value, i, err = p.str(p.skip(i))
			if err != nil {
				return i, err
			}
		}
	case "func":
		i, err = p.fn(i)
		if err != nil {
			return i, err
		}
	case "init":
		p.params = nil

		p.prog.Init, i, err = p.list(i)
		if err != nil {
			return i, errors.Wrap(err, "init")
		}
	case "version":
		return kst, p.errorf(kst, "version must be the first declaration")
	default:
		return kst, p.errorf(kst, "unexpected declaration: %v", kw)
	}

	return p.close(i)
}

func (p *parser) fn(st int) (i int, err error) {
	nst := p.skip(st)

	name, i, err := p.atom(nst)
	if err != nil {
		return i, err
	}

	e, err := p.declare(nst, name, ir.EntityFunc)
	if err != nil {
		return nst, err
	}

	f := &ir.Func{
		Name:   name,
		Entity: e,
	}

	p.params = map[string]*ir.Entity{}

	if j := p.skip(i); p.atomAt(j, "inline") {
		_, i, _ = p.atom(j)
		f.Inline = true
	}

	if j := p.skip(i); p.keywordAt(j, "params") {
		i, _ = p.open(j)
		_, i, _ = p.atom(p.skip(i))

		for i = p.skip(i); i < len(p.b) && p.b[i] != ')'; i = p.skip(i) {
			var pn string
			pst := i

			pn, i, err = p.atom(i)
			if err != nil {
				return i, err
			}

			if _, ok := p.params[pn]; ok {
				return pst, p.errorf(pst, "duplicate param: %v", pn)
			}

			pe := &ir.Entity{Name: pn, Kind: ir.EntityParam}

			p.params[pn] = pe
			f.Params = append(f.Params, pe)
		}

		i, err = p.close(i)
		if err != nil {
			return i, err
		}
	}

	f.Body, i, err = p.list(i)
	if err != nil {
		return i, errors.Wrap(err, "func %v", name)
	}

	p.params = nil
	p.prog.Funcs = append(p.prog.Funcs, f)

	return i, nil
}

// list parses nodes until the closing paren. The paren is not consumed.
func (p *parser) list(st int) (l []ir.Node, i int, err error) {
	for i = p.skip(st); i < len(p.b) && p.b[i] != ')'; i = p.skip(i) {
		var x ir.Node

		x, i, err = p.node(i)
		if err != nil {
			return nil, i, err
		}

		l = append(l, x)
	}

	return l, i, nil
}

func (p *parser) node(st int) (x ir.Node, i int, err error) {
	if st < len(p.b) && p.b[st] != '(' {
		s, i, err := p.atom(st)
		if err != nil {
			return nil, i, err
		}

		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, st, p.errorf(st, "int expected: %q", s)
		}

		return ir.IntConst(v), i, nil
	}

	i, err = p.open(st)
	if err != nil {
		return nil, i, err
	}

	kst := p.skip(i)

	kw, i, err := p.atom(kst)
	if err != nil {
		return nil, i, err
	}

	switch kw {
	case "var", "addr", "str":
		nst := p.skip(i)

		var name string
		name, i, err = p.atom(nst)
		if err != nil {
			return nil, i, err
		}

		e := p.entity(name)

		switch kw {
		case "var":
			x = ir.Var{Entity: e}
		case "addr":
			x = ir.Addr{Entity: e}
		default:
			if e.Kind != ir.EntityString {
				return nil, nst, p.errorf(nst, "not a string: %v", name)
			}

			x = ir.StrConst{Entity: e}
		}
	case "mem":
		var y ir.Node

		y, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		x = ir.Mem{X: y}
	case "assign":
		var l, r ir.Node

		l, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		r, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		x = ir.Assign{L: l, R: r}
	case "call":
		var name string

		name, i, err = p.atom(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		c := ir.Call{Func: p.function(name)}

		c.Args, i, err = p.list(i)
		if err != nil {
			return nil, i, errors.Wrap(err, "call %v", name)
		}

		x = c
	case "label", "jump":
		var l string

		l, i, err = p.atom(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		if kw == "label" {
			x = ir.Label{Name: l}
		} else {
			x = ir.Jump{To: l}
		}
	case "cjump":
		var c ir.Node
		var t, f string

		c, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		t, i, err = p.atom(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		f, i, err = p.atom(p.skip(i))
		if err != nil {
			return nil, i, err
		}

		x = ir.CJump{Cond: c, True: t, False: f}
	case "return":
		var r ir.Return

		if j := p.skip(i); j < len(p.b) && p.b[j] != ')' {
			r.X, i, err = p.node(j)
			if err != nil {
				return nil, i, err
			}
		}

		x = r
	default:
		if op, ok := ir.ParseUnaryOp(kw); ok {
			var y ir.Node

			y, i, err = p.node(p.skip(i))
			if err != nil {
				return nil, i, err
			}

			x = ir.Unary{Op: op, X: y}

			break
		}

		op, ok := ir.ParseOp(kw)
		if !ok {
			return nil, kst, p.errorf(kst, "unexpected node: %v", kw)
		}

		var l, r ir.Node

		l, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, errors.Wrap(err, "%v: left", kw)
		}

		r, i, err = p.node(p.skip(i))
		if err != nil {
			return nil, i, errors.Wrap(err, "%v: right", kw)
		}

		x = ir.Binary{Op: op, L: l, R: r}
	}

	i, err = p.close(i)
	if err != nil {
		return nil, i, err
	}

	return x, i, nil
}

func (p *parser) declare(pos int, name string, kind ir.EntityKind) (*ir.Entity, error) {
	if _, ok := p.declared[name]; ok {
		return nil, p.errorf(pos, "redeclared: %v", name)
	}

	e := p.prog.Scope.Lookup(name)
	if e == nil {
		e = &ir.Entity{Name: name}
		p.prog.Scope.Add(e)
	}

	e.Kind = kind
	p.declared[name] = e

	return e, nil
}

// entity finds name in params and then in the program scope.
// Undeclared names become variables.
func (p *parser) entity(name string) *ir.Entity {
	if e, ok := p.params[name]; ok {
		return e
	}

	e := p.prog.Scope.Lookup(name)
	if e == nil {
		e = &ir.Entity{Name: name, Kind: ir.EntityVar}
		p.prog.Scope.Add(e)
	}

	return e
}

func (p *parser) function(name string) *ir.Entity {
	e := p.prog.Scope.Lookup(name)
	if e == nil {
		e = &ir.Entity{Name: name, Kind: ir.EntityFunc}
		p.prog.Scope.Add(e)
	}

	return e
}

func (p *parser) skip(st int) (i int) {
	i = st

	for i < len(p.b) {
		if c := p.b[i]; c < 64 && space&(1<<c) != 0 {
			i++
			continue
		}

		if p.b[i] != ';' {
			break
		}

		for i < len(p.b) && p.b[i] != '\n' { // comment
			i++
		}
	}

	return i
}

func (p *parser) open(st int) (i int, err error) {
	i = p.skip(st)

	if i == len(p.b) || p.b[i] != '(' {
		return i, p.errorf(i, "'(' expected")
	}

	return i + 1, nil
}

func (p *parser) close(st int) (i int, err error) {
	i = p.skip(st)

	if i == len(p.b) || p.b[i] != ')' {
		return i, p.errorf(i, "')' expected")
	}

	return i + 1, nil
}

func (p *parser) atom(st int) (s string, i int, err error) {
	i = st

	for i < len(p.b) {
		c := p.b[i]

		if c == '(' || c == ')' || c == '"' || c == ';' || c < 64 && space&(1<<c) != 0 {
			break
		}

		i++
	}

	if i == st {
		return "", st, p.errorf(st, "atom expected")
	}

	return string(p.b[st:i]), i, nil
}

func (p *parser) str(st int) (s string, i int, err error) {
	i = st

	if i == len(p.b) || p.b[i] != '"' {
		return "", st, p.errorf(st, "string expected")
	}

	for i++; i < len(p.b) && p.b[i] != '"'; i++ {
		if p.b[i] == '\\' {
			i++
		}
	}

	if i >= len(p.b) {
		return "", st, p.errorf(st, "unterminated string")
	}

	i++

	s, err = strconv.Unquote(string(p.b[st:i]))
	if err != nil {
		return "", st, p.wrap(err, st, "string")
	}

	return s, i, nil
}

func (p *parser) atomAt(st int, s string) bool {
	a, _, err := p.atom(st)

	return err == nil && a == s
}

func (p *parser) keywordAt(st int, kw string) bool {
	if st >= len(p.b) || p.b[st] != '(' {
		return false
	}

	return p.atomAt(p.skip(st+1), kw)
}

// pos returns 1-based line and column of offset i.
func (p *parser) pos(i int) (line, col int) {
	if i > len(p.b) {
		i = len(p.b)
	}

	line = 1 + bytes.Count(p.b[:i], []byte{'\n'})
	col = 1 + i - (bytes.LastIndexByte(p.b[:i], '\n') + 1)

	return
}

func (p *parser) errorf(i int, format string, args ...any) error {
	line, col := p.pos(i)

	return errors.New("%v:%d:%d: "+format, append([]any{p.name, line, col}, args...)...)
}

func (p *parser) wrap(err error, i int, format string, args ...any) error {
	line, col := p.pos(i)

	return errors.Wrap(err, "%v:%d:%d: "+format, append([]any{p.name, line, col}, args...)...)
}
