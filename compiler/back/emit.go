package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ins"
	"github.com/slowlang/lower/compiler/ir"
)

type (
	// Emitter selects instructions for ir functions.
	Emitter struct {
		opt Options

		f *Function

		// top is the first free slot of f.Tmps.
		top int

		// depth is the expression nesting level.
		// Zero means the value of the node is not used.
		depth int
	}
)

func NewEmitter(opt Options) *Emitter {
	return &Emitter{opt: opt}
}

func (e *Emitter) Emit(ctx context.Context, fs []*ir.Func) (_ []*Function, err error) {
	r := make([]*Function, 0, len(fs))

	for _, fn := range fs {
		f, err := e.EmitFunc(ctx, fn)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name)
		}

		r = append(r, f)
	}

	return r, nil
}

func (e *Emitter) EmitFunc(ctx context.Context, fn *ir.Func) (f *Function, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "emit func", "name", fn.Name, "stmts", len(fn.Body))
	defer tr.Finish("err", &err)

	f = newFunction(fn)

	if e.opt.InlineFunctions && fn.Inline {
		f.Inlined = true

		tr.Printw("skip inlined function")

		return f, nil
	}

	e.f = f
	defer func() { e.f = nil }()

	f.Code = []ins.ID{}

	for i, x := range fn.Body {
		e.top, e.depth = 0, 0

		_, err = e.node(x)
		if err != nil {
			return nil, errors.Wrap(err, "stmt %d", i)
		}
	}

	if tr.If("dump_ins") {
		for i, id := range f.Code {
			x := f.Ins[id]

			tr.Printw("ins", "i", i, "id", id, "typ", tlog.NextAsType, x, "val", x.String())
		}
	}

	tr.Printw("function emitted", "ins", len(f.Code), "tmps", len(f.Tmps))

	return f, nil
}

// expr lowers a node whose value is used.
func (e *Emitter) expr(x ir.Node) (ins.Operand, error) {
	e.depth++
	defer func() { e.depth-- }()

	if a, ok := e.matchAddress(x, false); ok {
		return e.fuse(a, false)
	}

	return e.node(x)
}

func (e *Emitter) node(x ir.Node) (ins.Operand, error) {
	switch x := x.(type) {
	case ir.IntConst:
		return ins.Imm(x), nil
	case ir.StrConst:
		if x.Entity == nil {
			return nil, internalf("string constant without entity")
		}

		r := e.tmp()
		e.add(&ins.Lea{Dst: r, Src: ins.EntityAddr(x.Entity)})

		return r, nil
	case ir.Var:
		if x.Entity == nil {
			return nil, internalf("var without entity")
		}

		r := e.tmp()
		e.add(&ins.Move{Dst: r, Src: ins.EntityAddr(x.Entity)})

		return r, nil
	case ir.Addr:
		if x.Entity == nil {
			return nil, internalf("addr without entity")
		}

		return ins.EntityAddr(x.Entity), nil
	case ir.Mem:
		return e.mem(x)
	case ir.Binary:
		return e.binary(x)
	case ir.Unary:
		return e.unary(x)
	case ir.Call:
		return e.call(x)
	case ir.Assign:
		return nil, e.assign(x)
	case ir.CJump:
		cond, err := e.expr(x.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "cjump cond")
		}

		e.add(&ins.CJump{Cond: cond, True: x.True, False: x.False})

		return nil, nil
	case ir.Jump:
		e.add(&ins.Jmp{To: x.To})

		return nil, nil
	case ir.Label:
		e.add(&ins.Label{Name: x.Name})

		return nil, nil
	case ir.Return:
		if x.X == nil {
			e.add(&ins.Return{})

			return nil, nil
		}

		v, err := e.expr(x.X)
		if err != nil {
			return nil, errors.Wrap(err, "return")
		}

		e.add(&ins.Return{X: v})

		return nil, nil
	default:
		return nil, internalf("unsupported ir node: %T", x)
	}
}

func (e *Emitter) assign(x ir.Assign) (err error) {
	var dst ins.Operand

	switch l := x.L.(type) {
	case ir.Var:
		if l.Entity == nil {
			return internalf("assign to var without entity")
		}

		dst = ins.EntityAddr(l.Entity)
	case ir.Addr:
		if l.Entity == nil {
			return internalf("assign to addr without entity")
		}

		dst = ins.EntityAddr(l.Entity)
	case ir.IntConst, ir.StrConst, nil:
		return internalf("unsupported assign target: %T", x.L)
	default:
		lhs, err := e.expr(x.L)
		if err != nil {
			return errors.Wrap(err, "assign target")
		}

		r, err := e.reg(lhs)
		if err != nil {
			return errors.Wrap(err, "assign target")
		}

		dst = ins.BaseOffset(r, nil, 1, 0)
	}

	e.depth++
	src, err := e.expr(x.R)
	e.depth--
	if err != nil {
		return errors.Wrap(err, "assign value")
	}

	e.add(&ins.Move{Dst: dst, Src: src})

	return nil
}

func (e *Emitter) binary(x ir.Binary) (_ ins.Operand, err error) {
	if c, ok := x.L.(ir.IntConst); ok && x.Op.Commutative() {
		l, err := e.expr(x.R)
		if err != nil {
			return nil, err
		}

		return e.arith(x.Op, l, ins.Imm(c))
	}

	if c, ok := x.R.(ir.IntConst); ok {
		l, err := e.expr(x.L)
		if err != nil {
			return nil, err
		}

		return e.arith(x.Op, l, ins.Imm(c))
	}

	l, err := e.expr(x.L)
	if err != nil {
		return nil, err
	}

	if imm, ok := l.(ins.Imm); ok {
		l, err = e.reg(imm)
		if err != nil {
			return nil, err
		}
	}

	mark := e.top

	r, err := e.expr(x.R)
	if err != nil {
		return nil, err
	}

	res, err := e.arith(x.Op, l, r)
	if err != nil {
		return nil, err
	}

	e.top = mark // right operand is consumed

	return res, nil
}

// arith emits dst = l op r and returns dst.
// l is turned into a register first.
func (e *Emitter) arith(op ir.Op, l, r ins.Operand) (ins.Operand, error) {
	if a, ok := l.(*ins.Addr); ok && a.Kind() == ins.AddrEntity {
		return nil, internalf("unhandled entity address in binary %v: %v", op, a)
	}

	dst, err := e.reg(l)
	if err != nil {
		return nil, errors.Wrap(err, "binary %v", op)
	}

	var x ins.Instr

	switch op {
	case ir.Add:
		x = &ins.Arith{Op: ins.Add, Dst: dst, Src: r}
	case ir.Sub:
		x = &ins.Arith{Op: ins.Sub, Dst: dst, Src: r}
	case ir.Mul:
		x = &ins.Arith{Op: ins.Mul, Dst: dst, Src: r}
	case ir.Div:
		x = &ins.Arith{Op: ins.Div, Dst: dst, Src: r}
	case ir.Mod:
		x = &ins.Arith{Op: ins.Mod, Dst: dst, Src: r}
	case ir.BitAnd, ir.LogicAnd:
		x = &ins.Arith{Op: ins.And, Dst: dst, Src: r}
	case ir.BitOr, ir.LogicOr:
		x = &ins.Arith{Op: ins.Or, Dst: dst, Src: r}
	case ir.BitXor:
		x = &ins.Arith{Op: ins.Xor, Dst: dst, Src: r}
	case ir.Shl:
		x = &ins.Arith{Op: ins.Sal, Dst: dst, Src: r}
	case ir.Shr:
		x = &ins.Arith{Op: ins.Sar, Dst: dst, Src: r}
	case ir.Eq:
		x = &ins.Cmp{Op: ins.Eq, L: dst, R: r}
	case ir.Ne:
		x = &ins.Cmp{Op: ins.Ne, L: dst, R: r}
	case ir.Lt:
		x = &ins.Cmp{Op: ins.Lt, L: dst, R: r}
	case ir.Le:
		x = &ins.Cmp{Op: ins.Le, L: dst, R: r}
	case ir.Gt:
		x = &ins.Cmp{Op: ins.Gt, L: dst, R: r}
	case ir.Ge:
		x = &ins.Cmp{Op: ins.Ge, L: dst, R: r}
	default:
		return nil, internalf("invalid operator: %v", op)
	}

	e.add(x)

	return dst, nil
}

func (e *Emitter) unary(x ir.Unary) (ins.Operand, error) {
	v, err := e.expr(x.X)
	if err != nil {
		return nil, err
	}

	// unary instructions work in place
	r, err := e.reg(v)
	if err != nil {
		return nil, errors.Wrap(err, "unary %v", x.Op)
	}

	switch x.Op {
	case ir.Neg:
		e.add(&ins.Neg{X: r})
	case ir.BitNot:
		e.add(&ins.Not{X: r})
	case ir.LogicNot:
		e.add(&ins.Cmp{Op: ins.Eq, L: r, R: ins.Imm(0)})
	default:
		return nil, internalf("invalid unary operator: %v", x.Op)
	}

	return r, nil
}

func (e *Emitter) call(x ir.Call) (ins.Operand, error) {
	if x.Func == nil {
		return nil, internalf("call without function entity")
	}

	args := make([]ins.Operand, 0, len(x.Args))

	top := e.top

	for i, a := range x.Args {
		e.depth++
		v, err := e.expr(a)
		e.depth--
		if err != nil {
			return nil, errors.Wrap(err, "call %v: arg %d", x.Func, i)
		}

		args = append(args, v)
	}

	// arguments are consumed by the call
	e.top = top

	c := &ins.Call{Func: x.Func, Args: args}

	if e.depth == 0 {
		e.add(c)

		return nil, nil
	}

	r := e.tmp()
	c.Ret = r

	e.add(c)

	return r, nil
}

func (e *Emitter) mem(x ir.Mem) (ins.Operand, error) {
	if a, ok := e.matchAddress(x.X, true); ok {
		return e.fuse(a, true)
	}

	if _, ok := x.X.(ir.Addr); ok {
		return nil, internalf("unhandled mem of addr: %v", x.X)
	}

	v, err := e.expr(x.X)
	if err != nil {
		return nil, errors.Wrap(err, "mem")
	}

	r, err := e.reg(v)
	if err != nil {
		return nil, errors.Wrap(err, "mem")
	}

	return ins.BaseOffset(r, nil, 1, 0), nil
}

// fuse lowers a matched address into a single addressing operand.
// The address is loaded from if load is set or computed by lea otherwise.
// The result is in the base register.
func (e *Emitter) fuse(a address, load bool) (ins.Operand, error) {
	top := e.top

	base, err := e.expr(a.base)
	if err != nil {
		return nil, errors.Wrap(err, "address base")
	}

	var index ins.Operand

	if a.index != nil {
		index, err = e.expr(a.index)
		if err != nil {
			return nil, errors.Wrap(err, "address index")
		}
	}

	// memory operands can't nest

	b, err := e.reg(base)
	if err != nil {
		return nil, errors.Wrap(err, "address base")
	}

	if index != nil {
		index, err = e.reg(index)
		if err != nil {
			return nil, errors.Wrap(err, "address index")
		}
	}

	addr := ins.BaseOffset(b, index, a.scale, a.offset)

	if load {
		e.add(&ins.Move{Dst: b, Src: addr})
	} else {
		e.add(&ins.Lea{Dst: b, Src: addr})
	}

	if b.ID >= top {
		e.top = b.ID + 1 // only the result is alive
	}

	return b, nil
}

// reg forces op into a register.
func (e *Emitter) reg(op ins.Operand) (*ins.Ref, error) {
	switch op := op.(type) {
	case *ins.Ref:
		return op, nil
	case ins.Imm:
		r := e.tmp()
		e.add(&ins.Move{Dst: r, Src: op})

		return r, nil
	case *ins.Addr:
		return e.load(op)
	default:
		return nil, internalf("unhandled operand: %T", op)
	}
}

// load reads memory operand a into a register.
// Base offset addresses reuse their base register.
func (e *Emitter) load(a *ins.Addr) (*ins.Ref, error) {
	if a.Kind() == ins.AddrEntity {
		r := e.tmp()
		e.add(&ins.Move{Dst: r, Src: a})

		return r, nil
	}

	r, err := e.reg(a.Base)
	if err != nil {
		return nil, errors.Wrap(err, "load base")
	}

	a.Base = r

	if a.Index != nil {
		a.Index, err = e.reg(a.Index)
		if err != nil {
			return nil, errors.Wrap(err, "load index")
		}
	}

	e.add(&ins.Move{Dst: r, Src: a})

	return r, nil
}

func (e *Emitter) tmp() *ins.Ref {
	f := e.f

	if e.top >= len(f.Tmps) {
		f.Tmps = append(f.Tmps, &ins.Ref{ID: len(f.Tmps)})
	}

	r := f.Tmps[e.top]
	e.top++

	return r
}

func (e *Emitter) add(x ins.Instr) ins.ID {
	id := e.f.alloc(x)
	e.f.Code = append(e.f.Code, id)

	if tlog.If("emit") {
		tlog.Printw("emit", "id", id, "ins", x.String(), "top", e.top, "depth", e.depth, "from", loc.Caller(1))
	}

	return id
}
