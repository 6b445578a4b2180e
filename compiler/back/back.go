package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/lower/compiler/ins"
	"github.com/slowlang/lower/compiler/ir"
)

type (
	Options struct {
		// InstructionSelection enables addressing mode matching.
		InstructionSelection bool

		// InlineFunctions skips functions marked for inlining.
		InlineFunctions bool
	}

	// Function is a function being lowered.
	Function struct {
		*ir.Func

		// Ins is the instruction arena. ins.ID indexes it.
		Ins []ins.Instr

		// Code is the selector output.
		// It's replaced by the laid out code after analysis.
		Code []ins.ID

		Blocks []*Block
		Tmps   []*ins.Ref

		EndLabel string

		// Inlined is set if the function was skipped.
		Inlined bool

		nextBlock int
	}

	Block struct {
		ID    int
		Label string

		Code []ins.ID

		JumpTo []string

		Pred []*Block
		Succ []*Block

		State BlockState
	}

	BlockState int

	// Unit is the lowered program.
	Unit struct {
		Funcs []*Function

		Scope *ir.Scope
		Init  []ir.Node
	}
)

const (
	BlockUnvisited BlockState = iota
	BlockQueued
	BlockLaidOut
)

// ErrInternal is returned when a lowering or analysis rule meets
// a shape it has no case for. It's always a compiler bug.
var ErrInternal = errors.New("internal compiler error")

func DefaultOptions() Options {
	return Options{
		InstructionSelection: true,
		InlineFunctions:      true,
	}
}

// Lower selects instructions for all the functions of p
// and then analyzes their control flow.
func Lower(ctx context.Context, p *ir.Program, opt Options) (u *Unit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: lower program", "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	u = &Unit{
		Scope: p.Scope,
		Init:  p.Init,
	}

	e := NewEmitter(opt)

	u.Funcs, err = e.Emit(ctx, p.Funcs)
	if err != nil {
		return nil, errors.Wrap(err, "emit")
	}

	var a Analyzer

	err = a.Analyze(ctx, u.Funcs)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	return u, nil
}

func newFunction(fn *ir.Func) *Function {
	return &Function{
		Func:     fn,
		EndLabel: fn.Name + "_end",
	}
}

// alloc puts x into the arena.
func (f *Function) alloc(x ins.Instr) ins.ID {
	id := ins.ID(len(f.Ins))
	f.Ins = append(f.Ins, x)

	return id
}

func (f *Function) newBlock(label string) *Block {
	b := &Block{
		ID:    f.nextBlock,
		Label: label,
	}

	f.nextBlock++

	return b
}

// Instrs returns laid out instructions.
func (f *Function) Instrs() []ins.Instr {
	l := make([]ins.Instr, len(f.Code))

	for i, id := range f.Code {
		l[i] = f.Ins[id]
	}

	return l
}

func (b *Block) Last() ins.ID {
	return b.Code[len(b.Code)-1]
}

func (b *Block) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	if b == nil {
		return e.AppendNil(buf)
	}

	buf = e.AppendMap(buf, 4)

	buf = e.AppendKeyInt(buf, "id", b.ID)
	buf = e.AppendKey(buf, "label")
	buf = e.AppendString(buf, b.Label)
	buf = e.AppendKeyInt(buf, "ins", len(b.Code))
	buf = e.AppendKeyInt(buf, "succ", len(b.Succ))

	return buf
}

func internalf(format string, args ...any) error {
	return errors.Wrap(ErrInternal, format, args...)
}
