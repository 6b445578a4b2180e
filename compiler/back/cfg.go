package back

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ins"
)

type (
	// Analyzer builds control flow graphs of emitted functions,
	// merges straight line blocks and lays the code out again.
	Analyzer struct {
		labels int
	}
)

func (a *Analyzer) Analyze(ctx context.Context, fs []*Function) (err error) {
	for _, f := range fs {
		if f.Inlined {
			continue
		}

		err = a.AnalyzeFunc(ctx, f)
		if err != nil {
			return errors.Wrap(err, "func %v", f.Name)
		}
	}

	return nil
}

func (a *Analyzer) AnalyzeFunc(ctx context.Context, f *Function) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "analyze func", "name", f.Name, "ins", len(f.Code))
	defer tr.Finish("err", &err)

	err = a.BuildBlocks(ctx, f)
	if err != nil {
		return errors.Wrap(err, "build blocks")
	}

	a.BuildGraph(ctx, f)

	merges := a.Optimize(ctx, f)

	err = a.Layout(ctx, f)
	if err != nil {
		return errors.Wrap(err, "layout")
	}

	tr.Printw("function analyzed", "blocks", len(f.Blocks), "merges", merges, "ins", len(f.Code))

	if tr.If("dump_blocks") {
		tr.Printw("blocks", "dump", string(AppendBlocks(nil, f)))
	}

	return nil
}

// BuildBlocks splits f.Code into basic blocks and links them.
func (a *Analyzer) BuildBlocks(ctx context.Context, f *Function) (err error) {
	var bbs []*Block
	var b *Block

	for _, id := range f.Code {
		x := f.Ins[id]

		if l, ok := x.(*ins.Label); ok {
			if b != nil { // fall through
				b.JumpTo = append(b.JumpTo, l.Name)
				b.Code = append(b.Code, f.alloc(&ins.Jmp{To: l.Name}))

				bbs = append(bbs, b)
			}

			b = f.newBlock(l.Name)
			b.Code = append(b.Code, id)

			continue
		}

		if b == nil {
			name := fmt.Sprintf("cfg_added_%d", a.labels)
			a.labels++

			b = f.newBlock(name)
			b.Code = append(b.Code, f.alloc(&ins.Label{Name: name}))
		}

		b.Code = append(b.Code, id)

		if !ins.IsJump(x) {
			continue
		}

		switch x := x.(type) {
		case *ins.Jmp:
			b.JumpTo = append(b.JumpTo, x.To)
		case *ins.CJump:
			b.JumpTo = append(b.JumpTo, x.True, x.False)
		}

		bbs = append(bbs, b)
		b = nil
	}

	if b != nil { // function ends without return
		b.JumpTo = append(b.JumpTo, f.EndLabel)
		bbs = append(bbs, b)
	}

	byLabel := make(map[string]*Block, len(bbs))

	for _, b := range bbs {
		if _, ok := byLabel[b.Label]; ok {
			return internalf("duplicate label: %v", b.Label)
		}

		byLabel[b.Label] = b
	}

	for _, b := range bbs {
		for _, l := range b.JumpTo {
			if l == f.EndLabel {
				continue
			}

			to, ok := byLabel[l]
			if !ok {
				return internalf("jump to undefined label: %v", l)
			}

			b.Succ = append(b.Succ, to)
			to.Pred = append(to.Pred, b)
		}
	}

	f.Blocks = bbs

	return nil
}

// BuildGraph links instructions inside blocks and across block edges.
func (a *Analyzer) BuildGraph(ctx context.Context, f *Function) {
	link := func(from, to ins.ID) {
		fh := f.Ins[from].Head()
		th := f.Ins[to].Head()

		fh.Succ = append(fh.Succ, to)
		th.Pred = append(th.Pred, from)
	}

	for _, b := range f.Blocks {
		for i := 1; i < len(b.Code); i++ {
			link(b.Code[i-1], b.Code[i])
		}
	}

	for _, b := range f.Blocks {
		last := b.Last()

		for _, s := range b.Succ {
			link(last, s.Code[0])
		}
	}
}
