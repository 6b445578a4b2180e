package back

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/ins"
)

type (
	blockQueue struct {
		heap.Heap[*Block]
	}
)

// Layout puts blocks into a single instruction list.
// Blocks are chained through their first not yet laid out successor
// so the jump to it becomes a fall through.
func (a *Analyzer) Layout(ctx context.Context, f *Function) (err error) {
	tr := tlog.SpanFromContext(ctx)

	q := blockQueue{Heap: heap.Heap[*Block]{Less: blocksLess}}

	size := 0

	for _, b := range f.Blocks {
		b.State = BlockQueued
		q.Push(b)

		size += len(b.Code)
	}

	code := make([]ins.ID, 0, size)

	for q.Len() != 0 {
		b := q.Pop()

		for b != nil && b.State != BlockLaidOut {
			if len(b.Code) == 0 {
				return internalf("empty basic block: %v", b.Label)
			}

			b.State = BlockLaidOut

			var next *Block

			for _, s := range b.Succ {
				if s.State != BlockLaidOut {
					next = s
					break
				}
			}

			body := b.Code

			if next != nil {
				switch x := f.Ins[b.Last()].(type) {
				case *ins.Jmp:
					if x.To == next.Label {
						body = body[:len(body)-1]
					}
				case *ins.CJump:
					x.FallThrough = next.Label
				}
			}

			tr.V("cfg_layout").Printw("layout block", "block", b, "next", next)

			code = append(code, body...)
			b = next
		}
	}

	f.Code = code

	return nil
}

func blocksLess(d []*Block, i, j int) bool {
	return d[i].ID < d[j].ID
}
