package back

import (
	"context"

	"tlog.app/go/tlog"
)

// Optimize merges a block into its only predecessor while possible.
// It returns the number of merges done.
func (a *Analyzer) Optimize(ctx context.Context, f *Function) (merges int) {
	tr := tlog.SpanFromContext(ctx)

	for {
		merged := false

		for _, b := range f.Blocks {
			if len(b.Succ) != 1 {
				continue
			}

			next := b.Succ[0]

			if next == b || len(next.Pred) != 1 || len(next.Succ) == 0 {
				continue
			}

			tr.V("cfg_merge").Printw("merge", "block", b.Label, "next", next.Label)

			f.merge(b, next)
			merges++
			merged = true

			break
		}

		sameBranch(tr, f)
		emptyBlocks(tr, f)

		if !merged {
			return merges
		}
	}
}

// merge appends next to b. next must be the only successor of b
// and b must be the only predecessor of next.
func (f *Function) merge(b, next *Block) {
	for _, s := range next.Succ {
		for i, p := range s.Pred {
			if p == next {
				s.Pred[i] = b
			}
		}
	}

	b.Code = append(b.Code, next.Code...)
	b.JumpTo = next.JumpTo
	b.Succ = append([]*Block{}, next.Succ...)

	next.Pred = nil
	next.Succ = nil

	for i, x := range f.Blocks {
		if x == next {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			break
		}
	}
}

// sameBranch finds conditional jumps with both targets equal.
// They are only reported, not rewritten.
func sameBranch(tr tlog.Span, f *Function) {
	for _, b := range f.Blocks {
		if len(b.Succ) == 2 && b.Succ[0] == b.Succ[1] {
			tr.V("cfg_opportunity").Printw("same branch", "block", b.Label, "target", b.Succ[0].Label)
		}
	}
}

// emptyBlocks finds blocks of a single label.
// They are only reported, not removed.
func emptyBlocks(tr tlog.Span, f *Function) {
	for _, b := range f.Blocks {
		if len(b.Code) == 1 {
			tr.V("cfg_opportunity").Printw("empty block", "block", b.Label)
		}
	}
}
