package back

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/lower/compiler/ins"
)

// AppendCode appends f instructions one per line.
func AppendCode(b []byte, f *Function) []byte {
	b = hfmt.Appendf(b, "========== %v ==========\n", f.Name)

	if f.Inlined {
		return append(b, "BE INLINED\n"...)
	}

	for _, id := range f.Code {
		b = appendIns(b, f, id)
	}

	return b
}

// AppendBlocks appends f basic blocks with their jump targets.
func AppendBlocks(b []byte, f *Function) []byte {
	b = hfmt.Appendf(b, "========== %v ==========\n", f.Name)

	if f.Inlined {
		return append(b, "BE INLINED\n"...)
	}

	for _, bb := range f.Blocks {
		b = hfmt.Appendf(b, "----- %v -----  jump to:", bb.Label)

		for _, l := range bb.JumpTo {
			b = hfmt.Appendf(b, "   %v", l)
		}

		b = append(b, '\n')

		for _, id := range bb.Code {
			b = appendIns(b, f, id)
		}
	}

	return b
}

func appendIns(b []byte, f *Function, id ins.ID) []byte {
	x := f.Ins[id]

	if _, ok := x.(*ins.Label); ok {
		return hfmt.Appendf(b, "%v\n", x)
	}

	return hfmt.Appendf(b, "\t%v\n", x)
}
