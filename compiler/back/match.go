package back

import (
	"github.com/slowlang/lower/compiler/ir"
)

type (
	// address is matched [base + index*scale + offset].
	address struct {
		base, index ir.Node

		scale  int
		offset int64
	}
)

// matchAddress matches x against base + index*scale + offset.
// First the constant offset is peeled off and then
// the rest is matched as base + index*scale.
// simpleAdd allows base + index without a multiplication.
func (e *Emitter) matchAddress(x ir.Node, simpleAdd bool) (a address, ok bool) {
	if !e.opt.InstructionSelection {
		return a, false
	}

	bin, ok := x.(ir.Binary)
	if !ok || bin.Op != ir.Add {
		return a, false
	}

	if c, ok := bin.R.(ir.IntConst); ok {
		return offsetAddress(bin.L, int64(c), simpleAdd)
	}

	if c, ok := bin.L.(ir.IntConst); ok {
		return offsetAddress(bin.R, int64(c), simpleAdd)
	}

	return matchBaseIndex(bin, simpleAdd)
}

// offsetAddress matches x + off. A bare x + off is left
// to the add instruction with an immediate.
func offsetAddress(x ir.Node, off int64, simpleAdd bool) (address, bool) {
	a, ok := matchBaseIndex(x, simpleAdd)
	if !ok {
		return a, false
	}

	a.offset = off

	return a, true
}

func matchBaseIndex(x ir.Node, simpleAdd bool) (a address, ok bool) {
	bin, ok := x.(ir.Binary)
	if !ok || bin.Op != ir.Add {
		return a, false
	}

	if m, ok := bin.R.(ir.Binary); ok && m.Op == ir.Mul {
		return scaledIndex(bin.L, m)
	}

	if m, ok := bin.L.(ir.Binary); ok && m.Op == ir.Mul {
		return scaledIndex(bin.R, m)
	}

	if simpleAdd {
		return address{base: bin.L, index: bin.R, scale: 1}, true
	}

	return a, false
}

func scaledIndex(base ir.Node, m ir.Binary) (address, bool) {
	if s, ok := scale(m.R); ok {
		return address{base: base, index: m.L, scale: s}, true
	}

	if s, ok := scale(m.L); ok {
		return address{base: base, index: m.R, scale: s}, true
	}

	return address{}, false
}

func scale(x ir.Node) (int, bool) {
	c, ok := x.(ir.IntConst)
	if !ok {
		return 0, false
	}

	switch c {
	case 1, 2, 4, 8:
		return int(c), true
	}

	return 0, false
}
