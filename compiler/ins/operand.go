package ins

import (
	"fmt"
	"strings"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/regs"
)

type (
	// Operand is Imm, *Ref or *Addr.
	Operand interface {
		String() string

		replace(from, to *Ref) Operand
		refs(fn func(r *Ref))
	}

	Imm int64

	RefKind int

	// Ref is a virtual register.
	// Refs are compared by pointer.
	Ref struct {
		ID   int
		Kind RefKind
		Reg  regs.Reg // valid for RefReg
	}

	AddrKind int

	// Addr is a memory operand.
	// It is either a named storage location (Entity != nil)
	// or Base + Index*Scale + Offset.
	// Base and Index are owned by the Addr.
	Addr struct {
		Entity *ir.Entity

		Base   Operand
		Index  Operand
		Scale  int
		Offset int64
	}
)

const (
	RefUnknown RefKind = iota
	RefReg
	RefStack
	RefGlobal
)

const (
	AddrEntity AddrKind = iota
	AddrBaseOffset
)

func EntityAddr(e *ir.Entity) *Addr {
	return &Addr{Entity: e, Scale: 1}
}

// BaseOffset makes [base + index*scale + offset] operand.
// index may be nil.
func BaseOffset(base, index Operand, scale int, offset int64) *Addr {
	if !ValidScale(scale) {
		panic(fmt.Sprintf("bad address scale: %d", scale))
	}

	return &Addr{
		Base:   base,
		Index:  index,
		Scale:  scale,
		Offset: offset,
	}
}

func ValidScale(s int) bool {
	return s == 1 || s == 2 || s == 4 || s == 8
}

func (a *Addr) Kind() AddrKind {
	if a.Entity != nil {
		return AddrEntity
	}

	return AddrBaseOffset
}

func (x Imm) String() string { return fmt.Sprintf("%d", int64(x)) }

func (x Imm) replace(from, to *Ref) Operand { return x }
func (x Imm) refs(fn func(r *Ref))          {}

func (r *Ref) String() string {
	switch r.Kind {
	case RefReg:
		return r.Reg.String()
	case RefStack:
		return fmt.Sprintf("s%d", r.ID)
	case RefGlobal:
		return fmt.Sprintf("g%d", r.ID)
	default:
		return fmt.Sprintf("t%d", r.ID)
	}
}

func (r *Ref) replace(from, to *Ref) Operand {
	if r == from {
		return to
	}

	return r
}

func (r *Ref) refs(fn func(r *Ref)) { fn(r) }

func (r *Ref) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, r.String())
}

func (a *Addr) String() string {
	if a.Entity != nil {
		return "[" + a.Entity.Name + "]"
	}

	var b strings.Builder

	b.WriteByte('[')

	if a.Base != nil {
		b.WriteString(a.Base.String())
	}

	if a.Index != nil {
		fmt.Fprintf(&b, " + %v", a.Index)

		if a.Scale != 1 {
			fmt.Fprintf(&b, "*%d", a.Scale)
		}
	}

	switch {
	case a.Offset > 0:
		fmt.Fprintf(&b, " + %d", a.Offset)
	case a.Offset < 0:
		fmt.Fprintf(&b, " - %d", -a.Offset)
	}

	b.WriteByte(']')

	return b.String()
}

func (a *Addr) replace(from, to *Ref) Operand {
	if a.Base != nil {
		a.Base = a.Base.replace(from, to)
	}

	if a.Index != nil {
		a.Index = a.Index.replace(from, to)
	}

	return a
}

func (a *Addr) refs(fn func(r *Ref)) {
	if a.Base != nil {
		a.Base.refs(fn)
	}

	if a.Index != nil {
		a.Index.refs(fn)
	}
}

func (a *Addr) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, a.String())
}
