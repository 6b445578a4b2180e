// Package ins defines pseudo instructions produced by instruction selection.
//
// Instructions live in an arena owned by the function and are referred by ID.
// Predecessor and successor lists are kept at instruction granularity
// for the liveness analysis.
package ins

import (
	"fmt"
	"strings"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/set"
)

type (
	// ID is an index in the instruction arena.
	ID int

	Instr interface {
		Head() *Header
		String() string

		slots() []slot
	}

	Header struct {
		Pred []ID
		Succ []ID
	}

	ArithOp int
	CmpOp   int

	Move struct {
		Header
		Dst, Src Operand
	}

	// Arith is two address arithmetic: Dst = Dst op Src.
	Arith struct {
		Header
		Op       ArithOp
		Dst, Src Operand
	}

	// Cmp sets L to the result of L op R.
	Cmp struct {
		Header
		Op   CmpOp
		L, R Operand
	}

	// Lea loads the address computed by Src into Dst.
	Lea struct {
		Header
		Dst Operand
		Src Operand // *Addr
	}

	Neg struct {
		Header
		X Operand
	}

	Not struct {
		Header
		X Operand
	}

	Call struct {
		Header
		Func *ir.Entity
		Args []Operand
		Ret  Operand // nil if result is not used
	}

	Jmp struct {
		Header
		To string
	}

	CJump struct {
		Header
		Cond        Operand
		True, False string

		// FallThrough is the target placed right after the jump.
		// No explicit jump is needed for it.
		FallThrough string
	}

	Label struct {
		Header
		Name string
	}

	Return struct {
		Header
		X Operand // nil for bare return
	}

	role int

	slot struct {
		op   *Operand
		role role
	}
)

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Sal
	Sar
)

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

const (
	use role = iota
	def
	defUse
)

var arithNames = [...]string{"add", "sub", "mul", "div", "mod", "and", "or", "xor", "sal", "sar"}
var cmpNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (h *Header) Head() *Header { return h }

func (x *Move) slots() []slot  { return []slot{{&x.Dst, def}, {&x.Src, use}} }
func (x *Arith) slots() []slot { return []slot{{&x.Dst, defUse}, {&x.Src, use}} }
func (x *Cmp) slots() []slot   { return []slot{{&x.L, defUse}, {&x.R, use}} }
func (x *Lea) slots() []slot   { return []slot{{&x.Dst, def}, {&x.Src, use}} }
func (x *Neg) slots() []slot   { return []slot{{&x.X, defUse}} }
func (x *Not) slots() []slot   { return []slot{{&x.X, defUse}} }
func (x *Jmp) slots() []slot   { return nil }
func (x *Label) slots() []slot { return nil }

func (x *CJump) slots() []slot  { return []slot{{&x.Cond, use}} }
func (x *Return) slots() []slot { return []slot{{&x.X, use}} }

func (x *Call) slots() []slot {
	s := make([]slot, 0, len(x.Args)+1)

	for i := range x.Args {
		s = append(s, slot{&x.Args[i], use})
	}

	return append(s, slot{&x.Ret, def})
}

// IsRefMove reports whether x is a plain register to register move.
func (x *Move) IsRefMove() bool {
	d, ok := x.Dst.(*Ref)
	if !ok {
		return false
	}

	s, ok := x.Src.(*Ref)
	if !ok {
		return false
	}

	return d.Kind == RefUnknown && s.Kind == RefUnknown
}

// IsJump reports whether x transfers control to a label.
func IsJump(x Instr) bool {
	switch x.(type) {
	case *Jmp, *CJump:
		return true
	}

	return false
}

// Def returns ids of virtual registers written by x.
func Def(x Instr) set.Bitmap {
	s := set.MakeBitmap(0)

	for _, sl := range x.slots() {
		if sl.role == use {
			continue
		}

		if r, ok := (*sl.op).(*Ref); ok {
			s.Set(r.ID)
		}
	}

	return s
}

// Use returns ids of virtual registers read by x.
// Registers forming a written memory address are used, not defined.
func Use(x Instr) set.Bitmap {
	s := set.MakeBitmap(0)

	for _, sl := range x.slots() {
		op := *sl.op
		if op == nil {
			continue
		}

		if _, ok := op.(*Ref); ok && sl.role == def {
			continue
		}

		op.refs(func(r *Ref) { s.Set(r.ID) })
	}

	return s
}

// Refs returns all the registers mentioned by x in operand order.
func Refs(x Instr) (l []*Ref) {
	for _, sl := range x.slots() {
		if *sl.op == nil {
			continue
		}

		(*sl.op).refs(func(r *Ref) { l = append(l, r) })
	}

	return l
}

// ReplaceUse renames register occurrences read by x.
func ReplaceUse(x Instr, from, to *Ref) {
	for _, sl := range x.slots() {
		op := *sl.op
		if op == nil {
			continue
		}

		if _, ok := op.(*Ref); ok && sl.role == def {
			continue
		}

		*sl.op = op.replace(from, to)
	}
}

// ReplaceDef renames registers written by x.
func ReplaceDef(x Instr, from, to *Ref) {
	for _, sl := range x.slots() {
		if sl.role == use {
			continue
		}

		if r, ok := (*sl.op).(*Ref); ok {
			*sl.op = r.replace(from, to)
		}
	}
}

func ReplaceAll(x Instr, from, to *Ref) {
	for _, sl := range x.slots() {
		if *sl.op == nil {
			continue
		}

		*sl.op = (*sl.op).replace(from, to)
	}
}

func (op ArithOp) String() string {
	if op < 0 || int(op) >= len(arithNames) {
		return fmt.Sprintf("ArithOp(%d)", int(op))
	}

	return arithNames[op]
}

func (op CmpOp) String() string {
	if op < 0 || int(op) >= len(cmpNames) {
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}

	return cmpNames[op]
}

func (x *Move) String() string  { return fmt.Sprintf("mov %v, %v", x.Dst, x.Src) }
func (x *Arith) String() string { return fmt.Sprintf("%v %v, %v", x.Op, x.Dst, x.Src) }
func (x *Cmp) String() string   { return fmt.Sprintf("cmp.%v %v, %v", x.Op, x.L, x.R) }
func (x *Lea) String() string   { return fmt.Sprintf("lea %v, %v", x.Dst, x.Src) }
func (x *Neg) String() string   { return fmt.Sprintf("neg %v", x.X) }
func (x *Not) String() string   { return fmt.Sprintf("not %v", x.X) }
func (x *Jmp) String() string   { return fmt.Sprintf("jmp %v", x.To) }
func (x *Label) String() string { return x.Name + ":" }

func (x *CJump) String() string {
	s := fmt.Sprintf("cjump %v, %v, %v", x.Cond, x.True, x.False)

	if x.FallThrough != "" {
		s += " fallthrough " + x.FallThrough
	}

	return s
}

func (x *Call) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "call %v(", x.Func)

	for i, a := range x.Args {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(a.String())
	}

	b.WriteByte(')')

	if x.Ret != nil {
		fmt.Fprintf(&b, " -> %v", x.Ret)
	}

	return b.String()
}

func (x *Return) String() string {
	if x.X == nil {
		return "ret"
	}

	return fmt.Sprintf("ret %v", x.X)
}
