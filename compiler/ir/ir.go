package ir

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Node is one of the IR nodes declared below.
	Node interface {
		node()
	}

	EntityKind int

	Entity struct {
		Name string
		Kind EntityKind

		Value string // string constant text
	}

	Scope struct {
		Entities []*Entity
	}

	Func struct {
		Name   string
		Entity *Entity

		Params []*Entity
		Body   []Node

		// Inline is decided by the inlining pass.
		// Inlined functions are not lowered on their own.
		Inline bool
	}

	Program struct {
		Funcs []*Func

		Scope *Scope
		Init  []Node
	}

	Op      int
	UnaryOp int

	IntConst int64

	StrConst struct {
		Entity *Entity
	}

	Var struct {
		Entity *Entity
	}

	Addr struct {
		Entity *Entity
	}

	Mem struct {
		X Node
	}

	Binary struct {
		Op   Op
		L, R Node
	}

	Unary struct {
		Op UnaryOp
		X  Node
	}

	Call struct {
		Func *Entity
		Args []Node
	}

	Assign struct {
		L, R Node
	}

	Label struct {
		Name string
	}

	Jump struct {
		To string
	}

	CJump struct {
		Cond        Node
		True, False string
	}

	Return struct {
		X Node // nil for bare return
	}
)

const (
	EntityVar EntityKind = iota
	EntityParam
	EntityString
	EntityFunc
)

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	LogicAnd
	LogicOr
	Shl
	Shr
	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	numOps
)

const (
	Neg UnaryOp = iota
	BitNot
	LogicNot
)

var opNames = [...]string{
	Add:      "+",
	Sub:      "-",
	Mul:      "*",
	Div:      "/",
	Mod:      "%",
	BitAnd:   "&",
	BitOr:    "|",
	BitXor:   "^",
	LogicAnd: "&&",
	LogicOr:  "||",
	Shl:      "<<",
	Shr:      ">>",
	Eq:       "==",
	Ne:       "!=",
	Lt:       "<",
	Le:       "<=",
	Gt:       ">",
	Ge:       ">=",
}

var unaryNames = [...]string{
	Neg:      "neg",
	BitNot:   "not",
	LogicNot: "lnot",
}

func (IntConst) node() {}
func (StrConst) node() {}
func (Var) node()      {}
func (Addr) node()     {}
func (Mem) node()      {}
func (Binary) node()   {}
func (Unary) node()    {}
func (Call) node()     {}
func (Assign) node()   {}
func (Label) node()    {}
func (Jump) node()     {}
func (CJump) node()    {}
func (Return) node()   {}

// Commutative reports whether operands can be swapped
// without changing the result.
func (op Op) Commutative() bool {
	switch op {
	case Add, Mul, BitAnd, BitOr, BitXor, Eq, Ne:
		return true
	default:
		return false
	}
}

func (op Op) Relational() bool {
	return op >= Eq && op <= Ge
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return fmt.Sprintf("Op(%d)", int(op))
	}

	return opNames[op]
}

func ParseOp(s string) (Op, bool) {
	for op, n := range opNames {
		if n == s {
			return Op(op), true
		}
	}

	return 0, false
}

func (op UnaryOp) String() string {
	if op < 0 || int(op) >= len(unaryNames) {
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}

	return unaryNames[op]
}

func ParseUnaryOp(s string) (UnaryOp, bool) {
	for op, n := range unaryNames {
		if n == s {
			return UnaryOp(op), true
		}
	}

	return 0, false
}

func (s *Scope) Lookup(name string) *Entity {
	if s == nil {
		return nil
	}

	for _, e := range s.Entities {
		if e.Name == name {
			return e
		}
	}

	return nil
}

func (s *Scope) Add(e *Entity) {
	s.Entities = append(s.Entities, e)
}

func (e *Entity) String() string {
	if e == nil {
		return "<nil>"
	}

	return e.Name
}

func (e *Entity) TlogAppend(b []byte) []byte {
	var enc tlwire.LowEncoder

	if e == nil {
		return enc.AppendNil(b)
	}

	return enc.AppendString(b, e.Name)
}
