// Package regs describes the physical register set of the target.
package regs

import "fmt"

type Reg int

const (
	RAX Reg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	NumRegs
)

// NumParams is the number of integer arguments passed in registers.
const NumParams = 6

var names = [NumRegs]string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var params = [NumParams]Reg{RDI, RSI, RDX, RCX, R8, R9}

func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return fmt.Sprintf("Reg(%d)", int(r))
	}

	return names[r]
}

// CalleeSave reports whether a called function must preserve r.
func (r Reg) CalleeSave() bool {
	switch r {
	case RBX, RBP, R12, R13, R14, R15:
		return true
	default:
		return false
	}
}

func (r Reg) Extended() bool {
	return r >= R8 && r < NumRegs
}

// All returns all registers in the model order.
func All() []Reg {
	l := make([]Reg, NumRegs)

	for i := range l {
		l[i] = Reg(i)
	}

	return l
}

// Params returns the argument registers in order.
// The i-th integer argument of a call goes into Params()[i].
func Params() []Reg {
	return append([]Reg{}, params[:]...)
}

// Param returns the register for the i-th argument or false
// if the argument is passed on the stack.
func Param(i int) (Reg, bool) {
	if i < 0 || i >= NumParams {
		return 0, false
	}

	return params[i], true
}

func Parse(s string) (Reg, bool) {
	for i, n := range names {
		if n == s {
			return Reg(i), true
		}
	}

	return 0, false
}
