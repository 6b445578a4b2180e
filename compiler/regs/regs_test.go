package regs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalleeSave(t *testing.T) {
	var saved []Reg

	for _, r := range All() {
		if r.CalleeSave() {
			saved = append(saved, r)
		}
	}

	assert.Equal(t, []Reg{RBX, RBP, R12, R13, R14, R15}, saved)
}

func TestParams(t *testing.T) {
	assert.Equal(t, []Reg{RDI, RSI, RDX, RCX, R8, R9}, Params())
	assert.Len(t, Params(), NumParams)

	p := Params()
	p[0] = RAX

	assert.Equal(t, RDI, Params()[0], "Params must return a copy")

	r, ok := Param(3)
	assert.True(t, ok)
	assert.Equal(t, RCX, r)

	_, ok = Param(NumParams)
	assert.False(t, ok)
}

func TestNames(t *testing.T) {
	assert.Len(t, All(), 16)
	assert.Equal(t, "rax", RAX.String())
	assert.Equal(t, "r15", R15.String())
	assert.True(t, R8.Extended())
	assert.False(t, RSP.Extended())

	r, ok := Parse("r11")
	assert.True(t, ok)
	assert.Equal(t, R11, r)
}
