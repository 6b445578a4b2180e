package ins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lower/compiler/ir"
	"github.com/slowlang/lower/compiler/regs"
)

func TestDefUse(t *testing.T) {
	t0, t1, t2 := &Ref{ID: 0}, &Ref{ID: 1}, &Ref{ID: 2}

	x := &Move{Dst: t0, Src: BaseOffset(t1, t2, 4, 8)}
	assert.Equal(t, []int{0}, ptr(Def(x)).Slice())
	assert.Equal(t, []int{1, 2}, ptr(Use(x)).Slice())

	// store: address registers are read
	x = &Move{Dst: BaseOffset(t0, nil, 1, 0), Src: t1}
	assert.Empty(t, ptr(Def(x)).Slice())
	assert.Equal(t, []int{0, 1}, ptr(Use(x)).Slice())

	a := &Arith{Op: Add, Dst: t0, Src: Imm(5)}
	assert.Equal(t, []int{0}, ptr(Def(a)).Slice())
	assert.Equal(t, []int{0}, ptr(Use(a)).Slice())

	c := &Call{Func: &ir.Entity{Name: "f"}, Args: []Operand{t1, Imm(3), t2}, Ret: t0}
	assert.Equal(t, []int{0}, ptr(Def(c)).Slice())
	assert.Equal(t, []int{1, 2}, ptr(Use(c)).Slice())

	c.Ret = nil
	assert.Empty(t, ptr(Def(c)).Slice())

	r := &Return{}
	assert.Empty(t, ptr(Use(r)).Slice())

	assert.Empty(t, ptr(Use(&Jmp{To: "L"})).Slice())
	assert.Equal(t, []int{2}, ptr(Use(&CJump{Cond: t2, True: "a", False: "b"})).Slice())
}

func TestReplace(t *testing.T) {
	t0, t1, t5 := &Ref{ID: 0}, &Ref{ID: 1}, &Ref{ID: 5}

	x := &Move{Dst: t0, Src: BaseOffset(t0, t1, 2, 0)}

	ReplaceUse(x, t0, t5)
	assert.Equal(t, "mov t0, [t5 + t1*2]", x.String())

	ReplaceDef(x, t0, t5)
	assert.Equal(t, "mov t5, [t5 + t1*2]", x.String())

	ReplaceAll(x, t5, t1)
	assert.Equal(t, "mov t1, [t1 + t1*2]", x.String())

	st := &Move{Dst: BaseOffset(t0, nil, 1, 0), Src: t1}
	ReplaceDef(st, t0, t5)
	assert.Equal(t, "mov [t0], t1", st.String(), "store address is not a def")

	ReplaceUse(st, t0, t5)
	assert.Equal(t, "mov [t5], t1", st.String())

	assert.Equal(t, []*Ref{t5, t1}, Refs(st))
}

func TestIsRefMove(t *testing.T) {
	t0, t1 := &Ref{ID: 0}, &Ref{ID: 1}

	assert.True(t, (&Move{Dst: t0, Src: t1}).IsRefMove())
	assert.False(t, (&Move{Dst: t0, Src: Imm(1)}).IsRefMove())

	t1.Kind = RefReg
	t1.Reg = regs.RDI
	assert.False(t, (&Move{Dst: t0, Src: t1}).IsRefMove())
	assert.Equal(t, "rdi", t1.String())
}

func TestString(t *testing.T) {
	t0, t1 := &Ref{ID: 0}, &Ref{ID: 1}
	x := &ir.Entity{Name: "x"}

	for _, tc := range []struct {
		x Instr
		s string
	}{
		{&Move{Dst: t0, Src: EntityAddr(x)}, "mov t0, [x]"},
		{&Lea{Dst: t0, Src: BaseOffset(t0, t1, 4, 8)}, "lea t0, [t0 + t1*4 + 8]"},
		{&Lea{Dst: t0, Src: BaseOffset(t0, nil, 1, -8)}, "lea t0, [t0 - 8]"},
		{&Arith{Op: Sar, Dst: t0, Src: Imm(2)}, "sar t0, 2"},
		{&Cmp{Op: Lt, L: t0, R: t1}, "cmp.lt t0, t1"},
		{&Call{Func: &ir.Entity{Name: "f"}, Args: []Operand{t0, Imm(1)}, Ret: t1}, "call f(t0, 1) -> t1"},
		{&CJump{Cond: t0, True: "a", False: "b", FallThrough: "b"}, "cjump t0, a, b fallthrough b"},
		{&Label{Name: "L1"}, "L1:"},
		{&Return{X: t0}, "ret t0"},
	} {
		assert.Equal(t, tc.s, tc.x.String())
	}
}

func TestBaseOffsetScale(t *testing.T) {
	require.Panics(t, func() { BaseOffset(&Ref{}, nil, 3, 0) })

	a := BaseOffset(&Ref{}, nil, 8, 0)
	assert.Equal(t, AddrBaseOffset, a.Kind())
	assert.Equal(t, AddrEntity, EntityAddr(&ir.Entity{Name: "g"}).Kind())
}

func ptr[T any](x T) *T { return &x }

func TestIsJump(t *testing.T) {
	assert.True(t, IsJump(&Jmp{To: "L"}))
	assert.True(t, IsJump(&CJump{Cond: &Ref{}, True: "L1", False: "L2"}))

	assert.False(t, IsJump(&Return{}))
	assert.False(t, IsJump(&Label{Name: "L"}))
	assert.False(t, IsJump(&Call{Func: &ir.Entity{Name: "f"}}))
}
