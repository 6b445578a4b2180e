package irtext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lower/compiler/ir"
)

const sample = `(version "1.2.0")

; globals
(var x)
(string hello "hi\n")

(func add inline (params a b)
	(return (+ (var a) (var b))))

(func main
	(label loop)
	(cjump (< (var x) 10) body done)
	(label body)
	(assign (var x) (call add (var x) 1))
	(assign (mem (+ (addr x) 8)) (str hello))
	(jump loop)
	(label done)
	(return (neg -0x10)))

(init (assign (var x) 0))
`

func TestParse(t *testing.T) {
	p, err := Parse(context.Background(), "sample.ir", []byte(sample))
	require.NoError(t, err)

	require.Len(t, p.Funcs, 2)

	x := p.Scope.Lookup("x")
	hello := p.Scope.Lookup("hello")
	add := p.Scope.Lookup("add")

	require.NotNil(t, x)
	require.NotNil(t, hello)
	require.NotNil(t, add)

	assert.Equal(t, ir.EntityVar, x.Kind)
	assert.Equal(t, ir.EntityString, hello.Kind)
	assert.Equal(t, "hi\n", hello.Value)
	assert.Equal(t, ir.EntityFunc, add.Kind)

	f := p.Funcs[0]
	assert.Equal(t, "add", f.Name)
	assert.Same(t, add, f.Entity)
	assert.True(t, f.Inline)
	require.Len(t, f.Params, 2)
	assert.Equal(t, ir.EntityParam, f.Params[0].Kind)
	assert.Nil(t, p.Scope.Lookup("a"), "params are not globals")

	assert.Equal(t, []ir.Node{
		ir.Return{X: ir.Binary{Op: ir.Add, L: ir.Var{Entity: f.Params[0]}, R: ir.Var{Entity: f.Params[1]}}},
	}, f.Body)

	m := p.Funcs[1]
	assert.False(t, m.Inline)

	assert.Equal(t, []ir.Node{
		ir.Label{Name: "loop"},
		ir.CJump{Cond: ir.Binary{Op: ir.Lt, L: ir.Var{Entity: x}, R: ir.IntConst(10)}, True: "body", False: "done"},
		ir.Label{Name: "body"},
		ir.Assign{L: ir.Var{Entity: x}, R: ir.Call{Func: add, Args: []ir.Node{ir.Var{Entity: x}, ir.IntConst(1)}}},
		ir.Assign{L: ir.Mem{X: ir.Binary{Op: ir.Add, L: ir.Addr{Entity: x}, R: ir.IntConst(8)}}, R: ir.StrConst{Entity: hello}},
		ir.Jump{To: "loop"},
		ir.Label{Name: "done"},
		ir.Return{X: ir.Unary{Op: ir.Neg, X: ir.IntConst(-16)}},
	}, m.Body)

	assert.Equal(t, []ir.Node{ir.Assign{L: ir.Var{Entity: x}, R: ir.IntConst(0)}}, p.Init)
}

func TestParseOps(t *testing.T) {
	p, err := Parse(context.Background(), "ops.ir", []byte(`(func f
		(return (<< (var a) (>= 1 2)))
		(return (lnot (not (var a))))
		(return (&& (% 1 2) (|| 3 4)))
		(return))`))
	require.NoError(t, err)

	a := p.Scope.Lookup("a")
	require.NotNil(t, a, "undeclared names become variables")
	assert.Equal(t, ir.EntityVar, a.Kind)

	assert.Equal(t, []ir.Node{
		ir.Return{X: ir.Binary{Op: ir.Shl, L: ir.Var{Entity: a}, R: ir.Binary{Op: ir.Ge, L: ir.IntConst(1), R: ir.IntConst(2)}}},
		ir.Return{X: ir.Unary{Op: ir.LogicNot, X: ir.Unary{Op: ir.BitNot, X: ir.Var{Entity: a}}}},
		ir.Return{X: ir.Binary{Op: ir.LogicAnd, L: ir.Binary{Op: ir.Mod, L: ir.IntConst(1), R: ir.IntConst(2)}, R: ir.Binary{Op: ir.LogicOr, L: ir.IntConst(3), R: ir.IntConst(4)}}},
		ir.Return{},
	}, p.Funcs[0].Body)
}

func TestParseCallBeforeDecl(t *testing.T) {
	p, err := Parse(context.Background(), "a.ir", []byte(`
(func main (call g))
(func g (return))`))
	require.NoError(t, err)

	g := p.Scope.Lookup("g")

	assert.Equal(t, []ir.Node{ir.Call{Func: g}}, p.Funcs[0].Body)
	assert.Same(t, g, p.Funcs[1].Entity)
}

func TestParseVersion(t *testing.T) {
	_, err := Parse(context.Background(), "v.ir", []byte(`(version "1.0.0")`))
	assert.NoError(t, err)

	_, err = Parse(context.Background(), "v.ir", []byte(`(version "2.0.0")`))
	assert.ErrorContains(t, err, "unsupported version")

	_, err = Parse(context.Background(), "v.ir", []byte(`(version "one")`))
	assert.Error(t, err)

	_, err = Parse(context.Background(), "v.ir", []byte("(var x)\n(version \"1.0.0\")"))
	assert.ErrorContains(t, err, "v.ir:2:2: version must be the first declaration")
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		err  string
	}{
		{"unknown_decl", `(foo)`, "x.ir:1:2: unexpected declaration: foo"},
		{"unknown_node", "(func f\n  (bar 1))", "x.ir:2:4: unexpected node: bar"},
		{"not_int", `(func f (return abc))`, `x.ir:1:17: int expected: "abc"`},
		{"unclosed", `(func f (return 1)`, "')' expected"},
		{"not_string", `(var s) (func f (return (str s)))`, "not a string: s"},
		{"redeclared", `(var s) (string s "")`, "redeclared: s"},
		{"dup_param", `(func f (params a a))`, "duplicate param: a"},
		{"bad_string", `(string s "abc`, "unterminated string"},
		{"no_paren", `var x`, "'(' expected"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), "x.ir", []byte(tc.text))
			assert.ErrorContains(t, err, tc.err)
		})
	}
}
