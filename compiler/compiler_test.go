package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lower/compiler/back"
)

const loop = `(version "1.0.0")
(var i)
(var a)
(var p)

(func sum
	(assign (var i) 0)
	(label head)
	(cjump (< (var i) 10) body done)
	(label body)
	(assign (var a) (+ (var a) (mem (+ (var p) (* (var i) 8)))))
	(assign (var i) (+ (var i) 1))
	(jump head)
	(label done)
	(return (var a)))
`

func TestCompile(t *testing.T) {
	u, err := Compile(context.Background(), "loop.ir", []byte(loop), back.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, u.Funcs, 1)

	f := u.Funcs[0]

	assert.Equal(t, `========== sum ==========
cfg_added_0:
	mov [i], 0
head:
	mov t0, [i]
	cmp.lt t0, 10
	cjump t0, body, done fallthrough body
body:
	mov t0, [a]
	mov t1, [p]
	mov t2, [i]
	mov t1, [t1 + t2*8]
	add t0, t1
	mov [a], t0
	mov t0, [i]
	add t0, 1
	mov [i], t0
	jmp head
done:
	mov t0, [a]
	ret t0
`, string(back.AppendCode(nil, f)))
}

func TestCompileFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "f.ir")

	err := os.WriteFile(name, []byte(`(func f (return 1))`), 0o644)
	require.NoError(t, err)

	u, err := CompileFile(context.Background(), name, back.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, u.Funcs, 1)

	_, err = CompileFile(context.Background(), name+".missing", back.DefaultOptions())
	assert.Error(t, err)
}
