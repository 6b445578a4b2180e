package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler/back"
	"github.com/slowlang/lower/compiler/irtext"
)

func CompileFile(ctx context.Context, name string, opt back.Options) (u *back.Unit, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, opt)
}

func Compile(ctx context.Context, name string, text []byte, opt back.Options) (u *back.Unit, err error) {
	prog, err := irtext.Parse(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	u, err = back.Lower(ctx, prog, opt)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	return u, nil
}
