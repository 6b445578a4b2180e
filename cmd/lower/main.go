package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/nikandfor/hacked/hfmt"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lower/compiler"
	"github.com/slowlang/lower/compiler/back"
	"github.com/slowlang/lower/compiler/regs"
)

type (
	dumper func(b []byte, f *back.Function) []byte
)

func main() {
	insCmd := &cli.Command{
		Name:        "ins",
		Description: "lower IR files and print the laid out instructions",
		Action:      insAct,
		Args:        cli.Args{},
	}

	blocksCmd := &cli.Command{
		Name:        "blocks",
		Description: "lower IR files and print basic blocks",
		Action:      blocksAct,
		Args:        cli.Args{},
	}

	regsCmd := &cli.Command{
		Name:        "regs",
		Description: "print the register model, all registers or the named ones",
		Action:      regsAct,
		Args:        cli.Args{},
	}

	watchCmd := &cli.Command{
		Name:        "watch",
		Description: "lower IR files again each time they change",
		Action:      watchAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "lower",
		Description: "lower is a compiler back end: instruction selection and control flow analysis",
		Commands: []*cli.Command{
			insCmd,
			blocksCmd,
			regsCmd,
			watchCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func insAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return lowerFiles(ctx, c.Args, back.AppendCode)
}

func blocksAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	return lowerFiles(ctx, c.Args, back.AppendBlocks)
}

func regsAct(c *cli.Command) (err error) {
	list := regs.All()

	if len(c.Args) != 0 {
		list = list[:0:0]

		for _, a := range c.Args {
			r, ok := regs.Parse(a)
			if !ok {
				return errors.New("unknown register: %v", a)
			}

			list = append(list, r)
		}
	}

	var b []byte

	for _, r := range list {
		b = hfmt.Appendf(b, "%-4v", r)

		if r.CalleeSave() {
			b = append(b, "  callee-save"...)
		}

		for i := 0; i < regs.NumParams; i++ {
			if p, _ := regs.Param(i); p == r {
				b = hfmt.Appendf(b, "  param %d", i)
			}
		}

		b = append(b, '\n')
	}

	_, err = os.Stdout.Write(b)

	return err
}

func watchAct(c *cli.Command) (err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) == 0 {
		return errors.New("no files to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}

	defer func() {
		e := w.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close watcher")
		}
	}()

	files := map[string]bool{}
	dirs := map[string]bool{}

	for _, a := range c.Args {
		a = filepath.Clean(a)
		files[a] = true

		// editors replace files, so watch the directory
		d := filepath.Dir(a)
		if dirs[d] {
			continue
		}

		err = w.Add(d)
		if err != nil {
			return errors.Wrap(err, "watch %v", d)
		}

		dirs[d] = true
	}

	lowerAndReport := func(names []string) {
		err := lowerFiles(ctx, names, back.AppendCode)
		if err != nil {
			tlog.Printw("lower", "err", err)
		}
	}

	lowerAndReport(c.Args)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			name := filepath.Clean(ev.Name)

			if !files[name] || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if tlog.If("watch") {
				tlog.Printw("file changed", "name", name, "op", ev.Op.String())
			}

			lowerAndReport([]string{name})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return errors.Wrap(err, "watcher")
		}
	}
}

func lowerFiles(ctx context.Context, names []string, dump dumper) (err error) {
	var b []byte

	for _, a := range names {
		u, err := compiler.CompileFile(ctx, a, back.DefaultOptions())
		if err != nil {
			return errors.Wrap(err, "lower %v", a)
		}

		for _, f := range u.Funcs {
			b = dump(b[:0], f)

			_, err = os.Stdout.Write(b)
			if err != nil {
				return errors.Wrap(err, "write")
			}
		}
	}

	return nil
}
