package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/libdiff"
	"github.com/signadot/ydb/parse"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	var trees [2]*ir.Tree
	for i, arg := range args {
		d, err := readArg(cc, arg)
		if err != nil {
			return err
		}
		trees[i], err = parse.Parse(d)
		if err != nil {
			return fmt.Errorf("error decoding %s: %w", arg, err)
		}
	}
	a, b := trees[0], trees[1]
	var differs bool
	if cfg.Text {
		differs, err = diffText(cfg, cc.Out, a, b)
	} else {
		differs, err = diffTrees(cfg, cc.Out, a, b)
	}
	if err != nil {
		return err
	}
	if differs {
		return cli.ExitCodeErr(1)
	}
	return nil
}

func diffTrees(cfg *DiffConfig, w io.Writer, a, b *ir.Tree) (bool, error) {
	rm, mg := libdiff.Diff(a, a.Top(), b, b.Top())
	opts := cfg.encOpts(w)
	for _, part := range []struct {
		name string
		t    *ir.Tree
	}{{"remove", rm}, {"merge", mg}} {
		if part.t == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "# %s\n", part.name); err != nil {
			return false, err
		}
		if err := encode.Encode(part.t, part.t.Top(), w, opts...); err != nil {
			return false, fmt.Errorf("error encoding %s fragment: %w", part.name, err)
		}
	}
	return rm != nil || mg != nil, nil
}

func diffText(cfg *DiffConfig, w io.Writer, a, b *ir.Tree) (bool, error) {
	ta, err := encode.String(a, a.Top())
	if err != nil {
		return false, err
	}
	tb, err := encode.String(b, b.Top())
	if err != nil {
		return false, err
	}
	lines := libdiff.Lines(ta+"\n", tb+"\n")
	del, ins := color.New(color.FgRed), color.New(color.FgGreen)
	if !cfg.colors(w) {
		del.DisableColor()
		ins.DisableColor()
	}
	for _, ln := range lines {
		var err error
		switch ln.Op {
		case libdiff.Delete:
			_, err = del.Fprintf(w, "-%s\n", ln.Text)
		case libdiff.Insert:
			_, err = ins.Fprintf(w, "+%s\n", ln.Text)
		default:
			_, err = fmt.Fprintf(w, " %s\n", ln.Text)
		}
		if err != nil {
			return false, err
		}
	}
	return libdiff.Changed(lines), nil
}
