package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb"
	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

func watch(cfg *WatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Watch.Parse(cc, args)
	if err != nil {
		cfg.Watch.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: watch takes no arguments, got %v", cli.ErrUsage, args)
	}
	ops := ydb.OpAll
	if cfg.Ops != "" {
		ops, err = ydb.ParseOp(cfg.Ops)
		if err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "/"
	}
	var prg *vm.Program
	if cfg.If != "" {
		prg, err = expr.Compile(cfg.If, expr.Env(eventEnv(&ydb.Event{})), expr.AsBool())
		if err != nil {
			return fmt.Errorf("%w: -if: %w", cli.ErrUsage, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	db, err := cfg.client(ctx, "sub")
	if err != nil {
		return err
	}
	defer db.Close()

	n := 0
	done := func() bool { return cfg.Count > 0 && n >= cfg.Count }
	_, err = db.RegisterHook(pattern, ops, ydb.HookFunc(func(ev *ydb.Event) error {
		if done() {
			return nil
		}
		if prg != nil {
			ok, err := expr.Run(prg, eventEnv(ev))
			if err != nil {
				return err
			}
			if !ok.(bool) {
				return nil
			}
		}
		n++
		return printEvent(cc.Out, ev, cfg.encOpts(cc.Out))
	}))
	if err != nil {
		return err
	}
	for ctx.Err() == nil && !done() {
		_, err := db.Serve(ctx, -1)
		switch {
		case err == nil, ctx.Err() != nil:
		case result.CodeOf(err) == result.NoConn:
			return err
		default:
			db.Log().Warn("watch", "error", err)
		}
	}
	return nil
}

func eventEnv(ev *ydb.Event) map[string]any {
	changes := make([]map[string]any, 0, len(ev.Changes))
	for _, ch := range ev.Changes {
		changes = append(changes, map[string]any{
			"op":    ch.Op.String(),
			"path":  ch.Path,
			"value": ch.Value,
		})
	}
	return map[string]any{
		"op":      ev.Op.String(),
		"pattern": ev.Pattern,
		"origin":  ev.Origin,
		"changes": changes,
	}
}

func printEvent(w io.Writer, ev *ydb.Event, opts []encode.EncodeOption) error {
	t := ir.New()
	top := t.Top()
	set := func(parent ir.ID, k, v string) {
		_ = t.SetChild(parent, k, t.NewScalar(v))
	}
	set(top, "op", ev.Op.String())
	set(top, "pattern", ev.Pattern)
	set(top, "origin", ev.Origin)
	changes := t.NewSequence()
	for _, ch := range ev.Changes {
		c := t.NewMapping()
		set(c, "op", ch.Op.String())
		set(c, "path", ch.Path)
		if ch.Op != ydb.OpDelete {
			set(c, "value", ch.Value)
		}
		_ = t.Append(changes, c)
	}
	_ = t.SetChild(top, "changes", changes)
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	return encode.Encode(t, top, w, opts...)
}
