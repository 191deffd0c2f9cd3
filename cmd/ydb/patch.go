package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
)

func patch(cfg *PatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Patch.Parse(cc, args)
	if err != nil {
		cfg.Patch.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: patch requires a yaml file, a json patch file and optionally a path", cli.ErrUsage)
	}
	path := "/"
	if len(args) == 3 {
		path = args[2]
	}
	db, err := local(cfg.MainConfig, cc, args[0])
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := readArg(cc, args[1])
	if err != nil {
		return err
	}
	if err := report(db.PatchJSON(path, p)); err != nil {
		return fmt.Errorf("error patching %s: %w", args[0], err)
	}
	return db.Dump(cc.Out, "/", cfg.encOpts(cc.Out)...)
}
