package main

import (
	"context"
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb/result"
)

func get(cfg *GetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Get.Parse(cc, args)
	if err != nil {
		cfg.Get.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	path := "/"
	switch len(args) {
	case 0:
	case 1:
		path = args[0]
	default:
		return fmt.Errorf("%w: get takes at most one path, got %v", cli.ErrUsage, args)
	}
	ctx := context.Background()
	db, err := cfg.client(ctx, "sub")
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Sync {
		if err := db.Sync(ctx, path, 0); result.IsError(err) {
			return fmt.Errorf("error syncing %s: %w", path, err)
		}
	}
	return db.Dump(cc.Out, path, cfg.encOpts(cc.Out)...)
}
