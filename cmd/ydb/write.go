package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb"
	"github.com/signadot/ydb/result"
)

func write(cfg *WriteConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Write.Parse(cc, args)
	if err != nil {
		cfg.Write.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if cfg.File == "" && len(args) > 0 && allPathValues(args) {
		return writeValues(cfg, args)
	}
	var path, y string
	switch {
	case cfg.File != "" && len(args) <= 1:
		d, err := readArg(cc, cfg.File)
		if err != nil {
			return err
		}
		y = string(d)
		if len(args) == 1 {
			path = args[0]
		}
	case cfg.File == "" && len(args) == 1:
		y = args[0]
	case cfg.File == "" && len(args) == 2:
		path, y = args[0], args[1]
	default:
		return fmt.Errorf("%w: write wants [path] yaml or -f file [path], got %v", cli.ErrUsage, args)
	}
	ctx := context.Background()
	db, err := cfg.client(ctx, "sub,writable")
	if err != nil {
		return err
	}
	defer db.Close()
	return report(db.PathWrite(path, y))
}

// writeValues writes each path=value argument in turn.
func writeValues(cfg *WriteConfig, args []string) error {
	ctx := context.Background()
	db, err := cfg.client(ctx, "sub,writable")
	if err != nil {
		return err
	}
	defer db.Close()
	for _, pv := range args {
		if err := report(db.PathWriteValue(pv)); err != nil {
			return fmt.Errorf("error writing %s: %w", pv, err)
		}
	}
	return nil
}

func allPathValues(args []string) bool {
	for _, a := range args {
		i := strings.IndexByte(a, '=')
		if i <= 0 || strings.ContainsAny(a[:i], ": \n{[") {
			return false
		}
	}
	return true
}

func remove(cfg *RemoveConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Remove.Parse(cc, args)
	if err != nil {
		cfg.Remove.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: rm requires at least one path", cli.ErrUsage)
	}
	ctx := context.Background()
	db, err := cfg.client(ctx, "sub,writable")
	if err != nil {
		return err
	}
	defer db.Close()
	for _, p := range args {
		if err := report(db.PathRemove(p)); err != nil {
			return fmt.Errorf("error removing %s: %w", p, err)
		}
	}
	return nil
}

// report prints warnings and returns errors.
func report(err error) error {
	if result.IsWarning(err) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return nil
	}
	return err
}

func readArg(cc *cli.Context, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cc.In)
	}
	d, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", file, err)
	}
	return d, nil
}

// local returns a DB without connections holding the yaml of file.
func local(cfg *MainConfig, cc *cli.Context, file string) (*ydb.DB, error) {
	d, err := readArg(cc, file)
	if err != nil {
		return nil, err
	}
	db, err := ydb.New(cfg.options()...)
	if err != nil {
		return nil, err
	}
	if err := db.Write(string(d)); result.IsError(err) {
		db.Close()
		return nil, fmt.Errorf("error decoding %s: %w", file, err)
	}
	return db, nil
}
