package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb"
	"github.com/signadot/ydb/result"
)

func ydbMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	defer func() {
		if cfg.CloseOut != nil {
			cfg.CloseOut()
		}
	}()
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func (cfg *MainConfig) outOpt(cc *cli.Context, a string) (any, error) {
	cfg.Out = a
	if a == "-" {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.Out, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	cc.Out = f
	cfg.CloseOut = f.Close
	return nil, nil
}

func (cfg *MainConfig) dbConfig() *ydb.Config {
	c := ydb.DefaultConfig()
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	return c
}

func (cfg *MainConfig) options() []ydb.Option {
	opts := []ydb.Option{ydb.WithLogger(cfg.logger())}
	if cfg.Origin != "" {
		opts = append(opts, ydb.WithOrigin(cfg.Origin))
	}
	return opts
}

// client returns a DB connected to the -c addresses, using flags for the
// addresses given without any. It returns once every handshake completed.
func (cfg *MainConfig) client(ctx context.Context, flags string) (*ydb.DB, error) {
	if len(cfg.Conns) == 0 {
		return nil, fmt.Errorf("%w: a -c address is required", cli.ErrUsage)
	}
	db, err := ydb.New(append(cfg.options(), ydb.WithConfig(cfg.dbConfig()))...)
	if err != nil {
		return nil, err
	}
	for _, spec := range cfg.Conns {
		f := spec.flags
		if f == "" {
			f = flags
		}
		if _, err := db.Connect(ctx, spec.addr, f); err != nil {
			db.Close()
			return nil, err
		}
	}
	deadline := time.Now().Add(db.Config().Timeout)
	for !cfg.connected(db) {
		left := time.Until(deadline)
		if left <= 0 {
			db.Close()
			return nil, result.New(result.Timeout, "handshake did not complete")
		}
		if _, err := db.Serve(ctx, left); result.IsError(err) {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func (cfg *MainConfig) connected(db *ydb.DB) bool {
	for _, spec := range cfg.Conns {
		if !db.IsConnected(spec.addr) {
			return false
		}
	}
	return true
}
