package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb"
	"github.com/signadot/ydb/parse"
	"github.com/signadot/ydb/result"
)

func serve(cfg *ServeConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Serve.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: serve takes no arguments, got %v", cli.ErrUsage, args)
	}
	c := cfg.dbConfig()
	var opts []ydb.Option
	if cfg.Origin != "" {
		opts = append(opts, ydb.WithOrigin(cfg.Origin))
	}
	if cfg.ConfigFile != "" {
		c, err = ydb.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return err
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
	}
	if cfg.ConfigFile == "" || cfg.Verbose {
		opts = append(opts, ydb.WithLogger(cfg.logger()))
	}
	if cfg.Name != "" {
		c.Name = cfg.Name
	}
	if cfg.Strict {
		c.StrictTypes = true
	}
	for _, spec := range cfg.Conns {
		c.Connections = append(c.Connections, ydb.ConnConfig{Address: spec.addr, Flags: spec.flags})
	}
	if len(c.Connections) == 0 {
		return fmt.Errorf("%w: serve needs a connection, from -c or -config", cli.ErrUsage)
	}

	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(os.Stderr, "gops agent failed: %v\n", err)
		} else {
			defer agent.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := ydb.Open(ctx, c, opts...)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, file := range cfg.Load {
		if err := load(db, file); err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
	}
	db.Log().Info("serving", "origin", db.Origin(), "connections", len(c.Connections))
	for ctx.Err() == nil {
		_, err := db.Serve(ctx, -1)
		switch {
		case err == nil, ctx.Err() != nil:
		case result.CodeOf(err) == result.NoConn:
			return err
		default:
			db.Log().Warn("serve", "error", err)
		}
	}
	db.Log().Info("shutting down")
	return nil
}

// load writes the documents of file one at a time.
func load(db *ydb.DB, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := parse.NewDecoder(f)
	for {
		doc, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := db.WriteTree(doc); result.IsError(err) {
			return err
		}
	}
}
