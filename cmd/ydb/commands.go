package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts, []*cli.Opt{
		{
			Name:        "o",
			Description: "output file (default stdout)",
			Type:        cli.NamedFuncOpt(cfg.outOpt, "(filepath)"),
		},
		{
			Name:        "c",
			Aliases:     []string{"connect"},
			Description: "connection, repeatable: scheme://target[,flags]",
			Type:        cli.NamedFuncOpt(cfg.connOpt, "(address)"),
		},
		{
			Name:        "timeout",
			Description: "timeout for connecting and syncing",
			Type:        cli.NamedFuncOpt(cfg.timeoutOpt, "(duration)"),
		},
		{
			Name:        "O",
			Aliases:     []string{"ofmt"},
			Description: "output format: json/j, yaml/y",
			Type:        cli.NamedFuncOpt(cfg.fmtFunc(&cfg.OutFormat), "(format)"),
		}}...)

	return cli.NewCommandAt(&cfg.Main, "ydb").
		WithSynopsis("ydb [opts] command [opts]").
		WithDescription("ydb serves and queries synchronized YAML trees.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return ydbMain(cfg, cc, args)
		}).
		WithSubs(
			ServeCommand(cfg),
			GetCommand(cfg),
			WriteCommand(cfg),
			RemoveCommand(cfg),
			WatchCommand(cfg),
			DiffCommand(cfg),
			PatchCommand(cfg))
}

func ServeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ServeConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts = append(opts, &cli.Opt{
		Name:        "load",
		Description: "yaml file written at start, repeatable",
		Type: cli.NamedFuncOpt(cli.FuncOpt(func(_ *cli.Context, a string) (any, error) {
			cfg.Load = append(cfg.Load, a)
			return len(cfg.Load), nil
		}), "(file)"),
	})
	return cli.NewCommandAt(&cfg.Serve, "serve").
		WithAliases("s").
		WithSynopsis("serve [-config file] [-load file]... [-gops]").
		WithDescription(serveDescription).
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return serve(cfg, cc, args)
		})
}

const serveDescription = `serve runs a ydb instance until interrupted.

Connections come from the configuration file and from the -c options of ydb,
for example

  ydb -c us:///run/ydb.sock,pub serve -load base.yaml

publishes on a unix socket, and

  ydb -c us:///run/ydb.sock,sub,writable -c tcp://:7001,pub serve

subscribes to it and republishes on a tcp port. Flags are pub, sub,
writable, unsubscribe, sync-before-read, leaf, protect and debug.`

func GetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &GetConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Get, "get").
		WithAliases("g").
		WithSynopsis("get [path]").
		WithDescription("print the tree of a publisher, or the node at path").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return get(cfg, cc, args)
		})
}

func WriteCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &WriteConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Write, "write").
		WithAliases("w").
		WithSynopsis("write [-f file] [path] [yaml] | write path=value...").
		WithDescription("merge yaml into a publisher").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return write(cfg, cc, args)
		})
}

func RemoveCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RemoveConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Remove, "rm").
		WithAliases("remove", "delete").
		WithSynopsis("rm path...").
		WithDescription("remove paths, which may hold wildcards, from a publisher").
		WithRun(func(cc *cli.Context, args []string) error {
			return remove(cfg, cc, args)
		})
}

func WatchCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &WatchConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Watch, "watch").
		WithSynopsis("watch [-p pattern] [-ops ops] [-if expr] [-n count]").
		WithDescription(watchDescription).
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return watch(cfg, cc, args)
		})
}

const watchDescription = `watch prints the changes received from publishers.

The -if expression sees the event as

  op       string   union of the change ops, such as "create|update"
  pattern  string   the watched pattern
  origin   string   the instance where the change was made
  changes  list     of {op, path, value}

for example -if 'any(changes, .path startsWith "/sys/")'.`

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d").
		WithSynopsis("diff [-text] a.yaml b.yaml").
		WithDescription("print the remove and merge fragments turning a into b").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func PatchCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &PatchConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Patch, "patch").
		WithAliases("p").
		WithSynopsis("patch file.yaml patch.json [path]").
		WithDescription("apply a json patch or merge patch to a yaml file").
		WithRun(func(cc *cli.Context, args []string) error {
			return patch(cfg, cc, args)
		})
}
