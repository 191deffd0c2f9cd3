package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/format"
)

type MainConfig struct {
	Color   bool   `cli:"name=color desc='encode with color'"`
	WireOut bool   `cli:"name=wire desc='output in compact format'"`
	J       bool   `cli:"name=j aliases=json desc='output json'"`
	Verbose bool   `cli:"name=v desc='log connection activity'"`
	Origin  string `cli:"name=origin desc='origin identifier, default random'"`

	Timeout   time.Duration
	Conns     []connSpec
	OutFormat *format.Format

	Out      string
	CloseOut func() error

	Main *cli.Command
}

// connSpec is an address with optional flags, as given to -c.
type connSpec struct {
	addr  string
	flags string
}

func parseConnSpec(a string) (connSpec, error) {
	addr, flags, _ := strings.Cut(a, ",")
	if !strings.Contains(addr, "://") {
		return connSpec{}, fmt.Errorf("%w: %q is not scheme://target[,flags]", cli.ErrUsage, a)
	}
	return connSpec{addr: addr, flags: flags}, nil
}

func (cfg *MainConfig) connOpt(_ *cli.Context, a string) (any, error) {
	spec, err := parseConnSpec(a)
	if err != nil {
		return nil, err
	}
	cfg.Conns = append(cfg.Conns, spec)
	return len(cfg.Conns), nil
}

func (cfg *MainConfig) fmtFunc(fps ...**format.Format) cli.FuncOpt {
	return cli.FuncOpt(func(_ *cli.Context, v string) (any, error) {
		f, err := format.ParseFormat(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		for _, fp := range fps {
			*fp = &f
		}
		return f, nil
	})
}

func (cfg *MainConfig) timeoutOpt(_ *cli.Context, a string) (any, error) {
	d, err := time.ParseDuration(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}
	cfg.Timeout = d
	return d, nil
}

func (cfg *MainConfig) logger() *slog.Logger {
	lvl := slog.LevelWarn
	if cfg.Verbose {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func (cfg *MainConfig) encOpts(w io.Writer) []encode.EncodeOption {
	fmat := format.YAMLFormat
	if cfg.J {
		fmat = format.JSONFormat
	}
	if cfg.OutFormat != nil {
		fmat = *cfg.OutFormat
	}
	res := []encode.EncodeOption{
		encode.EncodeFormat(fmat),
		encode.EncodeWire(cfg.WireOut),
	}
	if cfg.colors(w) {
		res = append(res, encode.EncodeColors(encode.NewColors()))
	}
	return res
}

// colors reports whether output to w is colored: -color decides when
// given, otherwise a terminal gets colors.
func (cfg *MainConfig) colors(w io.Writer) bool {
	if cfg.Color {
		return true
	}
	for _, opt := range cfg.Main.Opts {
		if opt.Name == "color" && opt.Value != nil {
			return false
		}
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

type ServeConfig struct {
	*MainConfig
	ConfigFile string `cli:"name=config desc='configuration file'"`
	Name       string `cli:"name=name desc='instance name'"`
	Gops       bool   `cli:"name=gops desc='start a gops agent'"`
	Strict     bool   `cli:"name=strict desc='reject writes changing node types'"`

	Load []string

	Serve *cli.Command
}

type GetConfig struct {
	*MainConfig
	Sync bool `cli:"name=sync desc='sync the path before reading'"`

	Get *cli.Command
}

type WriteConfig struct {
	*MainConfig
	File string `cli:"name=f desc='read the yaml from a file, - for stdin'"`

	Write *cli.Command
}

type RemoveConfig struct {
	*MainConfig

	Remove *cli.Command
}

type WatchConfig struct {
	*MainConfig
	Pattern string `cli:"name=p desc='path pattern to watch, default /'"`
	Ops     string `cli:"name=ops desc='ops to watch: create,update,delete'"`
	If      string `cli:"name=if desc='expr condition on the event'"`
	Count   int    `cli:"name=n desc='exit after n events'"`

	Watch *cli.Command
}

type DiffConfig struct {
	*MainConfig
	Text bool `cli:"name=text desc='show a line diff instead of fragments'"`

	Diff *cli.Command
}

type PatchConfig struct {
	*MainConfig

	Patch *cli.Command
}
