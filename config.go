package ydb

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/signadot/ydb/ipc"
	"github.com/signadot/ydb/ir/ypath"
)

// Config is the file form of a DB's settings.
type Config struct {
	// Name identifies the instance in logs.
	Name string `yaml:"name"`
	// Connections are opened by Open, in order.
	Connections []ConnConfig `yaml:"connections"`
	// Timeout bounds dialing, writes and Sync.
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
	// MaxBatch bounds the messages handled by one call to Serve.
	MaxBatch int `yaml:"maxBatch"`
	// MaxMessage bounds the size of a received frame in bytes.
	MaxMessage int `yaml:"maxMessage"`
	// StrictTypes makes a write whose type conflicts with the tree fail
	// instead of replacing the node.
	StrictTypes bool `yaml:"strictTypes"`
	// DeleteProtect lists path patterns which cannot be removed.
	DeleteProtect []string `yaml:"deleteProtect"`
	// CacheSize is the number of resolved paths Search remembers.
	CacheSize int       `yaml:"cacheSize"`
	Log       LogConfig `yaml:"log"`
}

type ConnConfig struct {
	Address string `yaml:"address"`
	Flags   string `yaml:"flags"`
}

type RetryConfig struct {
	Max      int           `yaml:"max"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// LoadConfig reads a YAML configuration file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	h := ipc.DefaultConfig()
	return &Config{
		Name:       "ydb",
		Timeout:    h.DialTimeout,
		Retry:      RetryConfig{Max: h.MaxRetries, Interval: h.RetryInterval},
		MaxBatch:   h.MaxBatch,
		MaxMessage: h.MaxMessage,
		CacheSize:  1024,
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string
	for i, cc := range c.Connections {
		if _, err := ipc.ParseAddress(cc.Address); err != nil {
			errs = append(errs, fmt.Sprintf("connections[%d]: %v", i, err))
		}
		if _, err := ipc.ParseFlags(cc.Flags); err != nil {
			errs = append(errs, fmt.Sprintf("connections[%d]: %v", i, err))
		}
	}
	for i, p := range c.DeleteProtect {
		if _, err := ypath.Parse(p); err != nil {
			errs = append(errs, fmt.Sprintf("deleteProtect[%d]: %v", i, err))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must not be negative")
	}
	if c.Retry.Max < 0 || c.Retry.Interval < 0 {
		errs = append(errs, "retry must not be negative")
	}
	if c.MaxBatch < 0 || c.MaxMessage < 0 || c.CacheSize < 0 {
		errs = append(errs, "maxBatch, maxMessage and cacheSize must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q: want json or text", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) hubConfig() ipc.Config {
	h := ipc.DefaultConfig()
	if c.Timeout > 0 {
		h.DialTimeout = c.Timeout
		h.WriteTimeout = c.Timeout
	}
	h.MaxRetries = c.Retry.Max
	if c.Retry.Interval > 0 {
		h.RetryInterval = c.Retry.Interval
	}
	h.MaxBatch = c.MaxBatch
	h.MaxMessage = c.MaxMessage
	return h
}

// NewLogger builds the logger described by c, writing to stderr.
func (c *LogConfig) NewLogger() *slog.Logger {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("log.level %q: %w", s, err)
	}
	return lvl, nil
}

// slogLevel reads the level of the default logger from YDB_LOG.
func slogLevel() slog.Level {
	lvl, err := parseLevel(os.Getenv("YDB_LOG"))
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}
