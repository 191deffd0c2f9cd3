package ydb

import (
	"fmt"
	"slices"

	"github.com/signadot/ydb/debug"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// ReadHook refreshes the data below a pattern before it is read. OnRead
// returns YAML documents which are written at the top, or "" to leave the
// tree as is.
type ReadHook interface {
	OnRead(pattern string) (string, error)
}

type ReadHookFunc func(pattern string) (string, error)

func (f ReadHookFunc) OnRead(pattern string) (string, error) { return f(pattern) }

type ReadHookHandle struct {
	pattern ypath.Path
	hook    ReadHook
}

func (h *ReadHookHandle) Pattern() string { return h.pattern.String() }

// RegisterReadHook calls h whenever Get, PathGet or Dump read a path
// related to pattern, and before this DB answers a sync request for such a
// path. Related means equal, above or below once wildcards are matched.
func (db *DB) RegisterReadHook(pattern string, h ReadHook) (*ReadHookHandle, error) {
	if h == nil {
		return nil, result.New(result.HookAdd, "read hook needs a callback")
	}
	p, err := ypath.Parse(pattern)
	if err != nil {
		return nil, result.Errorf(result.HookAdd, "pattern %q: %w", pattern, err)
	}
	hh := &ReadHookHandle{pattern: p, hook: h}
	db.readHooks = append(db.readHooks, hh)
	return hh, nil
}

func (db *DB) UnregisterReadHook(h *ReadHookHandle) error {
	i := slices.Index(db.readHooks, h)
	if i < 0 {
		return result.New(result.NoEntry, "read hook is not registered")
	}
	db.readHooks = slices.Delete(db.readHooks, i, i+1)
	return nil
}

// beforeRead runs the read hooks related to path. Writes made by hooks
// are local changes: they fire change hooks and reach subscribers.
func (db *DB) beforeRead(path string) error {
	if len(db.readHooks) == 0 || db.inReadHook {
		return nil
	}
	p, err := ypath.Parse(path)
	if err != nil {
		// reported by the read itself
		return nil
	}
	db.inReadHook = true
	defer func() { db.inReadHook = false }()
	var errs []error
	for _, h := range slices.Clone(db.readHooks) {
		if ypath.Match(h.pattern, p) == ypath.Unrelated {
			continue
		}
		if debug.Hooks() {
			db.log.Debug("read hook", "pattern", h.Pattern(), "path", path)
		}
		y, err := h.hook.OnRead(h.Pattern())
		if err == nil && y != "" {
			err = db.Write(y)
		}
		if err != nil && !result.IsWarning(err) {
			db.log.Warn("read hook failed", "pattern", h.Pattern(), "error", err)
			errs = append(errs, &result.Error{Code: result.HookFailed, Err: fmt.Errorf("read hook %s: %w", h.Pattern(), err)})
		}
	}
	return result.Join(errs...)
}
