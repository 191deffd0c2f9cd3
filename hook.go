package ydb

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/signadot/ydb/debug"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// Op is a set of kinds of change.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpUpdate
	OpDelete

	OpAll = OpCreate | OpUpdate | OpDelete
)

type opName struct {
	op   Op
	name string
}

var opNames = []opName{
	{OpCreate, "create"},
	{OpUpdate, "update"},
	{OpDelete, "delete"},
}

func (o Op) String() string {
	var parts []string
	for _, n := range opNames {
		if o&n.op != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseOp parses names joined by '|' or ','. Single letters c, u and d are
// accepted, as is "all".
func ParseOp(s string) (Op, error) {
	var res Op
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		f = strings.TrimSpace(f)
		if f == "all" {
			res |= OpAll
			continue
		}
		i := slices.IndexFunc(opNames, func(n opName) bool {
			return n.name == f || n.name[:1] == f
		})
		if i < 0 {
			return 0, result.Errorf(result.InvalidArgs, "unknown op %q", f)
		}
		res |= opNames[i].op
	}
	return res, nil
}

// Change describes one changed path as seen by a hook.
type Change struct {
	Op    Op
	Path  string
	Value string
}

// Event is passed to a hook once per call that changed paths it watches.
type Event struct {
	// Op is the union of the ops of Changes.
	Op      Op
	Pattern string
	Changes []Change
	// Origin identifies the DB where the change was first made.
	Origin string
	// Local is set when the change was made by a call on this DB.
	Local bool
}

type Hook interface {
	OnChange(*Event) error
}

type HookFunc func(*Event) error

func (f HookFunc) OnChange(e *Event) error { return f(e) }

// HookHandle identifies a registration.
type HookHandle struct {
	pattern ypath.Path
	mask    Op
	hook    Hook
}

func (h *HookHandle) Pattern() string { return h.pattern.String() }
func (h *HookHandle) Mask() Op        { return h.mask }

// RegisterHook calls h after every top level call which creates, updates or
// deletes a path matching pattern with an op in mask. A change below the
// pattern is an update of it; deleting or replacing an ancestor is a
// deletion or an update of it.
func (db *DB) RegisterHook(pattern string, mask Op, h Hook) (*HookHandle, error) {
	if h == nil || mask&OpAll == 0 {
		return nil, result.New(result.HookAdd, "hook needs a callback and a mask")
	}
	p, err := ypath.Parse(pattern)
	if err != nil {
		return nil, result.Errorf(result.HookAdd, "pattern %q: %w", pattern, err)
	}
	hh := &HookHandle{pattern: p, mask: mask & OpAll, hook: h}
	db.hooks = append(db.hooks, hh)
	return hh, nil
}

func (db *DB) UnregisterHook(h *HookHandle) error {
	i := slices.Index(db.hooks, h)
	if i < 0 {
		return result.New(result.NoEntry, "hook is not registered")
	}
	db.hooks = slices.Delete(db.hooks, i, i+1)
	return nil
}

// relate returns the op a hook on pattern sees for ch, or 0.
func relate(pattern ypath.Path, ch change) Op {
	switch ypath.Match(pattern, ch.path) {
	case ypath.Exact:
		return ch.op
	case ypath.Descendant:
		return OpUpdate
	case ypath.Ancestor:
		if ch.op == OpCreate {
			return 0
		}
		return ch.op
	}
	return 0
}

func (db *DB) fireHooks(m *mutation, origin string) error {
	var errs []error
	for _, h := range slices.Clone(db.hooks) {
		ev := &Event{Pattern: h.pattern.String(), Origin: origin, Local: origin == db.origin}
		for _, ch := range m.changes {
			op := relate(h.pattern, ch) & h.mask
			if op == 0 {
				continue
			}
			ev.Op |= op
			ev.Changes = append(ev.Changes, Change{Op: op, Path: ch.path.String(), Value: ch.value})
		}
		if ev.Op == 0 {
			continue
		}
		if debug.Hooks() {
			debug.LogAny(ev)
		}
		if err := h.hook.OnChange(ev); err != nil {
			db.log.Warn("hook failed", "pattern", ev.Pattern, "error", err)
			errs = append(errs, fmt.Errorf("hook %s: %w", ev.Pattern, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &result.Error{Code: result.HookFailed, Err: errors.Join(errs...)}
}
