package ydb

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/ydb/debug"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := New(append([]Option{WithLogger(quietLog())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustGet(t *testing.T, db *DB) string {
	t.Helper()
	s, err := db.Get()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestScenario(t *testing.T) {
	db := newTestDB(t)
	var events []*Event
	_, err := db.RegisterHook("a", OpUpdate, HookFunc(func(e *Event) error {
		events = append(events, e)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Write("{a: {b: 1}}"); err != nil {
		t.Fatal(err)
	}
	v, err := db.PathGet("a/b")
	if err != nil {
		t.Fatal(err)
	}
	if v != "1" {
		t.Errorf("a/b = %q", v)
	}
	if err := db.PathRemove("a/b"); err != nil {
		t.Fatal(err)
	}
	v, err = db.PathGet("a")
	if err != nil {
		t.Fatal(err)
	}
	if v != "{}" {
		t.Errorf("a = %q", v)
	}
	want := []*Event{
		{Op: OpUpdate, Pattern: "/a", Changes: []Change{{Op: OpUpdate, Path: "/a/b", Value: "1"}}, Origin: db.Origin(), Local: true},
		{Op: OpUpdate, Pattern: "/a", Changes: []Change{{Op: OpUpdate, Path: "/a/b", Value: "1"}}, Origin: db.Origin(), Local: true},
	}
	if d := cmp.Diff(want, events); d != "" {
		t.Errorf("events (-want +got):\n%s", d)
	}
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   string
	}{
		{
			name:   "merge keys",
			writes: []string{"{a: 1, b: {c: 2}}", "{b: {d: 3}}"},
			want:   "a: 1\nb:\n  c: 2\n  d: 3",
		},
		{
			name:   "scalar replaces value",
			writes: []string{"a: 1", "a: 2"},
			want:   "a: 2",
		},
		{
			name:   "sequence merges by position",
			writes: []string{"s: [a, b]", "s: [x, y, z]"},
			want:   "s:\n  - x\n  - y\n  - z",
		},
		{
			name:   "shorter sequence keeps the tail",
			writes: []string{"s: [a, b, c]", "s: [x]"},
			want:   "s:\n  - x\n  - b\n  - c",
		},
		{
			name:   "type conflict replaces",
			writes: []string{"a: 1", "a: {b: 2}"},
			want:   "a:\n  b: 2",
		},
		{
			name:   "empty scalar is a path mention",
			writes: []string{"a: {b: 2}", "a:"},
			want:   "a:\n  b: 2",
		},
		{
			name:   "documents merge in order",
			writes: []string{"a: 1\n---\na: 2\nb: 3\n"},
			want:   "a: 2\nb: 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			for _, w := range tt.writes {
				if err := db.Write(w); err != nil {
					t.Fatal(err)
				}
			}
			if got := mustGet(t, db); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestPathWrite(t *testing.T) {
	db := newTestDB(t)
	if err := db.PathWrite("a/b/0/c", "x"); err != nil {
		t.Fatal(err)
	}
	if got, want := mustGet(t, db), "a:\n  b:\n    - c: x"; got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
	err := db.PathWrite("a/b/5", "y")
	if !errors.Is(err, result.Adjusted) || !result.IsWarning(err) {
		t.Fatalf("expected an Adjusted warning, got %v", err)
	}
	if v, _ := db.PathGet("a/b/1"); v != "y" {
		t.Errorf("a/b/1 = %q", v)
	}
	if err := db.PathWrite("a/'0'", ""); err != nil {
		t.Fatal(err)
	}
	if id, err := db.Search("a/0"); err != nil || db.Value(id) != "" || db.Type(id) != ir.ScalarType {
		t.Errorf("a/0: %v %v", id, err)
	}
	if err := db.PathWriteValue("a/d=k: v"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.PathGet("a/d"); v != "k: v" {
		t.Errorf("a/d = %q", v)
	}
	if err := db.PathWrite("a/b/x", "1"); !errors.Is(err, result.TypeError) {
		t.Errorf("key on a sequence: %v", err)
	}
	if err := db.PathWrite("a/*", "1"); !errors.Is(err, result.InvalidArgs) {
		t.Errorf("wildcard: %v", err)
	}
	if err := db.PathWriteValue("nothing"); !errors.Is(err, result.InvalidArgs) {
		t.Errorf("no '=': %v", err)
	}
	for _, pv := range []string{"a/e=\xff", "a/e=a\xc3", "a/\xff=1"} {
		if err := db.PathWriteValue(pv); !errors.Is(err, result.InvalidArgs) {
			t.Errorf("%q: %v", pv, err)
		}
	}
	if err := db.Write("e: \xff"); !errors.Is(err, result.YAMLParsingFailed) {
		t.Errorf("invalid UTF-8 yaml: %v", err)
	}
	if _, err := db.Search("a/e"); !errors.Is(err, result.NoEntry) {
		t.Errorf("a/e written: %v", err)
	}
	if err := db.Write("{a: [}"); !errors.Is(err, result.YAMLParsingFailed) {
		t.Errorf("bad yaml: %v", err)
	}
}

func TestStrictTypes(t *testing.T) {
	db := newTestDB(t, WithStrictTypes(true))
	if err := db.Write("a: 1\nb: {c: [x]}\ne:\n"); err != nil {
		t.Fatal(err)
	}
	before := mustGet(t, db)
	for _, w := range []string{
		"{z: 1, a: {x: 1}}",
		"{b: {c: {k: v}}}",
		"{b: [1]}",
	} {
		if err := db.Write(w); !errors.Is(err, result.TypeError) {
			t.Errorf("%s: got %v", w, err)
		}
	}
	if err := db.PathWrite("a/x", "1"); !errors.Is(err, result.TypeError) {
		t.Errorf("path through scalar: %v", err)
	}
	if got := mustGet(t, db); got != before {
		t.Errorf("failed writes changed the tree:\n%s", got)
	}
	// empty scalars take any type
	if err := db.Write("{e: {f: 1}, b: {c: [y, z]}}"); err != nil {
		t.Fatal(err)
	}
}

func TestRemove(t *testing.T) {
	db := newTestDB(t)
	if err := db.Write("{a: {b: 1, c: 2}, l: [x, y, z], m: {p: {q: 1}, r: {q: 2}}}"); err != nil {
		t.Fatal(err)
	}
	if err := db.Remove("a: {b: whatever}\nl:\n  0:\n  2:\n"); err != nil {
		t.Fatal(err)
	}
	if err := db.PathRemove("m/*/q"); err != nil {
		t.Fatal(err)
	}
	want := "a:\n  c: 2\nl:\n  - y\nm:\n  p: {}\n  r: {}"
	if got := mustGet(t, db); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
	for range 2 {
		if err := db.PathRemove("a/b"); !errors.Is(err, result.NoEntry) {
			t.Errorf("second remove: %v", err)
		}
	}
	// a/c is a scalar
	if err := db.PathRemove("a/c/x"); !errors.Is(err, result.NoEntry) {
		t.Errorf("remove below a scalar: %v", err)
	}
	if _, err := db.PathGet("a/c/x"); !errors.Is(err, result.NoEntry) {
		t.Errorf("get below a scalar: %v", err)
	}
	if got := mustGet(t, db); got != want {
		t.Errorf("NoEntry changed the tree:\n%s", got)
	}
	if err := db.PathRemove("/"); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, db); got != "{}" {
		t.Errorf("after clear: %s", got)
	}
	if err := db.PathRemove("/"); !errors.Is(err, result.NoEntry) {
		t.Errorf("clearing empty top: %v", err)
	}
}

func TestDeleteProtect(t *testing.T) {
	db := newTestDB(t, WithDeleteProtect("sys/*/id"))
	if err := db.Write("{sys: {a: {id: 1, x: 2}}, other: 3}"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"sys/a/id", "sys/a", "sys", "/"} {
		if err := db.PathRemove(p); !errors.Is(err, result.DeniedDelete) {
			t.Errorf("%s: %v", p, err)
		}
	}
	if err := db.Remove("sys:\n  a:\n    x:\nother:\n"); err != nil {
		t.Fatal(err)
	}
	if got, want := mustGet(t, db), "sys:\n  a:\n    id: 1"; got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestHooks(t *testing.T) {
	db := newTestDB(t)
	type call struct {
		name string
		ev   Event
	}
	var calls []call
	register := func(name, pattern string, mask Op) *HookHandle {
		h, err := db.RegisterHook(pattern, mask, HookFunc(func(e *Event) error {
			calls = append(calls, call{name, *e})
			return nil
		}))
		if err != nil {
			t.Fatal(err)
		}
		return h
	}
	register("all", "/", OpAll)
	register("created", "x/y", OpCreate)
	del := register("deleted", "x/y/z", OpDelete)
	register("any", "*/y", OpAll)

	if err := db.Write("{x: {y: {z: 1}}, w: 2}"); err != nil {
		t.Fatal(err)
	}
	names := func() []string {
		var res []string
		for _, c := range calls {
			res = append(res, c.name+":"+c.ev.Op.String())
		}
		calls = nil
		return res
	}
	if d := cmp.Diff([]string{"all:update", "any:update"}, names()); d != "" {
		t.Errorf("write (-want +got):\n%s", d)
	}
	if err := db.Write("{x: {y: {}}}"); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string(nil), names()); d != "" {
		t.Errorf("no-op write (-want +got):\n%s", d)
	}
	if err := db.PathRemove("x"); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"all:update", "deleted:delete", "any:delete"}, names()); d != "" {
		t.Errorf("remove (-want +got):\n%s", d)
	}
	if err := db.PathWrite("x/y", "{}"); err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"all:update", "created:create", "any:create"}, names()); d != "" {
		t.Errorf("create (-want +got):\n%s", d)
	}
	if err := db.UnregisterHook(del); err != nil {
		t.Fatal(err)
	}
	if err := db.UnregisterHook(del); !errors.Is(err, result.NoEntry) {
		t.Errorf("double unregister: %v", err)
	}
	if _, err := db.RegisterHook("a/'b", OpAll, HookFunc(func(*Event) error { return nil })); !errors.Is(err, result.HookAdd) {
		t.Errorf("bad pattern: %v", err)
	}
	if _, err := db.RegisterHook("a", OpAll, nil); !errors.Is(err, result.HookAdd) {
		t.Errorf("nil hook: %v", err)
	}
}

func TestHookFailure(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")
	var order []int
	for i := range 3 {
		_, err := db.RegisterHook("a", OpAll, HookFunc(func(*Event) error {
			order = append(order, i)
			if i == 1 {
				return boom
			}
			return nil
		}))
		if err != nil {
			t.Fatal(err)
		}
	}
	err := db.Write("a: 1")
	if !errors.Is(err, result.HookFailed) || !errors.Is(err, boom) || !result.IsWarning(err) {
		t.Fatalf("got %v", err)
	}
	if !slices.Equal(order, []int{0, 1, 2}) {
		t.Errorf("order %v", order)
	}
	if v, _ := db.PathGet("a"); v != "1" {
		t.Errorf("write was not committed: %q", v)
	}
}

func TestMergeTracing(t *testing.T) {
	debug.Set(false, true, false)
	defer debug.Set(false, false, false)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := newTestDB(t, WithLogger(log))
	if err := db.Write("a: {b: 1}"); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "msg=change") || !strings.Contains(out, "path=/a/b") {
		t.Errorf("no change record in\n%s", out)
	}
}

func TestParseOp(t *testing.T) {
	tests := map[string]Op{
		"create":        OpCreate,
		"u|d":           OpUpdate | OpDelete,
		"all":           OpAll,
		"create,delete": OpCreate | OpDelete,
	}
	for in, want := range tests {
		got, err := ParseOp(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseOp("upsert"); !errors.Is(err, result.InvalidArgs) {
		t.Errorf("bad op: %v", err)
	}
	if OpAll.String() != "create|update|delete" {
		t.Error(OpAll.String())
	}
}

func TestNavigation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Write("{a: {b: [x, y], c: z}}"); err != nil {
		t.Fatal(err)
	}
	a, err := db.Search("/a")
	if err != nil {
		t.Fatal(err)
	}
	b := db.Down(a)
	if db.Key(b) != "b" || db.Next(b) != db.Last(a) || db.Prev(db.Next(b)) != b || db.Up(b) != a {
		t.Error("sibling navigation")
	}
	y, err := db.Find(a, "b/1")
	if err != nil {
		t.Fatal(err)
	}
	if db.PathAndValue(y) != "/a/b/1=y" {
		t.Error(db.PathAndValue(y))
	}
	if lvl, err := db.Level(db.Top(), y); err != nil || lvl != 3 {
		t.Errorf("level %d %v", lvl, err)
	}
	if _, err := db.Level(b, a); !errors.Is(err, result.NoEntry) {
		t.Errorf("level of a non descendant: %v", err)
	}
	if id, err := db.Search("/a"); err != nil || id != a {
		t.Error("cached search")
	}
	ids, err := db.Select("a/b/*")
	if err != nil || len(ids) != 2 {
		t.Errorf("select: %v %v", ids, err)
	}
	if _, err := db.Search("a/c/d"); !errors.Is(err, result.NoEntry) {
		t.Errorf("missing: %v", err)
	}
	if _, err := db.Select("a/c/*"); !errors.Is(err, result.TypeError) {
		t.Errorf("wildcard on scalar: %v", err)
	}
	// the cache is dropped on change
	if err := db.PathRemove("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Search("/a"); !errors.Is(err, result.NoEntry) {
		t.Errorf("stale cache: %v", err)
	}
}

func TestTraverse(t *testing.T) {
	db := newTestDB(t)
	if err := db.Write("{a: {b: 1, c: [x, {}]}, d: 2}"); err != nil {
		t.Fatal(err)
	}
	walk := func(flags TraverseFlags) []string {
		var res []string
		err := db.Traverse(db.Top(), flags, func(id ir.ID) error {
			res = append(res, db.Path(id))
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	tests := []struct {
		flags TraverseFlags
		want  []string
	}{
		{0, []string{"/", "/a", "/a/b", "/a/c", "/a/c/0", "/a/c/1", "/d"}},
		{LeafOnly, []string{"/a/b", "/a/c/0", "/a/c/1", "/d"}},
		{ValueOnly, []string{"/a/b", "/a/c/0", "/d"}},
		{LeafFirst, []string{"/a/b", "/a/c/0", "/a/c/1", "/a/c", "/a", "/d", "/"}},
	}
	for _, tt := range tests {
		if d := cmp.Diff(tt.want, walk(tt.flags)); d != "" {
			t.Errorf("flags %d (-want +got):\n%s", tt.flags, d)
		}
	}
	stop := errors.New("stop")
	n := 0
	err := db.Traverse(db.Top(), 0, func(ir.ID) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || !errors.Is(err, result.Func) || n != 2 {
		t.Errorf("stop: %v after %d", err, n)
	}
}
