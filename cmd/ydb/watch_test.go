package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/expr-lang/expr"
	"github.com/scott-cotton/cli"

	"github.com/signadot/ydb"
)

var testEvent = &ydb.Event{
	Op:      ydb.OpUpdate | ydb.OpDelete,
	Pattern: "/a",
	Origin:  "o1",
	Changes: []ydb.Change{
		{Op: ydb.OpUpdate, Path: "/a/b", Value: "1"},
		{Op: ydb.OpDelete, Path: "/a/c"},
	},
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := printEvent(&buf, testEvent, nil); err != nil {
		t.Fatal(err)
	}
	want := `---
changes:
  - op: update
    path: /a/b
    value: 1
  - op: delete
    path: /a/c
op: update|delete
origin: o1
pattern: /a
`
	if got := buf.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestEventFilter(t *testing.T) {
	tests := map[string]bool{
		`origin == "o1"`:                                 true,
		`any(changes, .path startsWith "/a/c")`:          true,
		`all(changes, .op == "update")`:                  false,
		`len(changes) == 2 && pattern == "/a"`:           true,
		`op contains "create"`:                           false,
		`any(changes, .op == "update" && .value == "1")`: true,
	}
	for in, want := range tests {
		prg, err := expr.Compile(in, expr.Env(eventEnv(&ydb.Event{})), expr.AsBool())
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		got, err := expr.Run(prg, eventEnv(testEvent))
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Errorf("%s = %v, want %v", in, got, want)
		}
	}
}

func TestParseConnSpec(t *testing.T) {
	spec, err := parseConnSpec("us:///run/ydb.sock,sub,writable")
	if err != nil {
		t.Fatal(err)
	}
	if spec.addr != "us:///run/ydb.sock" || spec.flags != "sub,writable" {
		t.Errorf("got %+v", spec)
	}
	if spec, _ := parseConnSpec("tcp://:7000"); spec.flags != "" {
		t.Errorf("flags %q", spec.flags)
	}
	if _, err := parseConnSpec("ydb.sock"); !errors.Is(err, cli.ErrUsage) {
		t.Errorf("got %v", err)
	}
}
