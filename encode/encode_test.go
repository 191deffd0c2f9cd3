package encode_test

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/format"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/irtest"
	"github.com/signadot/ydb/parse"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in    string
		block string
		wire  string
		json  string
	}{
		{
			in:    "x",
			block: "x",
			wire:  "x",
			json:  `"x"`,
		},
		{
			in:    "{}",
			block: "{}",
			wire:  "{}",
			json:  "{}",
		},
		{
			in:    "a: {b: 1}",
			block: "a:\n  b: 1",
			wire:  "{a: {b: 1}}",
			json:  `{"a":{"b":"1"}}`,
		},
		{
			in:    "s: [x, {k: v, j: w}, [y], [], {}]",
			block: "s:\n  - x\n  - j: w\n    k: v\n  - - y\n  - []\n  - {}",
			wire:  "{s: [x, {j: w, k: v}, [y], [], {}]}",
			json:  `{"s":["x",{"j":"w","k":"v"},["y"],[],{}]}`,
		},
		{
			in:    `{"": "", "a:b": "# c", n: null}`,
			block: "\"\": \"\"\n\"a:b\": \"# c\"\nn: \"\"",
			wire:  `{"": "", "a:b": "# c", n: ""}`,
			json:  `{"":"","a:b":"# c","n":""}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tr, err := parse.ParseString(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			check := func(want string, opts ...encode.EncodeOption) {
				t.Helper()
				got, err := encode.String(tr, tr.Top(), opts...)
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("got\n%s\nwant\n%s", got, want)
				}
			}
			check(tt.block)
			check(tt.wire, encode.EncodeWire(true))
			check(tt.json, encode.EncodeFormat(format.JSONFormat), encode.EncodeWire(true))
		})
	}
}

func TestNeedsQuote(t *testing.T) {
	tests := map[string]bool{
		"":          true,
		"plain":     false,
		"two words": false,
		"null":      true,
		"~":         true,
		"-":         true,
		"- x":       true,
		"-2.5":      false,
		"a: b":      true,
		"x#y":       true,
		"[x]":       true,
		" lead":     true,
		"trail ":    true,
		"multi\nl":  true,
		"---":       true,
		"ünï":       false,
		"*ref":      true,
		"<<":        true,
	}
	for in, want := range tests {
		if got := encode.NeedsQuote(in); got != want {
			t.Errorf("NeedsQuote(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIndent(t *testing.T) {
	tr, err := parse.ParseString("a: {b: [x]}")
	if err != nil {
		t.Fatal(err)
	}
	got, err := encode.String(tr, tr.Top(), encode.Indent(4))
	if err != nil {
		t.Fatal(err)
	}
	if want := "a:\n    b:\n        - x"; got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestColorsRoundTripWhenDisabled(t *testing.T) {
	tr, err := parse.ParseString("a: [1, 2]")
	if err != nil {
		t.Fatal(err)
	}
	colors := encode.NewColors()
	colors.Map = map[encode.Colorable]func(string, ...any) string{}
	got, err := encode.String(tr, tr.Top(), encode.EncodeColors(colors))
	if err != nil {
		t.Fatal(err)
	}
	if want := "a:\n  - 1\n  - 2"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 300
	props := gopter.NewProperties(params)
	for name, opts := range map[string][]encode.EncodeOption{
		"block": nil,
		"wire":  {encode.EncodeWire(true)},
		"json":  {encode.EncodeFormat(format.JSONFormat)},
	} {
		props.Property(name, prop.ForAll(
			func(seed int64) (bool, error) {
				tr := irtest.Random(rand.New(rand.NewSource(seed)), 4)
				text, err := encode.String(tr, tr.Top(), opts...)
				if err != nil {
					return false, err
				}
				back, err := parse.ParseString(text)
				if err != nil {
					return false, err
				}
				return ir.Equal(tr, tr.Top(), back, back.Top()), nil
			},
			gen.Int64(),
		))
	}
	props.TestingRun(t)
}
