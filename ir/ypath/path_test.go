package ypath

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/ydb/result"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"", nil},
		{"/", nil},
		{"a", Path{Key("a")}},
		{"/a/b", Path{Key("a"), Key("b")}},
		{"a/b/", Path{Key("a"), Key("b")}},
		{"a/0", Path{Key("a"), Index(0)}},
		{"a/*", Path{Key("a"), Any()}},
		{`a/\*`, Path{Key("a"), Key("*")}},
		{`a\/b/c`, Path{Key("a/b"), Key("c")}},
		{`x/'0'`, Path{Key("x"), QuotedKey("0")}},
		{`''/y`, Path{QuotedKey(""), Key("y")}},
		{`'it\'s'`, Path{QuotedKey("it's")}},
		{`a\\b`, Path{Key(`a\b`)}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"a//b", `a\`, `'abc`, `'a'b`, "a/\xff"} {
		_, err := Parse(in)
		if !errors.Is(err, result.InvalidArgs) {
			t.Errorf("Parse(%q) = %v, want invalid args", in, err)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	paths := []Path{
		nil,
		{Key("a")},
		{Key("a/b"), Index(3)},
		{Key("*"), Any()},
		{QuotedKey("7"), Key("'lead")},
		{Key(""), Key(`back\slash`)},
		{QuotedKey(`o'/\`)},
	}
	for _, p := range paths {
		s := p.String()
		q, err := Parse(s)
		if err != nil {
			t.Errorf("Parse(%q): %v", s, err)
			continue
		}
		if !p.Equal(q) {
			t.Errorf("round trip of %#v via %q gave %#v", p, s, q)
		}
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		seg Segment
		i   int
		ok  bool
	}{
		{Key("0"), 0, true},
		{Key("12"), 12, true},
		{Key("012"), 0, false},
		{Key("-1"), 0, false},
		{Key("x"), 0, false},
		{QuotedKey("3"), 0, false},
		{Any(), 0, false},
	}
	for _, tt := range tests {
		i, ok := tt.seg.Index()
		if i != tt.i || ok != tt.ok {
			t.Errorf("%#v.Index() = %d, %v; want %d, %v", tt.seg, i, ok, tt.i, tt.ok)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          Relation
	}{
		{"a", "a", Exact},
		{"a", "a/b", Descendant},
		{"a/b", "a", Ancestor},
		{"a/*/c", "a/x/c", Exact},
		{"a/*", "a/x/y", Descendant},
		{"a/b", "a/c", Unrelated},
		{"", "a", Descendant},
	}
	for _, tt := range tests {
		got := Match(MustParse(tt.pattern), MustParse(tt.path))
		if got != tt.want {
			t.Errorf("Match(%q, %q) = %s, want %s", tt.pattern, tt.path, got, tt.want)
		}
	}
}
