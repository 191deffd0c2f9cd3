package ypath

import (
	"strconv"
	"strings"
)

type Kind uint8

const (
	KeyKind Kind = iota
	AnyKind
)

func (k Kind) String() string {
	switch k {
	case KeyKind:
		return "key"
	case AnyKind:
		return "any"
	default:
		return "<unknown kind>"
	}
}

// Segment is one step of a [Path].
type Segment struct {
	Kind Kind
	Text string
	// Quoted segments never address sequence slots.
	Quoted bool
}

func Key(k string) Segment {
	return Segment{Kind: KeyKind, Text: k}
}

func QuotedKey(k string) Segment {
	return Segment{Kind: KeyKind, Text: k, Quoted: true}
}

func Index(i int) Segment {
	return Segment{Kind: KeyKind, Text: strconv.Itoa(i)}
}

func Any() Segment {
	return Segment{Kind: AnyKind, Text: "*"}
}

func (s Segment) IsWildcard() bool {
	return s.Kind == AnyKind
}

// Index returns the sequence slot addressed by s, if its text is a
// canonical non-negative integer and s is not quoted.
func (s Segment) Index() (int, bool) {
	if s.Kind != KeyKind || s.Quoted {
		return 0, false
	}
	return canonicalIndex(s.Text)
}

func canonicalIndex(t string) (int, bool) {
	if t == "" || len(t) > 18 {
		return 0, false
	}
	if len(t) > 1 && t[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(t); i++ {
		if t[i] < '0' || t[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Matches reports whether the pattern segment s matches the concrete
// segment o.
func (s Segment) Matches(o Segment) bool {
	if s.Kind == AnyKind || o.Kind == AnyKind {
		return true
	}
	return s.Text == o.Text
}

func (s Segment) String() string {
	if s.Kind == AnyKind {
		return "*"
	}
	if s.Quoted || s.Text == "" {
		return "'" + escape(s.Text, true) + "'"
	}
	e := escape(s.Text, false)
	switch {
	case e == "*":
		return `\*`
	case strings.HasPrefix(e, "'"):
		return `\` + e
	}
	return e
}

func escape(t string, quoted bool) string {
	if !strings.ContainsAny(t, `/\'`) {
		return t
	}
	var b strings.Builder
	for i := 0; i < len(t); i++ {
		switch c := t[i]; c {
		case '/', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\'':
			if quoted {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
