package ypath

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/signadot/ydb/result"
)

// Path is a list of segments relative to some base node.
type Path []Segment

// Parse parses s into a Path.
func Parse(s string) (Path, error) {
	if !utf8.ValidString(s) {
		return nil, result.Errorf(result.InvalidArgs, "path %q: invalid UTF-8", s)
	}
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return nil, nil
	}
	var (
		p   Path
		i   int
		seg Segment
		err error
	)
	for i < len(s) {
		seg, i, err = parseSegment(s, i)
		if err != nil {
			return nil, result.Errorf(result.InvalidArgs, "path %q: %w", s, err)
		}
		p = append(p, seg)
		if i < len(s) {
			// skip the separator; a trailing separator is allowed
			i++
		}
	}
	return p, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(s string, i int) (Segment, int, error) {
	start := i
	if s[i] == '/' {
		return Segment{}, i, fmt.Errorf("empty segment at offset %d", i)
	}
	if s[i] == '\'' {
		var b strings.Builder
		i++
		for {
			if i >= len(s) {
				return Segment{}, i, fmt.Errorf("unterminated quote at offset %d", start)
			}
			c := s[i]
			if c == '\\' {
				if i+1 >= len(s) {
					return Segment{}, i, fmt.Errorf("trailing escape")
				}
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			i++
			if c == '\'' {
				break
			}
			b.WriteByte(c)
		}
		if i < len(s) && s[i] != '/' {
			return Segment{}, i, fmt.Errorf("unexpected %q after quoted segment", s[i])
		}
		return QuotedKey(b.String()), i, nil
	}
	var (
		b       strings.Builder
		escaped bool
	)
	for i < len(s) && s[i] != '/' {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) {
				return Segment{}, i, fmt.Errorf("trailing escape")
			}
			escaped = true
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	text := b.String()
	if text == "*" && !escaped {
		return Any(), i, nil
	}
	return Key(text), i, nil
}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

func (p Path) HasWildcard() bool {
	for _, seg := range p {
		if seg.IsWildcard() {
			return true
		}
	}
	return false
}

// Append returns a new path with segs added to p.
func (p Path) Append(segs ...Segment) Path {
	res := make(Path, 0, len(p)+len(segs))
	res = append(res, p...)
	return append(res, segs...)
}

// Equal compares kinds and texts, ignoring quoting.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i].Kind != q[i].Kind || p[i].Text != q[i].Text {
			return false
		}
	}
	return true
}

// Relation describes how a concrete path relates to a pattern.
type Relation uint8

const (
	Unrelated Relation = iota
	Exact
	// Descendant: the path lies below the pattern.
	Descendant
	// Ancestor: the path lies above the pattern.
	Ancestor
)

func (r Relation) String() string {
	switch r {
	case Exact:
		return "exact"
	case Descendant:
		return "descendant"
	case Ancestor:
		return "ancestor"
	default:
		return "unrelated"
	}
}

// Match relates path to pattern, where wildcard segments of pattern match
// any segment.
func Match(pattern, path Path) Relation {
	n := min(len(pattern), len(path))
	for i := 0; i < n; i++ {
		if !pattern[i].Matches(path[i]) {
			return Unrelated
		}
	}
	switch {
	case len(path) == len(pattern):
		return Exact
	case len(path) > len(pattern):
		return Descendant
	default:
		return Ancestor
	}
}
