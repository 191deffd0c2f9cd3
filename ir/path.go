package ir

import (
	"slices"

	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// PathOf returns the path from the root of the subtree containing id (the
// top, for attached nodes) down to id.
func (t *Tree) PathOf(id ID) ypath.Path {
	var p ypath.Path
	for n := t.get(id); n != nil && n.parent != Nil; n = t.get(n.parent) {
		if t.get(n.parent).typ == SequenceType {
			p = append(p, ypath.Index(n.pos))
		} else {
			p = append(p, ypath.Key(n.key))
		}
	}
	slices.Reverse(p)
	return p
}

// Path renders the path of id.
func (t *Tree) Path(id ID) string {
	return t.PathOf(id).String()
}

// PathAndValue renders "path=value" for scalars and the bare path for
// containers.
func (t *Tree) PathAndValue(id ID) string {
	p := t.Path(id)
	if n := t.get(id); n != nil && n.typ == ScalarType {
		return p + "=" + n.value
	}
	return p
}

// Find resolves the concrete path p relative to base.
func (t *Tree) Find(base ID, p ypath.Path) (ID, error) {
	if t.get(base) == nil {
		return Nil, result.Errorf(result.NoEntry, "base %s", base)
	}
	id := base
	for i, seg := range p {
		if seg.IsWildcard() {
			return Nil, result.Errorf(result.InvalidArgs, "wildcard in %s, use Select", p)
		}
		next, err := t.step(id, seg)
		if err != nil {
			return Nil, result.Errorf(result.CodeOf(err), "%s: %w", p[:i+1], err)
		}
		id = next
	}
	return id, nil
}

// Select resolves p relative to base, expanding wildcard segments, and
// returns the matches in document order.
func (t *Tree) Select(base ID, p ypath.Path) ([]ID, error) {
	if t.get(base) == nil {
		return nil, result.Errorf(result.NoEntry, "base %s", base)
	}
	res, err := t.sel(nil, base, p, false)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, result.Errorf(result.NoEntry, "%s", p)
	}
	return res, nil
}

func (t *Tree) sel(dst []ID, id ID, p ypath.Path, expanded bool) ([]ID, error) {
	if len(p) == 0 {
		return append(dst, id), nil
	}
	seg := p[0]
	if !seg.IsWildcard() {
		next, err := t.step(id, seg)
		if err != nil {
			if expanded {
				return dst, nil
			}
			return nil, err
		}
		return t.sel(dst, next, p[1:], expanded)
	}
	n := t.get(id)
	if n.typ == ScalarType {
		if expanded {
			return dst, nil
		}
		return nil, result.Errorf(result.TypeError, "wildcard on scalar %s", t.Path(id))
	}
	var err error
	for _, c := range n.children {
		dst, err = t.sel(dst, c, p[1:], true)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func (t *Tree) step(id ID, seg ypath.Segment) (ID, error) {
	n := t.get(id)
	switch n.typ {
	case MappingType:
		if c := t.Child(id, seg.Text); c != Nil {
			return c, nil
		}
	case SequenceType:
		if i, ok := seg.Index(); ok && i < len(n.children) {
			return n.children[i], nil
		}
	case ScalarType:
		// a scalar has no entries; only a wildcard is a type mismatch
		if seg.IsWildcard() {
			return Nil, result.New(result.TypeError, "wildcard on scalar")
		}
	}
	return Nil, result.Errorf(result.NoEntry, "segment %s", seg)
}
