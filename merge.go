package ydb

import (
	"github.com/signadot/ydb/debug"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// change is one entry of the change log of a mutation.
type change struct {
	op    Op
	id    ir.ID
	path  ypath.Path
	value string
}

// mutation collects what one top level call changed.
type mutation struct {
	db      *DB
	t       *ir.Tree
	changes []change
	deleted []ypath.Path
	warns   []error
}

func (db *DB) newMutation() *mutation {
	return &mutation{db: db, t: db.tree}
}

func (m *mutation) record(op Op, id ir.ID, value string) {
	if m.db == nil {
		return
	}
	ch := change{op: op, id: id, path: m.t.PathOf(id), value: value}
	if debug.Merge() {
		m.db.log.Debug("change", "op", op.String(), "path", ch.path.String(), "value", value)
	}
	m.changes = append(m.changes, ch)
}

// created records a Create for every leaf of the new subtree id.
func (m *mutation) created(id ir.ID) {
	m.t.Visit(id, func(n ir.ID, post bool) bool {
		if !post && m.t.Len(n) == 0 {
			m.record(OpCreate, n, m.t.Value(n))
		}
		return true
	})
}

func (m *mutation) strict() bool {
	return m.db != nil && m.db.cfg.StrictTypes
}

func (m *mutation) empty() bool {
	return len(m.changes) == 0
}

// isPlaceholder reports whether id is an empty scalar, which merges into
// anything and is replaced by anything without a type conflict.
func isPlaceholder(t *ir.Tree, id ir.ID) bool {
	return t.Type(id) == ir.ScalarType && t.Value(id) == ""
}

// check reports the type conflicts merging src at dst would meet.
func check(t *ir.Tree, dst ir.ID, src *ir.Tree, sid ir.ID) error {
	st, dt := src.Type(sid), t.Type(dst)
	switch {
	case isPlaceholder(src, sid), isPlaceholder(t, dst):
		return nil
	case st != dt:
		return result.Errorf(result.TypeError, "cannot write %s over %s at %s", st, dt, t.Path(dst))
	case st == ir.MappingType:
		for c := range src.Children(sid) {
			if d := t.Child(dst, src.Key(c)); d != ir.Nil {
				if err := check(t, d, src, c); err != nil {
					return err
				}
			}
		}
	case st == ir.SequenceType:
		for i := range min(src.Len(sid), t.Len(dst)) {
			if err := check(t, t.ChildAt(dst, i), src, src.ChildAt(sid, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge merges node sid of src into dst. Scalars replace values, mappings
// merge by key, sequences merge by position and append the rest. A type
// conflict replaces dst; an empty scalar over a container changes nothing.
func (m *mutation) merge(dst ir.ID, src *ir.Tree, sid ir.ID) {
	t := m.t
	st, dt := src.Type(sid), t.Type(dst)
	switch {
	case st == ir.ScalarType && dt == ir.ScalarType:
		if old := t.Value(dst); old != src.Value(sid) {
			_ = t.SetValue(dst, src.Value(sid))
			m.record(OpUpdate, dst, src.Value(sid))
		}
	case isPlaceholder(src, sid):
	case st != dt:
		cp := t.Copy(src, sid)
		_ = t.Replace(dst, cp)
		m.record(OpUpdate, cp, t.Value(cp))
	case st == ir.MappingType:
		for c := range src.Children(sid) {
			k := src.Key(c)
			if d := t.Child(dst, k); d != ir.Nil {
				m.merge(d, src, c)
				continue
			}
			cp := t.Copy(src, c)
			_ = t.SetChild(dst, k, cp)
			m.created(cp)
		}
	default:
		i := 0
		for c := range src.Children(sid) {
			if d := t.ChildAt(dst, i); d != ir.Nil {
				m.merge(d, src, c)
			} else {
				cp := t.Copy(src, c)
				_ = t.Append(dst, cp)
				m.created(cp)
			}
			i++
		}
	}
}

// combine merges the documents of a multi document fragment into the first.
func combine(docs []*ir.Tree) *ir.Tree {
	if len(docs) == 0 {
		t := ir.New()
		_ = t.SetTop(t.NewScalar(""))
		return t
	}
	res := docs[0]
	m := &mutation{t: res}
	for _, d := range docs[1:] {
		m.merge(res.Top(), d, d.Top())
	}
	return res
}

// resolve walks p from the top as far as it exists. It returns the last
// node reached and the number of segments consumed, checking that the rest
// can be created.
func (m *mutation) resolve(p ypath.Path) (ir.ID, int, error) {
	t := m.t
	cur := t.Top()
	for i, seg := range p {
		if seg.IsWildcard() {
			return ir.Nil, 0, result.Errorf(result.InvalidArgs, "wildcard in write path %s", p)
		}
		switch t.Type(cur) {
		case ir.MappingType:
			c := t.Child(cur, seg.Text)
			if c == ir.Nil {
				return cur, i, nil
			}
			cur = c
		case ir.SequenceType:
			idx, ok := seg.Index()
			if !ok {
				return ir.Nil, 0, result.Errorf(result.TypeError, "key %s on sequence %s", seg, t.Path(cur))
			}
			if idx >= t.Len(cur) {
				return cur, i, nil
			}
			cur = t.ChildAt(cur, idx)
		default:
			if m.strict() && !isPlaceholder(t, cur) {
				return ir.Nil, 0, result.Errorf(result.TypeError, "path %s goes through scalar %s", p, t.Path(cur))
			}
			return cur, i, nil
		}
	}
	return cur, len(p), nil
}

func containerFor(seg ypath.Segment) ir.Type {
	if _, ok := seg.Index(); ok {
		return ir.SequenceType
	}
	return ir.MappingType
}

// writeAt merges frag at p, creating what is missing along the way.
func (m *mutation) writeAt(p ypath.Path, frag *ir.Tree) error {
	t := m.t
	cur, i, err := m.resolve(p)
	if err != nil {
		return err
	}
	if i == len(p) {
		if m.strict() {
			if err := check(t, cur, frag, frag.Top()); err != nil {
				return err
			}
		}
		m.merge(cur, frag, frag.Top())
		return nil
	}
	if t.Type(cur) == ir.ScalarType {
		repl := t.NewNode(containerFor(p[i]))
		_ = t.Replace(cur, repl)
		m.record(OpUpdate, repl, "")
		cur = repl
	}
	for j := i; j < len(p); j++ {
		var child ir.ID
		if j == len(p)-1 {
			child = t.Copy(frag, frag.Top())
		} else {
			child = t.NewNode(containerFor(p[j+1]))
		}
		if t.Type(cur) == ir.MappingType {
			_ = t.SetChild(cur, p[j].Text, child)
		} else {
			if idx, _ := p[j].Index(); idx > t.Len(cur) {
				m.warns = append(m.warns, result.Errorf(result.Adjusted, "%s: index %d appended at %d", p[:j+1], idx, t.Len(cur)))
			}
			_ = t.Append(cur, child)
		}
		cur = child
	}
	m.created(cur)
	return nil
}
