package ydb

import (
	"slices"

	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
)

// mergeDelta copies every node created or updated by m into a fragment
// rooted at top. A change inside a sequence copies the outermost sequence,
// so that positional merging on the receiver lines up.
func (m *mutation) mergeDelta() *ir.Tree {
	t := m.t
	var roots []ir.ID
	for _, ch := range m.changes {
		if ch.op == OpDelete || !t.Valid(ch.id) || !t.IsAttached(ch.id) {
			continue
		}
		roots = append(roots, ch.id)
	}
	if len(roots) == 0 {
		return nil
	}
	return graft(t, roots)
}

// outermost lifts id to its outermost sequence ancestor, if any.
func outermost(t *ir.Tree, id ir.ID) ir.ID {
	for p := t.Up(id); p != ir.Nil; p = t.Up(p) {
		if t.Type(p) == ir.SequenceType {
			id = p
		}
	}
	return id
}

// graft builds a fragment holding copies of roots at their paths. A root
// inside a sequence is replaced by the outermost sequence holding it, so
// that every path of the fragment is made of mapping keys.
func graft(t *ir.Tree, roots []ir.ID) *ir.Tree {
	roots = slices.Clone(roots)
	for i, id := range roots {
		roots[i] = outermost(t, id)
	}
	slices.SortFunc(roots, func(a, b ir.ID) int {
		return t.Level(t.Top(), a) - t.Level(t.Top(), b)
	})
	d := ir.New()
	var done []ir.ID
	for _, id := range roots {
		if slices.ContainsFunc(done, func(r ir.ID) bool { return t.Level(r, id) >= 0 }) {
			continue
		}
		done = append(done, id)
		if id == t.Top() {
			_ = d.SetTop(d.Copy(t, id))
			continue
		}
		p := t.PathOf(id)
		cur := d.Top()
		for _, seg := range p[:len(p)-1] {
			next := d.Child(cur, seg.Text)
			if next == ir.Nil {
				next = d.NewMapping()
				_ = d.SetChild(cur, seg.Text, next)
			}
			cur = next
		}
		_ = d.SetChild(cur, p[len(p)-1].Text, d.Copy(t, id))
	}
	return d
}

// deleteDelta is a mapping tree of the paths deleted by m, each ending in
// an empty scalar. Clearing the top is an empty scalar top.
func (m *mutation) deleteDelta() *ir.Tree {
	if len(m.deleted) == 0 {
		return nil
	}
	d := ir.New()
	for _, p := range m.deleted {
		if len(p) == 0 {
			_ = d.SetTop(d.NewScalar(""))
			return d
		}
		cur := d.Top()
		for i, seg := range p {
			next := d.Child(cur, seg.Text)
			if i == len(p)-1 {
				if next == ir.Nil {
					_ = d.SetChild(cur, seg.Text, d.NewScalar(""))
				}
				break
			}
			if next == ir.Nil {
				next = d.NewMapping()
				_ = d.SetChild(cur, seg.Text, next)
			}
			cur = next
		}
	}
	return d
}

// deletePaths reads the paths of a delete fragment.
func deletePaths(frag *ir.Tree) []ypath.Path {
	if frag.Type(frag.Top()) == ir.ScalarType {
		return []ypath.Path{{}}
	}
	return leafPaths(frag)
}
