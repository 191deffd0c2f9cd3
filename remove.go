package ydb

import (
	"slices"

	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// leafPaths returns the paths of the leaves below the top of frag.
func leafPaths(frag *ir.Tree) []ypath.Path {
	var res []ypath.Path
	top := frag.Top()
	frag.Visit(top, func(id ir.ID, post bool) bool {
		if !post && id != top && frag.Len(id) == 0 {
			res = append(res, frag.PathOf(id))
		}
		return true
	})
	return res
}

// targets resolves paths against the tree, dropping the missing ones.
func (m *mutation) targets(paths []ypath.Path) []ir.ID {
	var ids []ir.ID
	for _, p := range paths {
		found, err := m.t.Select(m.t.Top(), p)
		if err != nil {
			continue
		}
		ids = append(ids, found...)
	}
	return ids
}

// protected fails when deleting any of ids would delete a protected path.
func (m *mutation) protected(ids []ir.ID) error {
	for _, id := range ids {
		p := m.t.PathOf(id)
		for _, pat := range m.db.protect {
			switch ypath.Match(pat, p) {
			case ypath.Exact, ypath.Ancestor:
				return result.Errorf(result.DeniedDelete, "%s is protected by %s", p, pat)
			}
		}
	}
	return nil
}

// delete removes ids and their subtrees. All ids must be resolved before
// the call, so sequence positions refer to the tree before any deletion.
func (m *mutation) delete(ids []ir.ID) error {
	t := m.t
	slices.SortFunc(ids, func(a, b ir.ID) int {
		return t.Level(t.Top(), a) - t.Level(t.Top(), b)
	})
	var roots []ir.ID
	for _, id := range ids {
		covered := slices.ContainsFunc(roots, func(r ir.ID) bool {
			return t.Level(r, id) >= 0
		})
		if covered {
			continue
		}
		if id == t.Top() && t.Len(id) == 0 {
			continue
		}
		roots = append(roots, id)
	}
	if len(roots) == 0 {
		return result.New(result.NoEntry, "nothing to remove")
	}
	for _, id := range roots {
		p := t.PathOf(id)
		m.changes = append(m.changes, change{op: OpDelete, path: p, value: t.Value(id)})
		m.deleted = append(m.deleted, p)
	}
	for _, id := range roots {
		if err := t.Delete(id); err != nil {
			return result.Wrap(result.DeleteFailed, err)
		}
	}
	return nil
}
