// Package libdiff computes differences between trees and between texts.
//
// A tree difference is a pair of fragments: a delete fragment, whose leaf
// paths are removed first, and a merge fragment merged afterwards. Applying
// both at the base of the old tree yields the new one.
package libdiff

import (
	"strconv"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/signadot/ydb/ir"
)

// Diff returns the fragments turning node aid of a into node bid of b. Both
// are rooted at aid; a delete fragment whose top is a scalar removes aid
// itself. A nil fragment means there is nothing to do.
func Diff(a *ir.Tree, aid ir.ID, b *ir.Tree, bid ir.ID) (remove, merge *ir.Tree) {
	d := &differ{a: a, b: b, rm: ir.New(), mg: ir.New()}
	rm, mg := d.diff(aid, bid)
	if rm != ir.Nil {
		_ = d.rm.SetTop(rm)
		remove = d.rm
	}
	if mg != ir.Nil {
		_ = d.mg.SetTop(mg)
		merge = d.mg
	}
	return remove, merge
}

type differ struct {
	a, b   *ir.Tree
	rm, mg *ir.Tree
	runes  map[[32]byte]rune
}

func (d *differ) diff(ai, bi ir.ID) (rm, mg ir.ID) {
	ta, tb := d.a.Type(ai), d.b.Type(bi)
	switch {
	case ta != tb:
		return d.rm.NewScalar(""), d.mg.Copy(d.b, bi)
	case ta == ir.ScalarType:
		if d.a.Value(ai) == d.b.Value(bi) {
			return ir.Nil, ir.Nil
		}
		return ir.Nil, d.mg.NewScalar(d.b.Value(bi))
	case ta == ir.MappingType:
		return d.mapping(ai, bi)
	default:
		return d.sequence(ai, bi)
	}
}

func (d *differ) mapping(ai, bi ir.ID) (rm, mg ir.ID) {
	for c := range d.a.Children(ai) {
		k := d.a.Key(c)
		bc := d.b.Child(bi, k)
		if bc == ir.Nil {
			rm = put(d.rm, rm, k, d.rm.NewScalar(""))
			continue
		}
		crm, cmg := d.diff(c, bc)
		if crm != ir.Nil {
			rm = put(d.rm, rm, k, crm)
		}
		if cmg != ir.Nil {
			mg = put(d.mg, mg, k, cmg)
		}
	}
	for c := range d.b.Children(bi) {
		k := d.b.Key(c)
		if d.a.Child(ai, k) == ir.Nil {
			mg = put(d.mg, mg, k, d.mg.Copy(d.b, c))
		}
	}
	return rm, mg
}

// sequence diffs positionally when b is at least as long as a. Otherwise a
// b obtained from a by dropping elements becomes a list of deleted indices,
// and anything else replaces the whole sequence.
func (d *differ) sequence(ai, bi ir.ID) (rm, mg ir.ID) {
	na, nb := d.a.Len(ai), d.b.Len(bi)
	if nb < na {
		if rm, ok := d.deletions(ai, bi); ok {
			return rm, ir.Nil
		}
		return d.rm.NewScalar(""), d.mg.Copy(d.b, bi)
	}
	changed := nb > na
	for i := range na {
		crm, cmg := d.diff(d.a.ChildAt(ai, i), d.b.ChildAt(bi, i))
		if crm != ir.Nil && d.rm.Type(crm) == ir.ScalarType {
			// removing the element would shift the ones after it
			return d.rm.NewScalar(""), d.mg.Copy(d.b, bi)
		}
		if crm != ir.Nil {
			rm = put(d.rm, rm, strconv.Itoa(i), crm)
		}
		if cmg != ir.Nil {
			changed = true
			// merges are positional, so the copy below covers it
			_ = d.mg.Delete(cmg)
		}
	}
	if changed || rm != ir.Nil {
		mg = d.mg.Copy(d.b, bi)
	}
	return rm, mg
}

// deletions aligns the elements of a and b by digest and reports the
// indices of a to delete when b is a with some elements dropped.
func (d *differ) deletions(ai, bi ir.ID) (ir.ID, bool) {
	dmp := diffpatch.New()
	diffs := dmp.DiffMainRunes(d.summary(d.a, ai), d.summary(d.b, bi), false)
	rm := ir.Nil
	i := 0
	for _, df := range diffs {
		n := len([]rune(df.Text))
		switch df.Type {
		case diffpatch.DiffInsert:
			return ir.Nil, false
		case diffpatch.DiffDelete:
			for j := range n {
				rm = put(d.rm, rm, strconv.Itoa(i+j), d.rm.NewScalar(""))
			}
		}
		i += n
	}
	return rm, true
}

// summary maps each child of id to a rune identifying its content.
func (d *differ) summary(t *ir.Tree, id ir.ID) []rune {
	if d.runes == nil {
		d.runes = map[[32]byte]rune{}
	}
	res := make([]rune, 0, t.Len(id))
	for c := range t.Children(id) {
		sum := t.Digest(c)
		r, ok := d.runes[sum]
		if !ok {
			r = privateRune(len(d.runes))
			d.runes[sum] = r
		}
		res = append(res, r)
	}
	return res
}

// privateRune returns the n'th code point of the private use areas, which
// are valid runes never produced by text.
func privateRune(n int) rune {
	const bmp = 0xF8FF - 0xE000 + 1
	if n < bmp {
		return rune(0xE000 + n)
	}
	return rune(0xF0000 + n - bmp)
}

func put(t *ir.Tree, parent ir.ID, key string, child ir.ID) ir.ID {
	if parent == ir.Nil {
		parent = t.NewMapping()
	}
	_ = t.SetChild(parent, key, child)
	return parent
}
