package ir

// Equal reports whether the subtrees a/ai and b/bi hold the same data:
// same types, scalar values and children, sequences compared in order and
// mappings by key. The keys of ai and bi themselves are not compared.
func Equal(a *Tree, ai ID, b *Tree, bi ID) bool {
	na, nb := a.get(ai), b.get(bi)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	if na.typ != nb.typ || len(na.children) != len(nb.children) {
		return false
	}
	switch na.typ {
	case ScalarType:
		return na.value == nb.value
	case SequenceType:
		for i, c := range na.children {
			if !Equal(a, c, b, nb.children[i]) {
				return false
			}
		}
	case MappingType:
		for _, c := range na.children {
			o := b.Child(bi, a.slots[c.slot()].n.key)
			if o == Nil || !Equal(a, c, b, o) {
				return false
			}
		}
	}
	return true
}
