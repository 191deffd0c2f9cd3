// Package irtest builds trees for tests.
package irtest

import (
	"math/rand"

	"github.com/signadot/ydb/ir"
)

// Keys and Values are the pools Random draws from. They include text that
// needs quoting or escaping in YAML and in paths.
var (
	Keys = []string{
		"a", "b", "c", "name", "0", "1", "12", "007", "", " ", "a/b", "*", "'q",
		"x:y", "-", "true", "null", "k#", "ünï",
	}
	Values = []string{
		"", "1", "-2.5", "true", "null", "~", "x", "hello world", "a: b",
		"- item", "#not a comment", "multi\nline", "tab\there", " lead",
		"trail ", "'single'", `"double"`, "[x]", "{y}", "---", "...", "ünï",
		"back\\slash", "0x1F", "*star", "&amp", "!tag", "%pct", "@at", "`tick`",
		"yes", "<<",
	}
)

// Random builds a tree of at most depth levels below top, drawing structure
// from r.
func Random(r *rand.Rand, depth int) *ir.Tree {
	t := ir.New()
	fill(t, r, t.Top(), depth)
	return t
}

// RandomNode builds a detached node in t.
func RandomNode(t *ir.Tree, r *rand.Rand, depth int) ir.ID {
	if depth <= 0 || r.Intn(3) == 0 {
		return t.NewScalar(Values[r.Intn(len(Values))])
	}
	var id ir.ID
	if r.Intn(2) == 0 {
		id = t.NewMapping()
	} else {
		id = t.NewSequence()
	}
	fill(t, r, id, depth)
	return id
}

func fill(t *ir.Tree, r *rand.Rand, id ir.ID, depth int) {
	n := r.Intn(5)
	for i := 0; i < n; i++ {
		c := RandomNode(t, r, depth-1)
		switch t.Type(id) {
		case ir.MappingType:
			k := Keys[r.Intn(len(Keys))]
			if t.Child(id, k) != ir.Nil {
				t.Delete(c)
				continue
			}
			t.SetChild(id, k, c)
		case ir.SequenceType:
			t.Append(id, c)
		}
	}
}

// Nodes returns every node below and including id in document order.
func Nodes(t *ir.Tree, id ir.ID) []ir.ID {
	var res []ir.ID
	t.Visit(id, func(n ir.ID, post bool) bool {
		if !post {
			res = append(res, n)
		}
		return true
	})
	return res
}
