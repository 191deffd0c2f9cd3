package ir

import (
	"fmt"
	"iter"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/signadot/ydb/result"
)

// ID addresses a node in a [Tree]. The low 32 bits name an arena slot, the
// high 32 bits the generation of that slot.
type ID uint64

// Nil is the zero ID; it never names a node.
const Nil ID = 0

func makeID(slot, gen uint32) ID { return ID(uint64(gen)<<32 | uint64(slot)) }
func (id ID) slot() uint32       { return uint32(id) }
func (id ID) gen() uint32        { return uint32(id >> 32) }

func (id ID) String() string {
	if id == Nil {
		return "nil"
	}
	return fmt.Sprintf("#%d.%d", id.slot(), id.gen())
}

type node struct {
	typ      Type
	key      string
	value    string
	parent   ID
	pos      int
	children []ID
}

type slot struct {
	gen uint32
	n   *node
}

// Tree is an arena of nodes with a distinguished top node.
type Tree struct {
	slots []slot
	free  []uint32
	top   ID
	live  int
}

// New returns a tree whose top is an empty mapping.
func New() *Tree {
	t := &Tree{slots: make([]slot, 1, 16)}
	t.top = t.NewMapping()
	return t
}

func (t *Tree) alloc(n *node) ID {
	n.pos = -1
	t.live++
	if k := len(t.free); k > 0 {
		s := t.free[k-1]
		t.free = t.free[:k-1]
		t.slots[s].n = n
		return makeID(s, t.slots[s].gen)
	}
	t.slots = append(t.slots, slot{gen: 1, n: n})
	return makeID(uint32(len(t.slots)-1), 1)
}

func (t *Tree) get(id ID) *node {
	s := id.slot()
	if id == Nil || int(s) >= len(t.slots) {
		return nil
	}
	sl := &t.slots[s]
	if sl.n == nil || sl.gen != id.gen() {
		return nil
	}
	return sl.n
}

func (t *Tree) release(id ID) {
	sl := &t.slots[id.slot()]
	sl.n = nil
	sl.gen++
	t.free = append(t.free, id.slot())
	t.live--
}

func (t *Tree) NewScalar(v string) ID {
	return t.alloc(&node{typ: ScalarType, value: v})
}

func (t *Tree) NewMapping() ID {
	return t.alloc(&node{typ: MappingType})
}

func (t *Tree) NewSequence() ID {
	return t.alloc(&node{typ: SequenceType})
}

// NewNode allocates an empty node of type typ.
func (t *Tree) NewNode(typ Type) ID {
	return t.alloc(&node{typ: typ})
}

// Valid reports whether id names a live node of t.
func (t *Tree) Valid(id ID) bool {
	return t.get(id) != nil
}

// Size returns the number of live nodes, attached or not.
func (t *Tree) Size() int {
	return t.live
}

func (t *Tree) Top() ID {
	return t.top
}

// SetTop makes the detached node id the top of t. The previous top and its
// subtree are deleted.
func (t *Tree) SetTop(id ID) error {
	n := t.get(id)
	if n == nil {
		return result.Errorf(result.NoEntry, "node %s", id)
	}
	if id == t.top {
		return nil
	}
	if n.parent != Nil {
		return result.Errorf(result.InvalidParent, "node %s is attached", id)
	}
	old := t.top
	t.top = id
	n.key = ""
	if t.get(old) != nil {
		t.free1(old)
	}
	return nil
}

func (t *Tree) Type(id ID) Type {
	if n := t.get(id); n != nil {
		return n.typ
	}
	return ScalarType
}

// Key returns the mapping key of id, or "" when id is not a mapping entry.
func (t *Tree) Key(id ID) string {
	if n := t.get(id); n != nil {
		return n.key
	}
	return ""
}

func (t *Tree) Value(id ID) string {
	if n := t.get(id); n != nil {
		return n.value
	}
	return ""
}

func (t *Tree) SetValue(id ID, v string) error {
	n := t.get(id)
	if n == nil {
		return result.Errorf(result.NoEntry, "node %s", id)
	}
	if n.typ != ScalarType {
		return result.Errorf(result.TypeError, "set value on %s", n.typ)
	}
	if !utf8.ValidString(v) {
		return result.Errorf(result.InvalidArgs, "value %q: invalid UTF-8", v)
	}
	n.value = v
	return nil
}

func (t *Tree) Up(id ID) ID {
	if n := t.get(id); n != nil {
		return n.parent
	}
	return Nil
}

// Down returns the first child of id.
func (t *Tree) Down(id ID) ID {
	return t.First(id)
}

func (t *Tree) First(id ID) ID {
	if n := t.get(id); n != nil && len(n.children) > 0 {
		return n.children[0]
	}
	return Nil
}

func (t *Tree) Last(id ID) ID {
	if n := t.get(id); n != nil && len(n.children) > 0 {
		return n.children[len(n.children)-1]
	}
	return Nil
}

func (t *Tree) Next(id ID) ID {
	return t.sibling(id, 1)
}

func (t *Tree) Prev(id ID) ID {
	return t.sibling(id, -1)
}

func (t *Tree) sibling(id ID, d int) ID {
	n := t.get(id)
	if n == nil || n.parent == Nil {
		return Nil
	}
	p := t.get(n.parent)
	i := n.pos + d
	if i < 0 || i >= len(p.children) {
		return Nil
	}
	return p.children[i]
}

// Len returns the number of children of id.
func (t *Tree) Len(id ID) int {
	if n := t.get(id); n != nil {
		return len(n.children)
	}
	return 0
}

// Index returns the position of id among its siblings, or -1 if id is
// detached or the top.
func (t *Tree) Index(id ID) int {
	n := t.get(id)
	if n == nil || n.parent == Nil {
		return -1
	}
	return n.pos
}

// Child looks up key in the mapping id.
func (t *Tree) Child(id ID, key string) ID {
	n := t.get(id)
	if n == nil || n.typ != MappingType {
		return Nil
	}
	i, ok := t.search(n, key)
	if !ok {
		return Nil
	}
	return n.children[i]
}

func (t *Tree) search(n *node, key string) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return t.slots[n.children[i].slot()].n.key >= key
	})
	return i, i < len(n.children) && t.slots[n.children[i].slot()].n.key == key
}

// ChildAt returns the i'th child of id.
func (t *Tree) ChildAt(id ID, i int) ID {
	n := t.get(id)
	if n == nil || i < 0 || i >= len(n.children) {
		return Nil
	}
	return n.children[i]
}

// Children iterates over a snapshot of the children of id, so the
// iteration survives mutation of id.
func (t *Tree) Children(id ID) iter.Seq[ID] {
	n := t.get(id)
	if n == nil {
		return func(func(ID) bool) {}
	}
	ch := slices.Clone(n.children)
	return func(yield func(ID) bool) {
		for _, c := range ch {
			if !yield(c) {
				return
			}
		}
	}
}

// IsAttached reports whether id is the top or is reachable from it.
func (t *Tree) IsAttached(id ID) bool {
	for n := t.get(id); n != nil; n = t.get(n.parent) {
		if id == t.top {
			return true
		}
		id = n.parent
	}
	return false
}

// SetChild attaches the detached node child under key in mapping parent.
func (t *Tree) SetChild(parent ID, key string, child ID) error {
	p, c, err := t.attachable(parent, child, MappingType)
	if err != nil {
		return err
	}
	i, ok := t.search(p, key)
	if ok {
		return result.Errorf(result.EntryExists, "key %q", key)
	}
	c.key = key
	c.parent = parent
	p.children = slices.Insert(p.children, i, child)
	t.renumber(p, i)
	return nil
}

// Append attaches the detached node child at the end of sequence parent.
func (t *Tree) Append(parent, child ID) error {
	p, c, err := t.attachable(parent, child, SequenceType)
	if err != nil {
		return err
	}
	c.key = ""
	c.parent = parent
	c.pos = len(p.children)
	p.children = append(p.children, child)
	return nil
}

func (t *Tree) attachable(parent, child ID, typ Type) (*node, *node, error) {
	p, c := t.get(parent), t.get(child)
	if p == nil || c == nil {
		return nil, nil, result.Errorf(result.NoEntry, "attach %s under %s", child, parent)
	}
	if p.typ != typ {
		return nil, nil, result.Errorf(result.InvalidParent, "%s is a %s, not a %s", parent, p.typ, typ)
	}
	if c.parent != Nil || child == t.top {
		return nil, nil, result.Errorf(result.InvalidParent, "%s is already attached", child)
	}
	for a := parent; a != Nil; a = t.get(a).parent {
		if a == child {
			return nil, nil, result.Errorf(result.InvalidParent, "%s would become its own ancestor", child)
		}
	}
	return p, c, nil
}

func (t *Tree) renumber(p *node, from int) {
	for i := from; i < len(p.children); i++ {
		t.slots[p.children[i].slot()].n.pos = i
	}
}

// Detach unlinks id from its parent. The node stays allocated and may be
// attached again.
func (t *Tree) Detach(id ID) error {
	n := t.get(id)
	if n == nil {
		return result.Errorf(result.NoEntry, "node %s", id)
	}
	if id == t.top {
		return result.New(result.InvalidArgs, "cannot detach top")
	}
	if n.parent == Nil {
		return nil
	}
	p := t.get(n.parent)
	p.children = slices.Delete(p.children, n.pos, n.pos+1)
	t.renumber(p, n.pos)
	n.parent = Nil
	n.pos = -1
	return nil
}

// Delete detaches id and frees its whole subtree. Deleting the top empties
// it instead.
func (t *Tree) Delete(id ID) error {
	if id == t.top {
		return t.Clear(id)
	}
	if err := t.Detach(id); err != nil {
		return err
	}
	t.free1(id)
	return nil
}

// Clear deletes every child of id.
func (t *Tree) Clear(id ID) error {
	n := t.get(id)
	if n == nil {
		return result.Errorf(result.NoEntry, "node %s", id)
	}
	for _, c := range n.children {
		t.get(c).parent = Nil
		t.free1(c)
	}
	n.children = nil
	return nil
}

func (t *Tree) free1(id ID) {
	n := t.get(id)
	for _, c := range n.children {
		t.free1(c)
	}
	t.release(id)
}

// Replace puts the detached node repl at the position of old, keeping the
// key, and deletes old.
func (t *Tree) Replace(old, repl ID) error {
	o, r := t.get(old), t.get(repl)
	if o == nil || r == nil {
		return result.Errorf(result.NoEntry, "replace %s with %s", old, repl)
	}
	if r.parent != Nil || repl == t.top {
		return result.Errorf(result.InvalidParent, "%s is already attached", repl)
	}
	if old == t.top {
		return t.SetTop(repl)
	}
	if o.parent == Nil {
		t.free1(old)
		return nil
	}
	p := t.get(o.parent)
	p.children[o.pos] = repl
	r.parent, r.pos, r.key = o.parent, o.pos, o.key
	o.parent = Nil
	t.free1(old)
	return nil
}

// Copy deep copies the node id of src into t as a detached node.
func (t *Tree) Copy(src *Tree, id ID) ID {
	n := src.get(id)
	if n == nil {
		return Nil
	}
	res := t.alloc(&node{typ: n.typ, key: n.key, value: n.value})
	if len(n.children) == 0 {
		return res
	}
	cp := t.get(res)
	cp.children = make([]ID, 0, len(n.children))
	for i, c := range n.children {
		cc := t.Copy(src, c)
		ccn := t.get(cc)
		ccn.parent = res
		ccn.pos = i
		cp.children = append(cp.children, cc)
	}
	return res
}

// Level returns the depth of id below base, 0 when they are the same node
// and -1 when id does not descend from base.
func (t *Tree) Level(base, id ID) int {
	if t.get(base) == nil {
		return -1
	}
	lvl := 0
	for n := t.get(id); n != nil; n = t.get(n.parent) {
		if id == base {
			return lvl
		}
		id = n.parent
		lvl++
	}
	return -1
}

// Visit walks the subtree at id depth first, calling fn before (post false)
// and after (post true) the children of each node. Returning false from a
// pre-order call skips the children.
func (t *Tree) Visit(id ID, fn func(id ID, post bool) bool) {
	n := t.get(id)
	if n == nil {
		return
	}
	if fn(id, false) {
		for _, c := range slices.Clone(n.children) {
			t.Visit(c, fn)
		}
	}
	fn(id, true)
}
