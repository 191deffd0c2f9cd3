package ir

import (
	"encoding/binary"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// Digest returns a blake2b-256 digest of the subtree at id. Equal subtrees
// have equal digests, in any process.
func (t *Tree) Digest(id ID) [32]byte {
	h := blake2b.New256()
	t.hash(h, id)
	var res [32]byte
	copy(res[:], h.Sum(nil))
	return res
}

func (t *Tree) hash(h hash.Hash, id ID) {
	n := t.get(id)
	if n == nil {
		return
	}
	h.Write([]byte{byte(n.typ)})
	switch n.typ {
	case ScalarType:
		writeString(h, n.value)
	case MappingType, SequenceType:
		var b [binary.MaxVarintLen64]byte
		h.Write(b[:binary.PutUvarint(b[:], uint64(len(n.children)))])
		for _, c := range n.children {
			if n.typ == MappingType {
				writeString(h, t.slots[c.slot()].n.key)
			}
			t.hash(h, c)
		}
	}
}

func writeString(h hash.Hash, s string) {
	var b [binary.MaxVarintLen64]byte
	h.Write(b[:binary.PutUvarint(b[:], uint64(len(s)))])
	h.Write([]byte(s))
}
