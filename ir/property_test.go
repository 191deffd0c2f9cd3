package ir_test

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/irtest"
	"github.com/signadot/ydb/ir/ypath"
)

func TestTreeProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	props := gopter.NewProperties(params)

	props.Property("path round trip", prop.ForAll(
		func(seed int64) bool {
			tr := irtest.Random(rand.New(rand.NewSource(seed)), 4)
			for _, id := range irtest.Nodes(tr, tr.Top()) {
				p, err := ypath.Parse(tr.Path(id))
				if err != nil {
					return false
				}
				got, err := tr.Find(tr.Top(), p)
				if err != nil || got != id {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	props.Property("prev(next(n)) == n", prop.ForAll(
		func(seed int64) bool {
			tr := irtest.Random(rand.New(rand.NewSource(seed)), 4)
			for _, id := range irtest.Nodes(tr, tr.Top()) {
				next := tr.Next(id)
				if next != ir.Nil && tr.Prev(next) != id {
					return false
				}
				if c := tr.Down(id); c != ir.Nil && tr.Up(c) != id {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	props.Property("copy is equal and hashes alike", prop.ForAll(
		func(seed int64) bool {
			tr := irtest.Random(rand.New(rand.NewSource(seed)), 4)
			other := ir.New()
			cp := other.Copy(tr, tr.Top())
			if err := other.SetTop(cp); err != nil {
				return false
			}
			return ir.Equal(tr, tr.Top(), other, other.Top()) &&
				tr.Digest(tr.Top()) == other.Digest(other.Top())
		},
		gen.Int64(),
	))

	props.TestingRun(t)
}
