package ydb

import (
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// Search resolves path from the top. Resolved paths are cached until the
// next change.
func (db *DB) Search(path string) (ir.ID, error) {
	if db.cache != nil {
		if v, ok := db.cache.Get(path); ok {
			if id := v.(ir.ID); db.tree.Valid(id) {
				return id, nil
			}
		}
	}
	id, err := db.Find(db.tree.Top(), path)
	if err != nil {
		return ir.Nil, err
	}
	if db.cache != nil {
		db.cache.Add(path, id)
	}
	return id, nil
}

// Find resolves path relative to base.
func (db *DB) Find(base ir.ID, path string) (ir.ID, error) {
	p, err := ypath.Parse(path)
	if err != nil {
		return ir.Nil, err
	}
	return db.tree.Find(base, p)
}

// Select resolves path from the top, expanding wildcards.
func (db *DB) Select(path string) ([]ir.ID, error) {
	p, err := ypath.Parse(path)
	if err != nil {
		return nil, err
	}
	return db.tree.Select(db.tree.Top(), p)
}

func (db *DB) Top() ir.ID { return db.tree.Top() }

func (db *DB) Up(id ir.ID) ir.ID    { return db.tree.Up(id) }
func (db *DB) Down(id ir.ID) ir.ID  { return db.tree.Down(id) }
func (db *DB) Next(id ir.ID) ir.ID  { return db.tree.Next(id) }
func (db *DB) Prev(id ir.ID) ir.ID  { return db.tree.Prev(id) }
func (db *DB) First(id ir.ID) ir.ID { return db.tree.First(id) }
func (db *DB) Last(id ir.ID) ir.ID  { return db.tree.Last(id) }

// Level returns the depth of id below base, or NoEntry when id does not
// descend from base.
func (db *DB) Level(base, id ir.ID) (int, error) {
	lvl := db.tree.Level(base, id)
	if lvl < 0 {
		return lvl, result.Errorf(result.NoEntry, "%s is not below %s", db.tree.Path(id), db.tree.Path(base))
	}
	return lvl, nil
}

func (db *DB) Path(id ir.ID) string         { return db.tree.Path(id) }
func (db *DB) PathAndValue(id ir.ID) string { return db.tree.PathAndValue(id) }
func (db *DB) Key(id ir.ID) string          { return db.tree.Key(id) }
func (db *DB) Value(id ir.ID) string        { return db.tree.Value(id) }
func (db *DB) Type(id ir.ID) ir.Type        { return db.tree.Type(id) }
