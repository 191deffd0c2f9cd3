package ydb

import (
	"strings"
	"unicode/utf8"

	"github.com/signadot/ydb/ipc"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/parse"
	"github.com/signadot/ydb/result"
)

// parseFragment parses every document of y into one fragment; later
// documents merge over earlier ones. Empty input is an empty scalar.
func parseFragment(y string) (*ir.Tree, error) {
	docs, err := parse.ParseAll([]byte(y))
	if err != nil {
		return nil, err
	}
	return combine(docs), nil
}

// Write merges the YAML documents y at the top.
func (db *DB) Write(y string) error {
	frag, err := parseFragment(y)
	if err != nil {
		return err
	}
	return db.write(nil, frag, db.origin, nil)
}

// WriteTree merges the top of frag at the top.
func (db *DB) WriteTree(frag *ir.Tree) error {
	return db.write(nil, frag, db.origin, nil)
}

// PathWrite merges y at path, creating the missing nodes of path: an index
// segment creates a sequence, any other a mapping. An index past the end of
// a sequence appends, with an Adjusted warning.
func (db *DB) PathWrite(path, y string) error {
	p, err := ypath.Parse(path)
	if err != nil {
		return err
	}
	frag, err := parseFragment(y)
	if err != nil {
		return err
	}
	return db.write(p, frag, db.origin, nil)
}

// PathWriteValue writes a "path=value" assignment. The value is taken
// literally, not parsed as YAML, and must be valid UTF-8.
func (db *DB) PathWriteValue(pv string) error {
	path, value, ok := strings.Cut(pv, "=")
	if !ok {
		return result.Errorf(result.InvalidArgs, "%q: want path=value", pv)
	}
	if !utf8.ValidString(value) {
		return result.Errorf(result.InvalidArgs, "%q: invalid UTF-8 value", pv)
	}
	p, err := ypath.Parse(path)
	if err != nil {
		return err
	}
	frag := ir.New()
	_ = frag.SetTop(frag.NewScalar(value))
	return db.write(p, frag, db.origin, nil)
}

func (db *DB) write(p ypath.Path, frag *ir.Tree, origin string, from *ipc.Conn) error {
	m := db.newMutation()
	err := m.writeAt(p, frag)
	return db.commit(m, origin, from, err)
}

// Remove deletes the paths of the leaves of the YAML documents y. Values
// in y are ignored. Nothing found is reported as NoEntry.
func (db *DB) Remove(y string) error {
	frag, err := parseFragment(y)
	if err != nil {
		return err
	}
	return db.remove(leafPaths(frag), db.origin, nil)
}

// PathRemove deletes the nodes matching path, which may hold wildcards.
// Removing "/" empties the top.
func (db *DB) PathRemove(path string) error {
	p, err := ypath.Parse(path)
	if err != nil {
		return err
	}
	return db.remove([]ypath.Path{p}, db.origin, nil)
}

func (db *DB) remove(paths []ypath.Path, origin string, from *ipc.Conn) error {
	m := db.newMutation()
	ids := m.targets(paths)
	if len(ids) == 0 {
		return result.New(result.NoEntry, "nothing to remove")
	}
	if err := m.protected(ids); err != nil {
		return err
	}
	err := m.delete(ids)
	return db.commit(m, origin, from, err)
}

// commit ends a mutation: it fires the hooks and sends the deltas to the
// peers. err is the outcome of the mutation itself.
func (db *DB) commit(m *mutation, origin string, from *ipc.Conn, err error) error {
	if m.empty() {
		return err
	}
	if db.cache != nil {
		db.cache.Purge()
	}
	db.own(m, from)
	errs := append([]error{err}, m.warns...)
	errs = append(errs, db.fireHooks(m, origin))
	errs = append(errs, db.publish(m, origin, from))
	return result.Join(errs...)
}
