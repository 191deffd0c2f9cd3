package ydb

import (
	"errors"
	"maps"

	"github.com/signadot/ydb/ipc"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/result"
)

// WhisperMerge sends the YAML documents y to the peer which owns the node
// at path, that is the DB where it was written, instead of publishing
// them. The owner merges y at its top and publishes the result as its own
// change. Nodes written locally have no owner to whisper to.
func (db *DB) WhisperMerge(path, y string) error {
	return db.whisper(ipc.OpMerge, path, y)
}

// WhisperDelete is like WhisperMerge, except that the owner removes the
// paths of the leaves of y.
func (db *DB) WhisperDelete(path, y string) error {
	return db.whisper(ipc.OpDelete, path, y)
}

func (db *DB) whisper(op ipc.Op, path, y string) error {
	p, err := ypath.Parse(path)
	if err != nil {
		return err
	}
	id, err := db.tree.Find(db.tree.Top(), p)
	if err != nil {
		return err
	}
	frag, err := parseFragment(y)
	if err != nil {
		return err
	}
	c := db.ownerOf(id)
	if c == nil {
		return result.Errorf(result.UnknownTarget, "%s was written here", p)
	}
	if c.State() != ipc.Connected {
		return result.Errorf(result.NoConn, "owner of %s is %s", p, c.State())
	}
	body, err := wire(frag, frag.Top())
	if err != nil {
		return err
	}
	return c.Send(&ipc.Message{Type: ipc.TypeWhisper, Op: op, Origin: db.origin, Target: p.String(), Body: body})
}

// own records from as the owner of the nodes m created or updated, and of
// their ancestors which have none yet.
func (db *DB) own(m *mutation, from *ipc.Conn) {
	top := db.tree.Top()
	for _, ch := range m.changes {
		if ch.op == OpDelete || !db.tree.Valid(ch.id) {
			continue
		}
		db.owners[ch.id] = from
		for p := db.tree.Up(ch.id); p != ir.Nil && p != top; p = db.tree.Up(p) {
			if _, ok := db.owners[p]; ok {
				break
			}
			db.owners[p] = from
		}
	}
	if len(m.deleted) > 0 || len(db.owners) > 2*db.tree.Size() {
		maps.DeleteFunc(db.owners, func(id ir.ID, _ *ipc.Conn) bool {
			return !db.tree.Valid(id) || !db.tree.IsAttached(id)
		})
	}
}

// ownerOf returns the connection id or its nearest owned ancestor came
// from, or nil when it was written here.
func (db *DB) ownerOf(id ir.ID) *ipc.Conn {
	for ; id != ir.Nil; id = db.tree.Up(id) {
		if c, ok := db.owners[id]; ok {
			return c
		}
	}
	return nil
}

// relayWhisper applies a whisper addressed to a node written here, or
// passes it on towards the owner of the node.
func (p *peer) relayWhisper(c *ipc.Conn, m *ipc.Message) error {
	db := p.db()
	if m.Op != ipc.OpMerge && m.Op != ipc.OpDelete {
		return result.Errorf(result.InvalidMsg, "whisper %s", m.Op)
	}
	tp, err := ypath.Parse(m.Target)
	if err != nil {
		return result.Errorf(result.InvalidMsg, "whisper target: %w", err)
	}
	id, err := db.tree.Find(db.tree.Top(), tp)
	if err != nil {
		return result.Errorf(result.InvalidMsg, "whisper target %s: %w", tp, err)
	}
	owner := db.ownerOf(id)
	switch {
	case owner == nil:
		return p.applyWhisper(c, m)
	case owner == c:
		return result.Errorf(result.InvalidMsg, "whisper for %s came from its owner", tp)
	case owner.State() != ipc.Connected:
		return result.Errorf(result.NoConn, "owner of %s is %s", tp, owner.State())
	}
	fwd := *m
	c.Log().Debug("relaying whisper", "target", m.Target, "to", owner.ID())
	return owner.Send(&fwd)
}

// applyWhisper applies a whisper as a change of this DB, so that it is
// published to every subscriber, the whisperer included.
func (p *peer) applyWhisper(c *ipc.Conn, m *ipc.Message) error {
	db := p.db()
	if m.Body == nil {
		return nil
	}
	frag, err := parseFragment(string(m.Body))
	if err != nil {
		return err
	}
	if m.Op == ipc.OpMerge {
		return db.write(nil, frag, db.origin, nil)
	}
	if c.Flags().Has(ipc.Protect) {
		return result.Errorf(result.DeniedDelete, "%s is delete protected", c.ID())
	}
	err = db.remove(leafPaths(frag), db.origin, nil)
	if errors.Is(err, result.NoEntry) {
		return nil
	}
	return err
}
