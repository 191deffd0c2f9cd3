package ydb

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/signadot/ydb/encode"
	"github.com/signadot/ydb/ipc"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/ir/ypath"
	"github.com/signadot/ydb/parse"
	"github.com/signadot/ydb/result"
)

// Connect opens a connection. flags is a list such as "pub", "sub,writable"
// or "sub,sync-before-read,leaf"; see [ipc.ParseFlags].
func (db *DB) Connect(ctx context.Context, addr, flags string) (*ipc.Conn, error) {
	f, err := ipc.ParseFlags(flags)
	if err != nil {
		return nil, err
	}
	return db.hub.Connect(ctx, addr, f)
}

func (db *DB) Disconnect(addr string) error {
	return db.hub.Disconnect(addr)
}

func (db *DB) IsConnected(addr string) bool {
	return db.hub.IsConnected(addr)
}

// Serve applies the messages received from peers. A zero timeout does not
// wait, a negative one waits without limit for the first message.
func (db *DB) Serve(ctx context.Context, timeout time.Duration) (int, error) {
	return db.hub.Serve(ctx, timeout)
}

// Fd returns a descriptor which is readable when Serve has work.
func (db *DB) Fd() int {
	return db.hub.Fd()
}

// Sync asks every dialed publisher for its data at path and serves until
// all answered, or returns a Timeout warning.
func (db *DB) Sync(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := ypath.Parse(path); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = db.cfg.Timeout
	}
	body, err := scalarBody(path)
	if err != nil {
		return err
	}
	var errs []error
	asked := 0
	for _, c := range db.hub.Conns() {
		if !c.IsDialed() || c.State() != ipc.Connected {
			continue
		}
		err := c.Send(&ipc.Message{Type: ipc.TypeRequest, Op: ipc.OpSync, Origin: db.origin, Timeout: timeout, Body: body})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		db.pending[c]++
		asked++
	}
	if asked == 0 {
		return result.Join(errs...)
	}
	deadline := time.Now().Add(timeout)
	for db.waiting() {
		left := time.Until(deadline)
		if ctx.Err() != nil {
			left = 0
		}
		if left <= 0 {
			clear(db.pending)
			errs = append(errs, result.Errorf(result.Timeout, "sync %s", path))
			break
		}
		_, err := db.hub.Serve(ctx, left)
		switch result.CodeOf(err) {
		case result.OK, result.MoreRecv:
		case result.NoConn:
			clear(db.pending)
			errs = append(errs, err)
		default:
			errs = append(errs, err)
		}
	}
	return result.Join(errs...)
}

func (db *DB) waiting() bool {
	for c, n := range db.pending {
		if n > 0 && c.State() != ipc.Closed {
			return true
		}
	}
	return false
}

// syncBeforeRead syncs path when a connection asks for it.
func (db *DB) syncBeforeRead(path string) error {
	for _, c := range db.hub.Conns() {
		if c.IsDialed() && c.Flags().Has(ipc.SyncBeforeRead) && c.State() == ipc.Connected {
			return db.Sync(context.Background(), path, db.cfg.Timeout)
		}
	}
	return nil
}

func (db *DB) digest() string {
	d := db.tree.Digest(db.tree.Top())
	return hex.EncodeToString(d[:])
}

func wire(t *ir.Tree, id ir.ID) ([]byte, error) {
	s, err := encode.String(t, id, encode.EncodeWire(true))
	return []byte(s), err
}

func scalarBody(v string) ([]byte, error) {
	t := ir.New()
	_ = t.SetTop(t.NewScalar(v))
	return wire(t, t.Top())
}

func (db *DB) dump() ([]byte, error) {
	return wire(db.tree, db.tree.Top())
}

// publish sends the deltas of m to the peers that want them. A delta never
// goes back to the connection it came from, nor to the peer where it
// started, and deltas from leaf connections stop here.
func (db *DB) publish(m *mutation, origin string, from *ipc.Conn) error {
	if from != nil && from.Flags().Has(ipc.LeafOnly) {
		return nil
	}
	type delta struct {
		op   ipc.Op
		body []byte
	}
	var deltas []delta
	if d := m.deleteDelta(); d != nil {
		body, err := wire(d, d.Top())
		if err != nil {
			return err
		}
		deltas = append(deltas, delta{ipc.OpDelete, body})
	}
	if d := m.mergeDelta(); d != nil {
		body, err := wire(d, d.Top())
		if err != nil {
			return err
		}
		deltas = append(deltas, delta{ipc.OpMerge, body})
	}
	var errs []error
	for _, c := range db.hub.Conns() {
		if !db.wants(c, origin, from) {
			continue
		}
		for _, d := range deltas {
			err := c.Send(&ipc.Message{Type: ipc.TypePublish, Op: d.op, Origin: origin, Body: d.body})
			if err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return result.Join(errs...)
}

func (db *DB) wants(c *ipc.Conn, origin string, from *ipc.Conn) bool {
	switch {
	case c == from, c.IsListener(), c.State() != ipc.Connected:
		return false
	case c.PeerOrigin() != "" && c.PeerOrigin() == origin:
		return false
	case c.IsAccepted():
		return !c.PeerFlags().Has(ipc.Unsubscribe)
	case c.IsDialed():
		return c.Flags().Has(ipc.Writable)
	}
	return c.IsSink()
}

// peer is the ipc.Handler of a DB.
type peer DB

func (p *peer) db() *DB { return (*DB)(p) }

// Attached starts the handshake on a dialed connection.
func (p *peer) Attached(c *ipc.Conn) error {
	db := p.db()
	m := &ipc.Message{
		Type:    ipc.TypeRequest,
		Op:      ipc.OpInit,
		Origin:  db.origin,
		Flags:   c.Flags(),
		Digest:  db.digest(),
		Timeout: db.cfg.Timeout,
	}
	if c.Flags().Has(ipc.Writable) {
		body, err := db.dump()
		if err != nil {
			return err
		}
		m.Body = body
	}
	return c.Send(m)
}

func (p *peer) HandleMessage(c *ipc.Conn, m *ipc.Message) error {
	db := p.db()
	if m.Type == ipc.TypePublish && m.Origin == db.origin {
		c.Log().Debug("dropping own delta", "seq", m.Seq)
		return nil
	}
	switch {
	case m.Type == ipc.TypeRequest && m.Op == ipc.OpInit:
		return p.init(c, m)
	case m.Type == ipc.TypeResponse && m.Op == ipc.OpInit:
		c.SetPeer(m.Flags, m.Origin)
		c.MarkConnected()
		if m.Body == nil {
			return nil
		}
		return p.apply(c, m.Origin, ipc.OpMerge, m.Body)
	case m.Type == ipc.TypeRequest && m.Op == ipc.OpSync:
		return p.sync(c, m)
	case m.Type == ipc.TypeResponse && m.Op == ipc.OpSync:
		db.answered(c)
		if m.Body == nil {
			return nil
		}
		return p.apply(c, m.Origin, ipc.OpMerge, m.Body)
	case m.Type == ipc.TypeFailed:
		db.answered(c)
		return result.Errorf(result.Failed, "peer failed %s: %s", m.Op, m.Body)
	case m.Type == ipc.TypePublish && (m.Op == ipc.OpMerge || m.Op == ipc.OpDelete):
		if c.State() != ipc.Connected {
			return result.Errorf(result.InvalidMsg, "%s before init", m.Op)
		}
		if c.IsAccepted() && !c.PeerFlags().Has(ipc.Writable) {
			return result.Errorf(result.InvalidMsg, "%s from a read only subscriber", m.Op)
		}
		return p.apply(c, m.Origin, m.Op, m.Body)
	case m.Type == ipc.TypeWhisper:
		if c.State() != ipc.Connected {
			return result.Errorf(result.InvalidMsg, "whisper before init")
		}
		return p.relayWhisper(c, m)
	}
	return result.Errorf(result.InvalidMsg, "unexpected %s %s", m.Type, m.Op)
}

func (db *DB) answered(c *ipc.Conn) {
	if db.pending[c] > 0 {
		db.pending[c]--
	}
	if db.pending[c] == 0 {
		delete(db.pending, c)
	}
}

// init answers the handshake of a subscriber.
func (p *peer) init(c *ipc.Conn, m *ipc.Message) error {
	db := p.db()
	c.SetPeer(m.Flags, m.Origin)
	var errs []error
	if m.Flags.Has(ipc.Writable) && m.Body != nil {
		errs = append(errs, p.apply(c, m.Origin, ipc.OpMerge, m.Body))
	}
	resp := &ipc.Message{Type: ipc.TypeResponse, Op: ipc.OpInit, Origin: db.origin, Flags: c.Flags()}
	if !m.Flags.Has(ipc.Unsubscribe) && m.Digest != db.digest() {
		body, err := db.dump()
		if err != nil {
			return err
		}
		resp.Body = body
	}
	c.MarkConnected()
	errs = append(errs, c.Send(resp))
	return result.Join(errs...)
}

// sync answers a sync request with the subtree at the requested path.
func (p *peer) sync(c *ipc.Conn, m *ipc.Message) error {
	db := p.db()
	fail := func(err error) error {
		body, _ := scalarBody(err.Error())
		serr := c.Send(&ipc.Message{Type: ipc.TypeFailed, Op: ipc.OpSync, Origin: db.origin, Body: body})
		return result.Join(err, serr)
	}
	req, err := parse.Parse(m.Body)
	if err != nil {
		return fail(result.Errorf(result.InvalidMsg, "sync request: %w", err))
	}
	sp, err := ypath.Parse(req.Value(req.Top()))
	if err != nil {
		return fail(err)
	}
	herr := db.beforeRead(sp.String())
	ids, err := db.tree.Select(db.tree.Top(), sp)
	resp := &ipc.Message{Type: ipc.TypeResponse, Op: ipc.OpSync, Origin: db.origin}
	switch {
	case errors.Is(err, result.NoEntry):
	case err != nil:
		return fail(err)
	default:
		g := graft(db.tree, ids)
		body, err := wire(g, g.Top())
		if err != nil {
			return fail(err)
		}
		resp.Body = body
	}
	return result.Join(herr, c.Send(resp))
}

// apply applies a delta received on c.
func (p *peer) apply(c *ipc.Conn, origin string, op ipc.Op, body []byte) error {
	db := p.db()
	frag, err := parse.Parse(body)
	if err != nil {
		return err
	}
	if op == ipc.OpMerge {
		return db.write(nil, frag, origin, c)
	}
	if c.Flags().Has(ipc.Protect) {
		return result.Errorf(result.DeniedDelete, "%s is delete protected", c.ID())
	}
	err = db.remove(deletePaths(frag), origin, c)
	if errors.Is(err, result.NoEntry) {
		// already gone here
		return nil
	}
	return err
}
