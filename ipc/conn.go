package ipc

import (
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/signadot/ydb/debug"
	"github.com/signadot/ydb/result"
)

type State uint8

const (
	Connecting State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

type connKind uint8

const (
	kindDialed connKind = iota
	kindListener
	kindAccepted
	kindSink
)

type deadliner interface {
	SetWriteDeadline(time.Time) error
}

// Conn is one end of a connection, or a listener. A Conn is only used from
// the goroutine calling [Hub.Serve].
type Conn struct {
	hub    *Hub
	id     string
	addr   Address
	flags  Flags
	kind   connKind
	parent *Conn
	log    *slog.Logger

	state      State
	peerFlags  Flags
	peerOrigin string

	rw      io.ReadWriteCloser
	ln      io.Closer
	epoch   int
	seq     uint32
	retries int
	retryAt time.Time
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) Address() Address   { return c.addr }
func (c *Conn) Flags() Flags       { return c.flags }
func (c *Conn) State() State       { return c.state }
func (c *Conn) PeerFlags() Flags   { return c.peerFlags }
func (c *Conn) PeerOrigin() string { return c.peerOrigin }
func (c *Conn) Log() *slog.Logger  { return c.log }

// IsListener reports whether c accepts subscribers rather than exchanging
// messages.
func (c *Conn) IsListener() bool { return c.kind == kindListener }

// IsAccepted reports whether c was accepted by a local listener, that is
// whether the peer is a subscriber of ours.
func (c *Conn) IsAccepted() bool { return c.kind == kindAccepted }

// IsDialed reports whether c dials a remote publisher.
func (c *Conn) IsDialed() bool { return c.kind == kindDialed }

// IsSink reports whether c is a write only file.
func (c *Conn) IsSink() bool { return c.kind == kindSink }

// Listener returns the listener which accepted c.
func (c *Conn) Listener() *Conn { return c.parent }

// SetPeer records what the peer announced during the handshake.
func (c *Conn) SetPeer(flags Flags, origin string) {
	c.peerFlags = flags
	c.peerOrigin = origin
}

// MarkConnected completes the handshake.
func (c *Conn) MarkConnected() {
	if c.state == Closed {
		return
	}
	if c.state != Connected {
		c.log.Info("connected", "peer", c.peerOrigin, "peerFlags", c.peerFlags.String())
	}
	c.state = Connected
	c.retries = 0
}

// Send writes m to the connection, numbering it. A write failure fails the
// connection and returns a Disconnected warning.
func (c *Conn) Send(m *Message) error {
	if c.rw == nil || c.state == Closed || c.kind == kindListener {
		return result.Errorf(result.ConnClosed, "%s", c.id)
	}
	c.seq++
	m.Seq = c.seq
	frame := m.AppendFrame(nil)
	c.trace("send", frame)
	if d, ok := c.rw.(deadliner); ok && c.hub.cfg.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
	}
	if _, err := c.rw.Write(frame); err != nil {
		c.hub.fail(c, err)
		return result.Errorf(result.Disconnected, "%s: %w", c.id, err)
	}
	return nil
}

func (c *Conn) trace(dir string, frame []byte) {
	switch {
	case c.flags.Has(Debug):
		c.log.Info(dir, "frame", string(frame))
	case debug.Frames():
		c.log.Debug(dir, "frame", string(frame))
	}
}

// attach installs a fresh stream, invalidating events from the previous one.
func (c *Conn) attach(rw io.ReadWriteCloser) int {
	c.epoch++
	c.rw = rw
	c.seq = 0
	return c.epoch
}

func (c *Conn) closeIO() {
	c.epoch++
	if c.rw != nil {
		if err := c.rw.Close(); err != nil {
			c.log.Debug("close", "error", err)
		}
		c.rw = nil
	}
	if c.ln != nil {
		if err := c.ln.Close(); err != nil {
			c.log.Debug("close listener", "error", err)
		}
		c.ln = nil
	}
}
