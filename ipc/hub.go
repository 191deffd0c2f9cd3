package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/signadot/ydb/result"
)

// Config tunes a [Hub].
type Config struct {
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
	RetryInterval time.Duration
	// MaxBatch bounds the messages handled by one call to Serve.
	MaxBatch int
	// MaxMessage bounds the size of a frame; larger frames fail the
	// connection.
	MaxMessage int
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    5,
		RetryInterval: time.Second,
		MaxBatch:      256,
		MaxMessage:    16 << 20,
	}
}

// Handler receives the traffic of a [Hub]. It is only called from Serve,
// Connect and the Send calls made by the handler itself.
type Handler interface {
	// Attached is called when a dialed connection gets a stream, first or
	// after a redial, so the handler can start its handshake.
	Attached(c *Conn) error
	// HandleMessage is called for each message received.
	HandleMessage(c *Conn, m *Message) error
}

type event struct {
	c      *Conn
	epoch  int
	msg    *Message
	err    error
	closed bool
	accept io.ReadWriteCloser
	remote string
}

// Hub multiplexes the connections of one process.
type Hub struct {
	cfg    Config
	h      Handler
	log    *slog.Logger
	conns  []*Conn
	nacc   int
	inbox  chan event
	done   chan struct{}
	notify *notifier
	wg     sync.WaitGroup
}

func NewHub(cfg Config, h Handler, log *slog.Logger) (*Hub, error) {
	if h == nil {
		return nil, result.New(result.InvalidArgs, "nil handler")
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultConfig().MaxBatch
	}
	if cfg.MaxMessage <= 0 {
		cfg.MaxMessage = DefaultConfig().MaxMessage
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultConfig().DialTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	n, err := newNotifier()
	if err != nil {
		return nil, result.Wrap(result.SystemFailed, err)
	}
	return &Hub{
		cfg:    cfg,
		h:      h,
		log:    log,
		inbox:  make(chan event, cfg.MaxBatch),
		done:   make(chan struct{}),
		notify: n,
	}, nil
}

// Fd returns a descriptor which becomes readable when messages are queued
// for Serve.
func (h *Hub) Fd() int {
	return h.notify.Fd()
}

// Conns returns a snapshot of the live connections, listeners included.
func (h *Hub) Conns() []*Conn {
	return slices.Clone(h.conns)
}

// Conn returns the listener, dialed connection or sink opened for addr.
func (h *Hub) Conn(addr string) *Conn {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil
	}
	for _, c := range h.conns {
		if c.kind != kindAccepted && c.addr == a {
			return c
		}
	}
	return nil
}

// Connect opens addr with flags: a listener for publishers, a dialed
// connection for subscribers and a sink for file addresses.
func (h *Hub) Connect(ctx context.Context, addr string, flags Flags) (*Conn, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	if c := h.Conn(addr); c != nil {
		return c, result.Errorf(result.EntryExists, "%s", addr)
	}
	c := &Conn{hub: h, id: a.String(), addr: a, flags: flags}
	c.log = h.log.With("conn", c.id)
	switch {
	case a.Scheme == SchemeFile:
		rw, err := openSink(a)
		if err != nil {
			return nil, result.Errorf(result.ConnFailed, "%s: %w", addr, err)
		}
		c.kind = kindSink
		c.attach(rw)
		c.state = Connected
		h.conns = append(h.conns, c)
	case flags.Has(Publisher):
		c.kind = kindListener
		epoch := c.epoch + 1
		ln, err := listen(a,
			func(rw io.ReadWriteCloser, remote string) bool {
				return h.post(event{c: c, epoch: epoch, accept: rw, remote: remote})
			},
			func(err error) {
				h.post(event{c: c, epoch: epoch, closed: true, err: err})
			})
		if err != nil {
			return nil, result.Errorf(result.ConnFailed, "%s: %w", addr, err)
		}
		c.epoch = epoch
		c.ln = ln
		c.state = Connected
		h.conns = append(h.conns, c)
	default:
		c.kind = kindDialed
		rw, err := dial(ctx, a, h.cfg.DialTimeout)
		if err != nil {
			return nil, result.Errorf(result.ConnFailed, "%s: %w", addr, err)
		}
		h.conns = append(h.conns, c)
		if err := h.start(c, rw); err != nil {
			return c, err
		}
	}
	c.log.Info("connect", "flags", flags.String())
	return c, nil
}

// start attaches rw to c, starts its reader and tells the handler.
func (h *Hub) start(c *Conn, rw io.ReadWriteCloser) error {
	c.state = Connecting
	epoch := c.attach(rw)
	h.wg.Add(1)
	go h.read(c, epoch, rw)
	if c.kind == kindDialed {
		return h.h.Attached(c)
	}
	return nil
}

// Disconnect closes everything opened for addr, including the peers
// accepted by a listener.
func (h *Hub) Disconnect(addr string) error {
	c := h.Conn(addr)
	if c == nil {
		return result.Errorf(result.NoConn, "%s", addr)
	}
	h.close(c)
	c.log.Info("disconnect")
	return nil
}

// IsConnected reports whether addr is open and, for dialed connections,
// whether the handshake completed.
func (h *Hub) IsConnected(addr string) bool {
	c := h.Conn(addr)
	return c != nil && c.state == Connected
}

func (h *Hub) close(c *Conn) {
	c.closeIO()
	c.state = Closed
	h.conns = slices.DeleteFunc(h.conns, func(o *Conn) bool { return o == c })
	if c.kind != kindListener {
		return
	}
	for _, a := range h.Conns() {
		if a.parent == c {
			h.close(a)
		}
	}
}

// fail handles a broken stream: dialed connections are redialed later,
// everything else is closed.
func (h *Hub) fail(c *Conn, err error) {
	if c.state == Closed {
		return
	}
	if c.kind != kindDialed {
		c.log.Warn("connection lost", "error", err)
		h.close(c)
		return
	}
	c.closeIO()
	if c.retries >= h.cfg.MaxRetries {
		c.log.Warn("connection lost, giving up", "error", err)
		c.state = Closed
		h.conns = slices.DeleteFunc(h.conns, func(o *Conn) bool { return o == c })
		return
	}
	c.log.Warn("connection lost, will redial", "error", err, "in", h.cfg.RetryInterval)
	c.state = Connecting
	c.retryAt = time.Now().Add(h.cfg.RetryInterval)
}

func (h *Hub) redial(ctx context.Context, errs *[]error) {
	now := time.Now()
	for _, c := range h.Conns() {
		if c.kind != kindDialed || c.rw != nil || c.state != Connecting || now.Before(c.retryAt) {
			continue
		}
		c.retries++
		rw, err := dial(ctx, c.addr, h.cfg.DialTimeout)
		if err != nil {
			if c.retries >= h.cfg.MaxRetries {
				c.log.Warn("redial failed, giving up", "error", err, "tries", c.retries)
				c.state = Closed
				h.conns = slices.DeleteFunc(h.conns, func(o *Conn) bool { return o == c })
				*errs = append(*errs, result.Errorf(result.ConnFailed, "%s: %w", c.id, err))
				continue
			}
			c.log.Debug("redial failed", "error", err, "tries", c.retries)
			c.retryAt = now.Add(h.cfg.RetryInterval)
			continue
		}
		c.log.Info("redialed", "tries", c.retries)
		if err := h.start(c, rw); err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", c.id, err))
		}
	}
}

func (h *Hub) nextRetry() (time.Time, bool) {
	var next time.Time
	for _, c := range h.conns {
		if c.kind == kindDialed && c.rw == nil && c.state == Connecting {
			if next.IsZero() || c.retryAt.Before(next) {
				next = c.retryAt
			}
		}
	}
	return next, !next.IsZero()
}

// Serve handles queued messages. A zero timeout only handles what is
// already queued, a negative one waits for the first message without
// limit. At most MaxBatch messages are handled, with a MoreRecv warning if
// more are pending. The returned error joins the failures of individual
// connections.
func (h *Hub) Serve(ctx context.Context, timeout time.Duration) (int, error) {
	if len(h.conns) == 0 {
		return 0, result.New(result.NoConn, "no connections")
	}
	var errs []error
	h.redial(ctx, &errs)
	if len(h.conns) == 0 {
		errs = append(errs, result.New(result.NoConn, "no connections left"))
		return 0, result.Join(errs...)
	}
	ev, ok := h.wait(ctx, timeout, &errs)
	n := 0
	for ok {
		n += h.dispatch(ev, &errs)
		if n >= h.cfg.MaxBatch {
			if len(h.inbox) > 0 {
				errs = append(errs, result.Errorf(result.MoreRecv, "%d messages pending", len(h.inbox)))
			}
			break
		}
		select {
		case ev = <-h.inbox:
		default:
			ok = false
		}
	}
	// a reader may post between the drain and the check
	h.notify.drain()
	if len(h.inbox) > 0 {
		h.notify.signal()
	}
	return n, result.Join(errs...)
}

func (h *Hub) wait(ctx context.Context, timeout time.Duration, errs *[]error) (event, bool) {
	select {
	case ev := <-h.inbox:
		return ev, true
	default:
	}
	if timeout == 0 {
		return event{}, false
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		var retry *time.Timer
		var retryC <-chan time.Time
		if at, ok := h.nextRetry(); ok {
			retry = time.NewTimer(time.Until(at))
			retryC = retry.C
		}
		select {
		case ev := <-h.inbox:
			return ev, true
		case <-retryC:
			h.redial(ctx, errs)
			if len(h.conns) == 0 {
				return event{}, false
			}
			continue
		case <-deadline:
		case <-ctx.Done():
			*errs = append(*errs, result.Wrap(result.Timeout, ctx.Err()))
		case <-h.done:
		}
		if retry != nil {
			retry.Stop()
		}
		return event{}, false
	}
}

// dispatch handles one event and returns the number of messages handled.
func (h *Hub) dispatch(ev event, errs *[]error) int {
	c := ev.c
	if c.epoch != ev.epoch || c.state == Closed {
		if ev.accept != nil {
			ev.accept.Close()
		}
		return 0
	}
	switch {
	case ev.accept != nil:
		h.nacc++
		a := &Conn{
			hub:    h,
			id:     fmt.Sprintf("%s#%d", c.id, h.nacc),
			addr:   c.addr,
			flags:  c.flags,
			kind:   kindAccepted,
			parent: c,
		}
		a.log = h.log.With("conn", a.id, "remote", ev.remote)
		h.conns = append(h.conns, a)
		_ = h.start(a, ev.accept)
		a.log.Debug("accepted")
		return 0
	case ev.closed:
		if errors.Is(ev.err, io.EOF) {
			c.log.Info("peer closed")
		}
		h.fail(c, ev.err)
		return 0
	case ev.err != nil:
		c.log.Warn("dropping message", "error", ev.err)
		*errs = append(*errs, fmt.Errorf("%s: %w", c.id, ev.err))
		return 0
	}
	if err := h.h.HandleMessage(c, ev.msg); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", c.id, err))
	}
	return 1
}

func (h *Hub) post(ev event) bool {
	select {
	case h.inbox <- ev:
		h.notify.signal()
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) read(c *Conn, epoch int, r io.Reader) {
	defer h.wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), h.cfg.MaxMessage)
	sc.Split(ScanMessages)
	for sc.Scan() {
		frame := sc.Bytes()
		if len(frame) == 0 {
			continue
		}
		c.trace("recv", frame)
		m, err := ParseMessage(frame)
		if !h.post(event{c: c, epoch: epoch, msg: m, err: err}) {
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	h.post(event{c: c, epoch: epoch, closed: true, err: err})
}

// Close closes every connection and waits for the readers to stop.
func (h *Hub) Close() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	close(h.done)
	for _, c := range h.Conns() {
		c.closeIO()
		c.state = Closed
	}
	h.conns = nil
	h.wg.Wait()
	return h.notify.close()
}
