package ipc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signadot/ydb/result"
)

// recorder answers init requests and records everything it receives.
type recorder struct {
	got      []*Message
	attached int
}

func (r *recorder) Attached(c *Conn) error {
	r.attached++
	return c.Send(&Message{Type: TypeRequest, Op: OpInit, Origin: "sub", Flags: c.Flags()})
}

func (r *recorder) HandleMessage(c *Conn, m *Message) error {
	r.got = append(r.got, m)
	switch {
	case m.Type == TypeRequest && m.Op == OpInit:
		c.SetPeer(m.Flags, m.Origin)
		c.MarkConnected()
		return c.Send(&Message{Type: TypeResponse, Op: OpInit, Origin: "pub", Body: []byte("{a: 1}")})
	case m.Type == TypeResponse && m.Op == OpInit:
		c.SetPeer(m.Flags, m.Origin)
		c.MarkConnected()
	case m.Op == OpDelete:
		return result.New(result.DeniedDelete, "protected")
	}
	return nil
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, h Handler) *Hub {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RetryInterval = 10 * time.Millisecond
	cfg.MaxRetries = 500
	hub, err := NewHub(cfg, h, quietLog())
	require.NoError(t, err)
	t.Cleanup(func() { hub.Close() })
	return hub
}

// pump serves both hubs until cond holds.
func pump(t *testing.T, cond func() bool, hubs ...*Hub) {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.True(t, time.Now().Before(deadline), "timed out")
		for _, h := range hubs {
			_, err := h.Serve(ctx, 10*time.Millisecond)
			if err != nil && !result.IsWarning(err) {
				require.NoError(t, err)
			}
		}
	}
}

func TestHubHandshake(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pr, sr := &recorder{}, &recorder{}
	pub, sub := newTestHub(t, pr), newTestHub(t, sr)

	_, err := pub.Connect(ctx, addr, Publisher)
	require.NoError(t, err)
	require.True(t, pub.IsConnected(addr))

	c, err := sub.Connect(ctx, addr, Writable)
	require.NoError(t, err)
	require.Equal(t, Connecting, c.State())
	require.Equal(t, 1, sr.attached)

	pump(t, func() bool { return sub.IsConnected(addr) }, pub, sub)
	require.Equal(t, "pub", c.PeerOrigin())
	require.Len(t, sr.got, 1)
	require.Equal(t, []byte("{a: 1}"), sr.got[0].Body)

	accepted := pub.Conns()
	require.Len(t, accepted, 2)
	a := accepted[1]
	require.True(t, a.IsAccepted())
	require.Equal(t, "sub", a.PeerOrigin())
	require.True(t, a.PeerFlags().Has(Writable))

	// errors from the handler are reported per connection
	require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpDelete, Body: []byte("{a: }")}))
	var serr error
	pump(t, func() bool {
		_, serr = pub.Serve(ctx, 10*time.Millisecond)
		return serr != nil
	})
	require.ErrorIs(t, serr, result.DeniedDelete)

	_, err = sub.Connect(ctx, addr, Writable)
	require.ErrorIs(t, err, result.EntryExists)
}

func TestHubServe(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, &recorder{})
	_, err := h.Serve(ctx, 0)
	require.ErrorIs(t, err, result.NoConn)
	require.ErrorIs(t, h.Disconnect("us:///nowhere"), result.NoConn)

	_, err = h.Connect(ctx, "us://"+filepath.Join(t.TempDir(), "none.sock"), 0)
	require.ErrorIs(t, err, result.ConnFailed)
	_, err = h.Connect(ctx, "bogus", 0)
	require.ErrorIs(t, err, result.InvalidArgs)
}

func TestHubMaxBatch(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pr := &recorder{}
	pub := newTestHub(t, pr)
	pub.cfg.MaxBatch = 2
	sub := newTestHub(t, &recorder{})
	_, err := pub.Connect(ctx, addr, Publisher)
	require.NoError(t, err)
	c, err := sub.Connect(ctx, addr, 0)
	require.NoError(t, err)
	pump(t, func() bool { return sub.IsConnected(addr) }, pub, sub)

	for range 5 {
		require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{x: 1}")}))
	}
	// wait for all five to be queued
	require.Eventually(t, func() bool { return len(pub.inbox) == 5 }, 5*time.Second, 5*time.Millisecond)
	n, err := pub.Serve(ctx, 0)
	require.Equal(t, 2, n)
	require.ErrorIs(t, err, result.MoreRecv)
	require.True(t, result.IsWarning(err))
	n, err = pub.Serve(ctx, 0)
	require.Equal(t, 2, n)
	require.ErrorIs(t, err, result.MoreRecv)
	n, err = pub.Serve(ctx, 0)
	require.Equal(t, 1, n)
	require.NoError(t, err)
}

func TestHubRedial(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pub := newTestHub(t, &recorder{})
	sr := &recorder{}
	sub := newTestHub(t, sr)
	_, err := pub.Connect(ctx, addr, Publisher)
	require.NoError(t, err)
	_, err = sub.Connect(ctx, addr, 0)
	require.NoError(t, err)
	pump(t, func() bool { return sub.IsConnected(addr) }, pub, sub)

	// restart the publisher
	require.NoError(t, pub.Disconnect(addr))
	require.False(t, pub.IsConnected(addr))
	pump(t, func() bool { return !sub.IsConnected(addr) }, sub)
	_, err = pub.Connect(ctx, addr, Publisher)
	require.NoError(t, err)
	pump(t, func() bool { return sub.IsConnected(addr) }, pub, sub)
	require.Equal(t, 2, sr.attached)
}

func TestHubSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log.yaml")
	h := newTestHub(t, &recorder{})
	c, err := h.Connect(ctx, "file://"+path, 0)
	require.NoError(t, err)
	require.True(t, c.IsSink())
	require.True(t, h.IsConnected("file://"+path))
	require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{a: 1}")}))
	require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpDelete, Body: []byte("{a: }")}))
	require.NoError(t, h.Disconnect("file://"+path))

	d, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(d), "#seq: 2\n#type: publish\n#op: delete\n")
}

func TestHubFd(t *testing.T) {
	h := newTestHub(t, &recorder{})
	require.GreaterOrEqual(t, h.Fd(), 0)
}

// connected returns a publisher hub and a subscriber hub whose handshake
// completed, with the subscriber's end of the connection.
func connected(t *testing.T, addr string, pr, sr *recorder) (*Hub, *Hub, *Conn) {
	t.Helper()
	ctx := context.Background()
	pub, sub := newTestHub(t, pr), newTestHub(t, sr)
	_, err := pub.Connect(ctx, addr, Publisher)
	require.NoError(t, err)
	c, err := sub.Connect(ctx, addr, 0)
	require.NoError(t, err)
	pump(t, func() bool { return sub.IsConnected(addr) }, pub, sub)
	return pub, sub, c
}

func TestHubBacklog(t *testing.T) {
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pr := &recorder{}
	pub, _, c := connected(t, addr, pr, &recorder{})
	pr.got = nil

	// more than the reader's initial buffer stays queued before Serve
	const n = 200
	body := func(i int) []byte {
		return []byte(fmt.Sprintf("{k%d: %s}", i, strings.Repeat(fmt.Sprint(i%10), 600)))
	}
	for i := range n {
		require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpMerge, Body: body(i)}))
	}
	require.Eventually(t, func() bool { return len(pub.inbox) == n }, 5*time.Second, 5*time.Millisecond)
	got, err := pub.Serve(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, n, got)
	require.Len(t, pr.got, n)
	for i, m := range pr.got {
		require.Equal(t, string(body(i)), string(m.Body), "message %d", i)
	}
}

func TestHubIsolation(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pr := &recorder{}
	pub, bad, cbad := connected(t, addr, pr, &recorder{})
	good := newTestHub(t, &recorder{})
	cgood, err := good.Connect(ctx, addr, 0)
	require.NoError(t, err)
	pump(t, func() bool { return good.IsConnected(addr) }, pub, good)
	pr.got = nil

	_, err = cbad.rw.Write([]byte("---\n#type: gossip\n#_-_-_-_\n{x: 1}\n...\n"))
	require.NoError(t, err)
	require.NoError(t, cgood.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{y: 2}")}))
	require.Eventually(t, func() bool { return len(pub.inbox) == 2 }, 5*time.Second, 5*time.Millisecond)

	n, err := pub.Serve(ctx, 0)
	require.ErrorIs(t, err, result.InvalidMsg)
	require.Equal(t, 1, n)
	require.Len(t, pr.got, 1)
	require.Equal(t, []byte("{y: 2}"), pr.got[0].Body)

	// the connection which sent garbage keeps going
	require.True(t, bad.IsConnected(addr))
	require.NoError(t, cbad.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{z: 3}")}))
	pump(t, func() bool { return len(pr.got) == 2 }, pub)
	require.Equal(t, []byte("{z: 3}"), pr.got[1].Body)
}

func TestHubGivesUp(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pub, sub, c := connected(t, addr, &recorder{}, &recorder{})
	sub.cfg.MaxRetries = 1
	sub.cfg.RetryInterval = 50 * time.Millisecond

	require.NoError(t, pub.Disconnect(addr))
	require.Eventually(t, func() bool {
		_, _ = sub.Serve(ctx, 0)
		return c.State() == Connecting
	}, 5*time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	// the only redial fails, so a blocking Serve must return
	done := make(chan error, 1)
	go func() {
		_, err := sub.Serve(ctx, -1)
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, result.NoConn)
		require.ErrorIs(t, err, result.ConnFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve blocked without connections")
	}
	require.Equal(t, Closed, c.State())
}
