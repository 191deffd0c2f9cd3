package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// dial opens a stream to a publisher at a.
func dial(ctx context.Context, a Address, timeout time.Duration) (io.ReadWriteCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if a.Scheme == SchemeWS {
		host, path := a.wsHostPath()
		d := websocket.Dialer{HandshakeTimeout: timeout}
		ws, _, err := d.DialContext(ctx, "ws://"+host+path, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{ws: ws}, nil
	}
	var d net.Dialer
	network, target := a.network()
	return d.DialContext(ctx, network, target)
}

// listen starts accepting streams at a. Each accepted stream is passed to
// accept; a listener failure is passed to done. The returned closer stops
// the listener.
func listen(a Address, accept func(io.ReadWriteCloser, string) bool, done func(error)) (io.Closer, error) {
	network, target := a.network()
	if a.Scheme == SchemeUnix {
		removeStaleSocket(target)
	}
	ln, err := net.Listen(network, target)
	if err != nil {
		return nil, err
	}
	if a.Scheme == SchemeWS {
		return serveWS(a, ln, accept, done), nil
	}
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				done(err)
				return
			}
			if !accept(nc, nc.RemoteAddr().String()) {
				nc.Close()
				return
			}
		}
	}()
	return ln, nil
}

func removeStaleSocket(path string) {
	fi, err := os.Stat(path)
	if err != nil || fi.Mode()&os.ModeSocket == 0 {
		return
	}
	if c, err := net.Dial("unix", path); err == nil {
		c.Close()
		return
	}
	_ = os.Remove(path)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func serveWS(a Address, ln net.Listener, accept func(io.ReadWriteCloser, string) bool, done func(error)) io.Closer {
	_, path := a.wsHostPath()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !accept(&wsConn{ws: ws}, r.RemoteAddr) {
			ws.Close()
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = net.ErrClosed
		}
		done(err)
	}()
	return srv
}

// openSink opens a file for appending frames.
func openSink(a Address) (io.ReadWriteCloser, error) {
	return os.OpenFile(a.Target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// wsConn adapts a websocket to a byte stream. Each frame is one text
// message; reads concatenate messages.
type wsConn struct {
	ws *websocket.Conn
	r  io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
