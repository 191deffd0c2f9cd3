//go:build !linux

package ipc

import (
	"os"
	"sync/atomic"
)

// notifier is a pipe holding at most one byte while events are queued.
type notifier struct {
	r, w    *os.File
	pending atomic.Bool
}

func newNotifier() (*notifier, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &notifier{r: r, w: w}, nil
}

func (n *notifier) Fd() int { return int(n.r.Fd()) }

func (n *notifier) signal() {
	if n.pending.CompareAndSwap(false, true) {
		_, _ = n.w.Write([]byte{1})
	}
}

func (n *notifier) drain() {
	if n.pending.CompareAndSwap(true, false) {
		var b [1]byte
		_, _ = n.r.Read(b[:])
	}
}

func (n *notifier) close() error {
	n.w.Close()
	return n.r.Close()
}
