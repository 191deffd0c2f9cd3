//go:build linux

package ipc

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// notifier is an eventfd counting queued events.
type notifier struct {
	fd int
}

func newNotifier() (*notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &notifier{fd: fd}, nil
}

func (n *notifier) Fd() int { return n.fd }

func (n *notifier) signal() {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	_, _ = unix.Write(n.fd, b[:])
}

func (n *notifier) drain() {
	var b [8]byte
	_, _ = unix.Read(n.fd, b[:])
}

func (n *notifier) close() error {
	return unix.Close(n.fd)
}
