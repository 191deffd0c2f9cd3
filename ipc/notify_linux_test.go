//go:build linux

package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/signadot/ydb/result"
)

func readable(t *testing.T, fd int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	require.NoError(t, err)
	return n > 0 && fds[0].Revents&unix.POLLIN != 0
}

func TestHubFdReadable(t *testing.T) {
	ctx := context.Background()
	addr := "us://" + filepath.Join(t.TempDir(), "ydb.sock")
	pub, _, c := connected(t, addr, &recorder{}, &recorder{})
	_, err := pub.Serve(ctx, 0)
	require.NoError(t, err)
	require.False(t, readable(t, pub.Fd()))

	require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{x: 1}")}))
	require.Eventually(t, func() bool { return readable(t, pub.Fd()) }, 5*time.Second, time.Millisecond)
	n, err := pub.Serve(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, readable(t, pub.Fd()))

	// messages left by a full batch keep the descriptor readable
	pub.cfg.MaxBatch = 1
	for range 2 {
		require.NoError(t, c.Send(&Message{Type: TypePublish, Op: OpMerge, Body: []byte("{y: 1}")}))
	}
	require.Eventually(t, func() bool { return len(pub.inbox) == 2 }, 5*time.Second, time.Millisecond)
	_, err = pub.Serve(ctx, 0)
	require.ErrorIs(t, err, result.MoreRecv)
	require.True(t, readable(t, pub.Fd()))
	_, err = pub.Serve(ctx, 0)
	require.NoError(t, err)
	require.False(t, readable(t, pub.Fd()))
}
