package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signadot/ydb/result"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in      string
		want    Address
		network string
		target  string
	}{
		{"us:///tmp/ydb.sock", Address{SchemeUnix, "/tmp/ydb.sock"}, "unix", "/tmp/ydb.sock"},
		{"uss://ydb", Address{SchemeAbstract, "ydb"}, "unix", "@ydb"},
		{"tcp://localhost:4000", Address{SchemeTCP, "localhost:4000"}, "tcp", "localhost:4000"},
		{"ws://localhost:4001", Address{SchemeWS, "localhost:4001"}, "tcp", "localhost:4001"},
		{"ws://localhost:4001/db", Address{SchemeWS, "localhost:4001/db"}, "tcp", "localhost:4001"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			a, err := ParseAddress(c.in)
			require.NoError(t, err)
			require.Equal(t, c.want, a)
			require.Equal(t, c.in, a.String())
			network, target := a.network()
			require.Equal(t, c.network, network)
			require.Equal(t, c.target, target)
		})
	}
	_, path := Address{SchemeWS, "h:1"}.wsHostPath()
	require.Equal(t, DefaultWSPath, path)
}

func TestParseAddressErrors(t *testing.T) {
	for _, in := range []string{"", "/tmp/x", "us://", "http://x:1", "tcp://nohost", "ws://x"} {
		_, err := ParseAddress(in)
		require.ErrorIs(t, err, result.InvalidArgs, in)
	}
}

func TestFlags(t *testing.T) {
	f, err := ParseFlags("pub,writable leaf:debug")
	require.NoError(t, err)
	require.True(t, f.Has(Publisher|Writable|LeafOnly|Debug))
	require.False(t, f.Has(Protect))
	require.Equal(t, "pub,writable,leaf,debug", f.String())

	f, err = ParseFlags("p sub w u sync no-delete")
	require.NoError(t, err)
	require.False(t, f.Has(Publisher))
	require.Equal(t, "sub,writable,unsubscribe,sync-before-read,protect", f.String())

	back, err := ParseFlags(f.String())
	require.NoError(t, err)
	require.Equal(t, f, back)

	f, err = ParseFlags("")
	require.NoError(t, err)
	require.Equal(t, Flags(0), f)

	_, err = ParseFlags("pub,turbo")
	require.ErrorIs(t, err, result.InvalidArgs)
}
