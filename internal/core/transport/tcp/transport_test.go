package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransport(t *testing.T) {
	tr := NewTransport(DefaultConfig())
	defer tr.Close()

	assert.False(t, tr.IsClosed())
	assert.Equal(t, []int{ma.P_TCP}, tr.Protocols())
}

func TestTransport_CanDial(t *testing.T) {
	tr := NewTransport(DefaultConfig())
	defer tr.Close()

	tests := []struct {
		addr     string
		expected bool
	}{
		{"/ip4/127.0.0.1/tcp/4001", true},
		{"/ip6/::1/tcp/4001", true},
		{"/ip4/127.0.0.1/udp/4001", false},
		{"/ip4/127.0.0.1/tcp/4001/p2p/QmcgpsyWgH8Y8ajJz1Cu72KnS5uo2Aa2LpzU7kinSupNKC", false},
		{"/ip4/127.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			addr, err := ma.NewMultiaddr(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tr.CanDial(addr))
		})
	}
}

func TestTransport_ListenAndDial(t *testing.T) {
	tr := NewTransport(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	port, err := l.Multiaddr().ValueForProtocol(ma.P_TCP)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := tr.Dial(ctx, l.Multiaddr())
	require.NoError(t, err)
	defer client.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("accept timeout")
	}
	defer server.Close()

	assert.Equal(t, l.Multiaddr().String(), client.RemoteMultiaddr().String())

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestTransport_DialUnsupported(t *testing.T) {
	tr := NewTransport(DefaultConfig())
	defer tr.Close()

	_, err := tr.Dial(context.Background(), ma.StringCast("/ip4/127.0.0.1/udp/1"))
	assert.ErrorIs(t, err, ErrUnsupportedAddr)
}

func TestTransport_Close(t *testing.T) {
	tr := NewTransport(DefaultConfig())

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.ListenerCount())

	require.NoError(t, tr.Close())
	assert.True(t, tr.IsClosed())
	assert.True(t, l.IsClosed())
	assert.Equal(t, 0, tr.ListenerCount())

	_, err = tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	assert.ErrorIs(t, err, ErrTransportClosed)

	// 重复关闭无副作用
	assert.NoError(t, tr.Close())
}

func TestListener_CloseUnblocksAccept(t *testing.T) {
	tr := NewTransport(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Accept did not return after Close")
	}
}
