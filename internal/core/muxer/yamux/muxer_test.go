package yamux

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pchat/config"
)

// createConnPair 创建一对已连接的 TCP 连接
func createConnPair(t *testing.T) (net.Conn, net.Conn) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var serverConn net.Conn
	var serverErr error
	done := make(chan struct{})
	go func() {
		serverConn, serverErr = listener.Accept()
		close(done)
	}()

	clientConn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)

	<-done
	require.NoError(t, serverErr)
	return serverConn, clientConn
}

// createMuxerPair 创建一对 Muxer（服务端、客户端）
func createMuxerPair(t *testing.T) (*Muxer, *Muxer) {
	serverConn, clientConn := createConnPair(t)

	server, err := NewMuxer(serverConn, true, nil)
	require.NoError(t, err)
	client, err := NewMuxer(clientConn, false, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

func TestMuxer_OpenAccept(t *testing.T) {
	server, client := createMuxerPair(t)
	assert.True(t, server.IsServer())
	assert.False(t, client.IsServer())

	accepted := make(chan *Stream, 1)
	go func() {
		s, err := server.AcceptStream()
		if err == nil {
			accepted <- s
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cs, err := client.OpenStream(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, client.NumStreams())

	_, err = cs.Write([]byte("hello"))
	require.NoError(t, err)

	var ss *Stream
	select {
	case ss = <-accepted:
	case <-ctx.Done():
		t.Fatal("accept timeout")
	}

	buf := make([]byte, 5)
	_, err = io.ReadFull(ss, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	assert.Equal(t, cs.ID(), ss.ID())

	require.NoError(t, cs.Close())
	require.NoError(t, cs.Close())
	assert.Equal(t, 0, client.NumStreams())
}

func TestMuxer_Close(t *testing.T) {
	server, client := createMuxerPair(t)

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	_, err := client.OpenStream(context.Background())
	assert.ErrorIs(t, err, ErrMuxerClosed)

	select {
	case <-server.CloseChan():
	case <-time.After(5 * time.Second):
		t.Fatal("server session did not observe close")
	}
	assert.True(t, server.IsClosed())
}

func TestMuxer_OpenStreamCancelled(t *testing.T) {
	_, client := createMuxerPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.OpenStream(ctx)
	// 取消的 context 可能与成功打开竞争，两种结果都合法
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestConfigFromGlobal(t *testing.T) {
	assert.Equal(t, DefaultYamuxConfig(), ConfigFromGlobal(nil))

	cfg := config.NewConfig()
	cfg.Transport.Yamux.MaxStreamWindowSize = 1 << 20
	cfg.Transport.Yamux.AcceptBacklog = 64
	yc := ConfigFromGlobal(cfg)
	assert.Equal(t, uint32(1<<20), yc.MaxStreamWindowSize)
	assert.Equal(t, 64, yc.AcceptBacklog)
	assert.Equal(t, 30*time.Second, yc.KeepAliveInterval)
}
