package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// ============================================================================
//                              测试辅助
// ============================================================================

const echoProtocol = "/test/echo/1.0.0"

func newTestSwarm(t *testing.T) *Swarm {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	up, err := upgrader.New(id, pnet.Key{}, upgrader.DefaultConfig())
	require.NoError(t, err)

	tr := tcp.NewTransport(tcp.DefaultConfig())
	t.Cleanup(func() { tr.Close() })

	s, err := New(id.ID(), up, tr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func listenLocal(t *testing.T, s *Swarm) ma.Multiaddr {
	t.Helper()
	require.NoError(t, s.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0")))
	addrs := s.Listeners()
	require.Len(t, addrs, 1)
	return addrs[0]
}

// waitEvent 读取事件直到出现类型 T
func waitEvent[T Event](t *testing.T, s *Swarm) T {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "event stream closed")
			if want, ok := ev.(T); ok {
				return want
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// waitClosed 读取事件直到事件流关闭
func waitClosed(t *testing.T, s *Swarm) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func connect(t *testing.T, a, b *Swarm) *Conn {
	t.Helper()
	addr := listenLocal(t, b)
	c, err := a.Dial(context.Background(), addr)
	require.NoError(t, err)
	return c
}

func echoHandler(s *Stream) {
	defer s.Close()
	_, _ = io.Copy(s, s)
}

type testEvent struct{ text string }

func (e testEvent) String() string { return e.text }

// ============================================================================
//                              测试用例
// ============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New("", nil, nil)
	assert.Error(t, err)

	id, err := identity.Generate()
	require.NoError(t, err)
	_, err = New(id.ID(), nil, nil)
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestSwarm_Listen(t *testing.T) {
	s := newTestSwarm(t)
	addr := listenLocal(t, s)

	ev := waitEvent[NewListenAddr](t, s)
	assert.True(t, ev.Addr.Equal(addr))
	assert.Equal(t, []ma.Multiaddr{addr}, s.ListenAddresses())
	assert.Contains(t, ev.String(), addr.String())
}

func TestSwarm_ListenUnsupported(t *testing.T) {
	s := newTestSwarm(t)
	err := s.Listen(ma.StringCast("/ip4/127.0.0.1/udp/0"))
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestSwarm_ListenUnspecifiedExpands(t *testing.T) {
	s := newTestSwarm(t)
	require.NoError(t, s.Listen(ma.StringCast("/ip4/0.0.0.0/tcp/0")))

	addrs := s.ListenAddresses()
	require.NotEmpty(t, addrs)
	for _, a := range addrs {
		ip, err := a.ValueForProtocol(ma.P_IP4)
		require.NoError(t, err)
		assert.NotEqual(t, "0.0.0.0", ip)
	}
}

func TestSwarm_Dial(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)

	c := connect(t, a, b)
	assert.Equal(t, b.LocalPeer(), c.RemotePeer())
	assert.Equal(t, upgrader.DirOutbound, c.Direction())

	dialing := waitEvent[Dialing](t, a)
	assert.NotNil(t, dialing.Addr)
	est := waitEvent[ConnectionEstablished](t, a)
	assert.Equal(t, b.LocalPeer(), est.Peer)

	waitEvent[IncomingConnection](t, b)
	inbound := waitEvent[ConnectionEstablished](t, b)
	assert.Equal(t, a.LocalPeer(), inbound.Peer)
	assert.Equal(t, upgrader.DirInbound, inbound.Direction)

	assert.Equal(t, []peer.ID{b.LocalPeer()}, a.Peers())
	assert.Len(t, a.Conns(), 1)
}

func TestSwarm_DialWithPeerID(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	addr := listenLocal(t, b)

	full := addr.Encapsulate(ma.StringCast("/p2p/" + b.LocalPeer().String()))
	c, err := a.Dial(context.Background(), full)
	require.NoError(t, err)
	assert.Equal(t, b.LocalPeer(), c.RemotePeer())
}

func TestSwarm_DialWrongPeerID(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	other := newTestSwarm(t)
	addr := listenLocal(t, b)

	full := addr.Encapsulate(ma.StringCast("/p2p/" + other.LocalPeer().String()))
	_, err := a.Dial(context.Background(), full)
	require.Error(t, err)

	var dialErr *DialError
	require.True(t, errors.As(err, &dialErr))
	assert.ErrorIs(t, err, upgrader.ErrHandshakeFailed)

	ev := waitEvent[OutgoingConnectionError](t, a)
	assert.Equal(t, other.LocalPeer(), ev.Peer)
}

func TestSwarm_DialToSelf(t *testing.T) {
	s := newTestSwarm(t)
	addr := listenLocal(t, s)

	full := addr.Encapsulate(ma.StringCast("/p2p/" + s.LocalPeer().String()))
	_, err := s.Dial(context.Background(), full)
	assert.ErrorIs(t, err, ErrDialToSelf)

	// 不带节点标识拨自己：握手后识别
	_, err = s.Dial(context.Background(), addr)
	assert.ErrorIs(t, err, ErrDialToSelf)
}

func TestSwarm_DialRefused(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	addr := listenLocal(t, b)
	require.NoError(t, b.Close())

	_, err := a.Dial(context.Background(), addr)
	require.Error(t, err)

	ev := waitEvent[OutgoingConnectionError](t, a)
	assert.Error(t, ev.Err)
	assert.Contains(t, ev.String(), "OutgoingConnectionError")
}

func TestSwarm_DialAsync(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	addr := listenLocal(t, b)

	a.DialAsync(addr)
	ev := waitEvent[ConnectionEstablished](t, a)
	assert.Equal(t, b.LocalPeer(), ev.Peer)
}

func TestSwarm_Streams(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	b.SetStreamHandler(echoProtocol, echoHandler)
	assert.Contains(t, b.Protocols(), echoProtocol)

	connect(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := a.NewStream(ctx, b.LocalPeer(), "/test/missing/1.0.0", echoProtocol)
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, echoProtocol, st.Protocol())
	assert.Equal(t, b.LocalPeer(), st.RemotePeer())

	_, err = st.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(st, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestSwarm_NewStreamErrors(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.NewStream(ctx, b.LocalPeer(), echoProtocol)
	assert.ErrorIs(t, err, ErrNoConnection)

	connect(t, a, b)
	_, err = a.NewStream(ctx, b.LocalPeer(), echoProtocol)
	assert.Error(t, err)
}

func TestSwarm_Notify(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)

	var connected, disconnected atomic.Int32
	done := make(chan struct{})
	a.Notify(&NotifyBundle{
		ConnectedF: func(*Conn) { connected.Add(1) },
		DisconnectedF: func(*Conn) {
			disconnected.Add(1)
			close(done)
		},
	})

	c := connect(t, a, b)
	assert.Equal(t, int32(1), connected.Load())

	require.NoError(t, a.ClosePeer(c.RemotePeer()))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect not notified")
	}
	assert.Equal(t, int32(1), disconnected.Load())
	assert.Empty(t, a.Peers())

	closed := waitEvent[ConnectionClosed](t, a)
	assert.Equal(t, b.LocalPeer(), closed.Peer)
}

func TestSwarm_RemoteCloseRemovesConn(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	connect(t, a, b)

	waitEvent[ConnectionEstablished](t, b)
	require.NoError(t, b.ClosePeer(a.LocalPeer()))

	closed := waitEvent[ConnectionClosed](t, a)
	assert.Equal(t, b.LocalPeer(), closed.Peer)
	assert.Empty(t, a.ConnsToPeer(b.LocalPeer()))
}

func TestSwarm_Emit(t *testing.T) {
	s := newTestSwarm(t)
	for i := 0; i < 100; i++ {
		assert.True(t, s.Emit(testEvent{fmt.Sprintf("e%d", i)}))
	}
	assert.False(t, s.Emit(nil))

	for i := 0; i < 100; i++ {
		ev := <-s.Events()
		assert.Equal(t, fmt.Sprintf("e%d", i), ev.String())
	}
}

func TestSwarm_CloseEndsEvents(t *testing.T) {
	s := newTestSwarm(t)
	s.Emit(testEvent{"pending"})

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrSwarmClosed)
	assert.True(t, s.IsClosed())
	waitClosed(t, s)
	assert.False(t, s.Emit(testEvent{"late"}))

	_, err := s.Dial(context.Background(), ma.StringCast("/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, ErrSwarmClosed)
}

func TestSwarm_ExhaustionEndsEvents(t *testing.T) {
	s := newTestSwarm(t)
	addr := listenLocal(t, s)
	waitEvent[NewListenAddr](t, s)

	require.True(t, s.CloseListener(addr))

	ev := waitEvent[ListenerClosed](t, s)
	assert.True(t, ev.Addr.Equal(addr))
	assert.NoError(t, ev.Err)
	waitClosed(t, s)
	assert.False(t, s.CloseListener(addr))
}

func TestSwarm_NoExhaustionWhileConnected(t *testing.T) {
	a := newTestSwarm(t)
	b := newTestSwarm(t)
	addr := listenLocal(t, b)

	_, err := a.Dial(context.Background(), addr)
	require.NoError(t, err)
	waitEvent[ConnectionEstablished](t, b)

	require.True(t, b.CloseListener(addr))
	waitEvent[ListenerClosed](t, b)

	// 仍有连接，事件流保持打开
	assert.True(t, b.Emit(testEvent{"still open"}))
	ev := waitEvent[testEvent](t, b)
	assert.Equal(t, "still open", ev.text)

	// 最后一个连接断开后结束
	require.NoError(t, a.ClosePeer(b.LocalPeer()))
	waitEvent[ConnectionClosed](t, b)
	waitClosed(t, b)
}

func TestEvent_String(t *testing.T) {
	addr := ma.StringCast("/ip4/127.0.0.1/tcp/4001")
	err := errors.New("boom")

	tests := []struct {
		ev   Event
		want string
	}{
		{Dialing{Addr: addr}, "Dialing { address: /ip4/127.0.0.1/tcp/4001 }"},
		{NewListenAddr{Addr: addr}, "NewListenAddr { address: /ip4/127.0.0.1/tcp/4001 }"},
		{ListenerClosed{Addr: addr}, "ListenerClosed { address: /ip4/127.0.0.1/tcp/4001 }"},
		{ListenerClosed{Addr: addr, Err: err}, "ListenerClosed { address: /ip4/127.0.0.1/tcp/4001, error: boom }"},
		{OutgoingConnectionError{Addr: addr, Err: err}, "OutgoingConnectionError { address: /ip4/127.0.0.1/tcp/4001, error: boom }"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.String())
	}
}

func TestDialError(t *testing.T) {
	addr := ma.StringCast("/ip4/127.0.0.1/tcp/4001")
	err := &DialError{Addr: addr, Err: ErrDialToSelf}
	assert.ErrorIs(t, err, ErrDialToSelf)
	assert.Equal(t, "failed to dial /ip4/127.0.0.1/tcp/4001: dial to self attempted", err.Error())
}
