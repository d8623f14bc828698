package upgrader

import (
	"context"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dep2p/go-p2pchat/internal/core/muxer/yamux"
	"github.com/dep2p/go-p2pchat/internal/core/security/noise"
)

// Conn 升级后的连接
type Conn struct {
	raw     manet.Conn
	secConn *noise.Conn
	muxer   *yamux.Muxer
	dir     Direction
}

func newConn(raw manet.Conn, secConn *noise.Conn, muxer *yamux.Muxer, dir Direction) *Conn {
	return &Conn{
		raw:     raw,
		secConn: secConn,
		muxer:   muxer,
		dir:     dir,
	}
}

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() peer.ID {
	return c.secConn.LocalPeer()
}

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() peer.ID {
	return c.secConn.RemotePeer()
}

// RemotePublicKey 返回握手中得到的对端公钥
func (c *Conn) RemotePublicKey() crypto.PubKey {
	return c.secConn.RemotePublicKey()
}

// LocalMultiaddr 返回本地地址
func (c *Conn) LocalMultiaddr() ma.Multiaddr {
	return c.raw.LocalMultiaddr()
}

// RemoteMultiaddr 返回远端地址
func (c *Conn) RemoteMultiaddr() ma.Multiaddr {
	return c.raw.RemoteMultiaddr()
}

// Direction 返回连接方向
func (c *Conn) Direction() Direction {
	return c.dir
}

// OpenStream 打开新的复用流
func (c *Conn) OpenStream(ctx context.Context) (*yamux.Stream, error) {
	if c.IsClosed() {
		return nil, ErrConnClosed
	}
	return c.muxer.OpenStream(ctx)
}

// AcceptStream 等待对端打开的流
func (c *Conn) AcceptStream() (*yamux.Stream, error) {
	return c.muxer.AcceptStream()
}

// NumStreams 返回当前打开的流数量
func (c *Conn) NumStreams() int {
	return c.muxer.NumStreams()
}

// CloseChan 连接结束时关闭的通道
func (c *Conn) CloseChan() <-chan struct{} {
	return c.muxer.CloseChan()
}

// IsClosed 检查连接是否已关闭
func (c *Conn) IsClosed() bool {
	return c.muxer.IsClosed()
}

// Close 关闭多路复用会话及底层连接
func (c *Conn) Close() error {
	err := c.muxer.Close()
	_ = c.raw.Close()
	return err
}
