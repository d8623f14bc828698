package tcp

import (
	"net"
	"sync/atomic"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// Listener TCP 监听器
type Listener struct {
	transport *Transport
	listener  net.Listener
	addr      ma.Multiaddr
	closed    atomic.Bool
}

func newListener(t *Transport, nl net.Listener) (*Listener, error) {
	// 端口为 0 时这里得到系统分配的实际端口
	addr, err := manet.FromNetAddr(nl.Addr())
	if err != nil {
		return nil, err
	}
	return &Listener{transport: t, listener: nl, addr: addr}, nil
}

// Accept 接受一个入站连接，并设置与拨号一致的 socket 选项
func (l *Listener) Accept() (manet.Conn, error) {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return nil, err
		}

		if err := l.transport.setOptions(conn); err != nil {
			log.Debug("设置入站连接选项失败", "remote", conn.RemoteAddr(), "err", err)
			_ = conn.Close()
			continue
		}

		mconn, err := manet.WrapNetConn(conn)
		if err != nil {
			_ = conn.Close()
			continue
		}
		return mconn, nil
	}
}

// Multiaddr 返回实际监听地址
func (l *Listener) Multiaddr() ma.Multiaddr {
	return l.addr
}

// Addr 返回 net.Addr
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.transport.removeListener(l)
	return l.listener.Close()
}

// IsClosed 检查是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}
