package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"
)

// Config TCP 传输配置
type Config struct {
	// NoDelay 设置 TCP_NODELAY（低延迟）
	NoDelay bool

	// KeepAlive keep-alive 周期，0 关闭
	KeepAlive time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		NoDelay:   true,
		KeepAlive: 15 * time.Second,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层
type Transport struct {
	config Config

	listeners   map[*Listener]struct{}
	listenersMu sync.Mutex

	closed atomic.Bool
}

// NewTransport 创建 TCP 传输层
func NewTransport(config Config) *Transport {
	return &Transport{
		config:    config,
		listeners: make(map[*Listener]struct{}),
	}
}

// CanDial 检查是否是 /ip4|ip6/<ip>/tcp/<port> 形式
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	if addr == nil || t.closed.Load() {
		return false
	}
	protos := addr.Protocols()
	if len(protos) != 2 {
		return false
	}
	switch protos[0].Code {
	case ma.P_IP4, ma.P_IP6:
	default:
		return false
	}
	return protos[1].Code == ma.P_TCP
}

// Protocols 返回支持的 multiaddr 协议
func (t *Transport) Protocols() []int {
	return []int{ma.P_TCP}
}

// Dial 建立出站 TCP 连接
func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr) (manet.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(raddr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddr, raddr)
	}

	network, host, err := manet.DialArgs(raddr)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{KeepAlive: t.config.KeepAlive}
	conn, err := dialer.DialContext(ctx, network, host)
	if err != nil {
		return nil, err
	}

	if err := t.setOptions(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	mconn, err := manet.WrapNetConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Debug("TCP 拨号成功", "remote", mconn.RemoteMultiaddr())
	return mconn, nil
}

// Listen 在地址上监听
func (t *Transport) Listen(laddr ma.Multiaddr) (*Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(laddr) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddr, laddr)
	}

	network, host, err := manet.DialArgs(laddr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{KeepAlive: t.config.KeepAlive}
	nl, err := lc.Listen(context.Background(), network, host)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}

	l, err := newListener(t, nl)
	if err != nil {
		_ = nl.Close()
		return nil, err
	}

	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	log.Debug("TCP 监听", "addr", l.Multiaddr())
	return l, nil
}

// setOptions 设置 NoDelay 与 keep-alive
func (t *Transport) setOptions(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return ErrNotTCP
	}
	if err := tcpConn.SetNoDelay(t.config.NoDelay); err != nil {
		return err
	}
	if t.config.KeepAlive > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		return tcpConn.SetKeepAlivePeriod(t.config.KeepAlive)
	}
	return nil
}

// removeListener 监听器关闭时回调
func (t *Transport) removeListener(l *Listener) {
	t.listenersMu.Lock()
	delete(t.listeners, l)
	t.listenersMu.Unlock()
}

// ListenerCount 返回监听器数量
func (t *Transport) ListenerCount() int {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	return len(t.listeners)
}

// IsClosed 检查是否已关闭
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Close 关闭传输层和所有监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	ls := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenersMu.Unlock()

	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	return err
}
