package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnsupportedAddr 不是 TCP 地址
	ErrUnsupportedAddr = errors.New("unsupported address, expected /ip4|ip6/.../tcp/...")

	// ErrNotTCP 底层连接不是 TCP
	ErrNotTCP = errors.New("not a TCP connection")
)
