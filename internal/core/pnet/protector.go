package pnet

import (
	"fmt"
	"net"

	pnetconn "github.com/libp2p/go-libp2p/p2p/net/pnet"
)

// Protector 把原始连接包装为私有网络连接
type Protector func(net.Conn) (net.Conn, error)

// NewProtector 为密钥创建 Protector
//
// 未启用私有网络时返回 nil，调用方据此在构造时一次性跳过该阶段。
func NewProtector(key Key) Protector {
	if !key.Enabled() {
		return nil
	}
	psk := key.PSK
	return func(conn net.Conn) (net.Conn, error) {
		pc, err := pnetconn.NewProtectedConn(psk, conn)
		if err != nil {
			return nil, fmt.Errorf("pnet handshake: %w", err)
		}
		return pc, nil
	}
}
