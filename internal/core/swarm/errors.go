package swarm

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrNoTransport 没有可用传输层
	ErrNoTransport = errors.New("no transport for address")

	// ErrNoConnection 没有连接
	ErrNoConnection = errors.New("no connection to peer")

	// ErrDialToSelf 尝试拨号自己
	ErrDialToSelf = errors.New("dial to self attempted")

	// ErrPeerMismatch 对端身份与地址中的节点标识不一致
	ErrPeerMismatch = errors.New("remote peer does not match dialed peer id")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid config")
)

// DialError 拨号错误
type DialError struct {
	Addr ma.Multiaddr
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to dial %s: %v", e.Addr, e.Err)
}

// Unwrap 返回底层错误
func (e *DialError) Unwrap() error {
	return e.Err
}
