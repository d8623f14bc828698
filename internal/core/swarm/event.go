package swarm

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// Event 网络事件
//
// Swarm 自身产生的事件与子协议通过 Emit 注入的事件共用该接口，
// String() 即事件的展示形式。
type Event interface {
	String() string
}

// Dialing 开始拨号
type Dialing struct {
	Addr ma.Multiaddr
}

func (e Dialing) String() string {
	return fmt.Sprintf("Dialing { address: %s }", e.Addr)
}

// ConnectionEstablished 连接建立（升级完成）
type ConnectionEstablished struct {
	Peer      peer.ID
	Addr      ma.Multiaddr
	Direction upgrader.Direction
}

func (e ConnectionEstablished) String() string {
	return fmt.Sprintf("ConnectionEstablished { peer_id: %s, address: %s, direction: %s }", e.Peer, e.Addr, e.Direction)
}

// ConnectionClosed 连接关闭
type ConnectionClosed struct {
	Peer      peer.ID
	Addr      ma.Multiaddr
	Direction upgrader.Direction
	Cause     error
}

func (e ConnectionClosed) String() string {
	if e.Cause == nil {
		return fmt.Sprintf("ConnectionClosed { peer_id: %s, address: %s, direction: %s }", e.Peer, e.Addr, e.Direction)
	}
	return fmt.Sprintf("ConnectionClosed { peer_id: %s, address: %s, direction: %s, cause: %v }", e.Peer, e.Addr, e.Direction, e.Cause)
}

// IncomingConnection 接受了入站连接，尚未升级
type IncomingConnection struct {
	LocalAddr  ma.Multiaddr
	RemoteAddr ma.Multiaddr
}

func (e IncomingConnection) String() string {
	return fmt.Sprintf("IncomingConnection { local_addr: %s, send_back_addr: %s }", e.LocalAddr, e.RemoteAddr)
}

// IncomingConnectionError 入站连接升级失败
type IncomingConnectionError struct {
	LocalAddr  ma.Multiaddr
	RemoteAddr ma.Multiaddr
	Err        error
}

func (e IncomingConnectionError) String() string {
	return fmt.Sprintf("IncomingConnectionError { local_addr: %s, send_back_addr: %s, error: %v }", e.LocalAddr, e.RemoteAddr, e.Err)
}

// OutgoingConnectionError 出站连接失败
type OutgoingConnectionError struct {
	Addr ma.Multiaddr
	Peer peer.ID
	Err  error
}

func (e OutgoingConnectionError) String() string {
	if e.Peer == "" {
		return fmt.Sprintf("OutgoingConnectionError { address: %s, error: %v }", e.Addr, e.Err)
	}
	return fmt.Sprintf("OutgoingConnectionError { peer_id: %s, address: %s, error: %v }", e.Peer, e.Addr, e.Err)
}

// NewListenAddr 新的可达监听地址
type NewListenAddr struct {
	Addr ma.Multiaddr
}

func (e NewListenAddr) String() string {
	return fmt.Sprintf("NewListenAddr { address: %s }", e.Addr)
}

// ListenerClosed 监听器关闭
type ListenerClosed struct {
	Addr ma.Multiaddr
	Err  error
}

func (e ListenerClosed) String() string {
	if e.Err == nil {
		return fmt.Sprintf("ListenerClosed { address: %s }", e.Addr)
	}
	return fmt.Sprintf("ListenerClosed { address: %s, error: %v }", e.Addr, e.Err)
}
