package noise

import (
	"context"
	"fmt"
	"net"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dep2p/go-p2pchat/internal/core/identity"
)

// Transport Noise 安全传输
type Transport struct {
	identity *identity.Identity
}

// New 创建 Noise 传输
func New(id *identity.Identity) (*Transport, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}
	return &Transport{identity: id}, nil
}

// ID 返回协议标识
func (t *Transport) ID() string { return ID }

// SecureInbound 以响应者身份握手；expected 为空时接受任意对端
//
// 握手本身不读取 ctx，超时由调用方在底层连接上设置 deadline。
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn, expected peer.ID) (*Conn, error) {
	return t.secure(ctx, conn, expected, false)
}

// SecureOutbound 以发起者身份握手
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, expected peer.ID) (*Conn, error) {
	return t.secure(ctx, conn, expected, true)
}

func (t *Transport) secure(_ context.Context, conn net.Conn, expected peer.ID, initiator bool) (*Conn, error) {
	if conn == nil {
		return nil, fmt.Errorf("noise: conn is nil")
	}

	sc, err := performHandshake(conn, t.identity.PrivateKey(), expected, initiator)
	if err != nil {
		log.Debug("Noise 握手失败", "initiator", initiator, "remote", conn.RemoteAddr(), "err", err)
		return nil, fmt.Errorf("noise handshake: %w", err)
	}

	log.Debug("Noise 握手成功", "initiator", initiator, "remotePeer", sc.RemotePeer())
	return sc, nil
}
