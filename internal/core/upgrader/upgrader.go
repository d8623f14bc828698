package upgrader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	hyamux "github.com/hashicorp/yamux"
	"github.com/libp2p/go-libp2p/core/peer"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/muxer/yamux"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/security/noise"
)

// Direction 连接方向
type Direction int

const (
	// DirInbound 入站连接（对端拨入）
	DirInbound Direction = iota
	// DirOutbound 出站连接（本地拨出）
	DirOutbound
)

// String 返回方向名称
func (d Direction) String() string {
	if d == DirInbound {
		return "inbound"
	}
	return "outbound"
}

// truncateID 安全截取 ID 用于日志显示
func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

// Upgrader 连接升级器
type Upgrader struct {
	identity *identity.Identity
	protect  pnet.Protector
	security *noise.Transport

	muxerCfg *hyamux.Config
	timeout  time.Duration
}

// New 创建连接升级器
//
// key 未启用时不进行私有网络保护，是否保护在此一次性确定。
func New(id *identity.Identity, key pnet.Key, cfg Config) (*Upgrader, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}

	sec, err := noise.New(id)
	if err != nil {
		return nil, fmt.Errorf("create noise transport: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Yamux == nil {
		cfg.Yamux = yamux.DefaultYamuxConfig()
	}

	return &Upgrader{
		identity: id,
		protect:  pnet.NewProtector(key),
		security: sec,
		muxerCfg: cfg.Yamux,
		timeout:  cfg.Timeout,
	}, nil
}

// Protected 返回是否启用了私有网络保护
func (u *Upgrader) Protected() bool {
	return u.protect != nil
}

// Timeout 返回升级超时
func (u *Upgrader) Timeout() time.Duration {
	return u.timeout
}

// Upgrade 升级连接
//
// 升级流程：
//  1. 私有网络保护（可选）
//  2. 协商安全协议（multistream-select）
//  3. Noise 握手
//  4. 协商多路复用器（multistream-select）
//  5. 多路复用设置（yamux）
//
// remotePeer 非空时要求握手得到的对端身份与之一致。
// 任何失败都会关闭 conn。
func (u *Upgrader) Upgrade(
	ctx context.Context,
	conn manet.Conn,
	dir Direction,
	remotePeer peer.ID,
) (*Conn, error) {
	isServer := dir == DirInbound

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	// 统一截止时间：超时或 ctx 取消都会打断阻塞中的读写
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	secConn, err := u.handshake(conn, isServer, remotePeer)
	if err == nil && !stop() {
		// 握手完成的同时 ctx 已结束
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, u.classify(ctx, deadline, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clear deadline: %w", err)
	}

	muxer, err := yamux.NewMuxer(secConn, isServer, u.muxerCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrMuxerSetupFailed, err)
	}

	log.Info("连接升级成功",
		"direction", dir,
		"remotePeer", truncateID(secConn.RemotePeer().String(), 8),
		"security", noise.ID,
		"muxer", yamux.ID,
		"pnet", u.Protected())

	return newConn(conn, secConn, muxer, dir), nil
}

// handshake 执行升级中所有需要对端参与的阶段
func (u *Upgrader) handshake(conn net.Conn, isServer bool, remotePeer peer.ID) (*noise.Conn, error) {
	var base net.Conn = conn
	if u.protect != nil {
		pc, err := u.protect(conn)
		if err != nil {
			log.Warn("私有网络保护失败", "error", err)
			return nil, err
		}
		base = pc
	}

	log.Debug("协商安全协议", "isServer", isServer, "remotePeer", truncateID(remotePeer.String(), 8))
	if err := negotiate(base, noise.ID, isServer); err != nil {
		log.Warn("安全协议协商失败", "error", err)
		return nil, fmt.Errorf("security negotiation: %w", err)
	}

	log.Debug("执行安全握手", "isServer", isServer)
	var (
		secConn *noise.Conn
		err     error
	)
	if isServer {
		secConn, err = u.security.SecureInbound(context.Background(), base, remotePeer)
	} else {
		secConn, err = u.security.SecureOutbound(context.Background(), base, remotePeer)
	}
	if err != nil {
		log.Warn("安全握手失败", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	log.Debug("安全握手成功", "remotePeer", truncateID(secConn.RemotePeer().String(), 8))

	log.Debug("协商多路复用器")
	if err := negotiate(secConn, yamux.ID, isServer); err != nil {
		log.Warn("多路复用器协商失败", "error", err)
		return nil, fmt.Errorf("muxer negotiation: %w", err)
	}
	return secConn, nil
}

// classify 把由截止时间引起的 I/O 错误归为超时
func (u *Upgrader) classify(ctx context.Context, deadline time.Time, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("upgrade aborted: %w", ctx.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		!time.Now().Before(deadline):
		return fmt.Errorf("%w after %s: %v", ErrUpgradeTimeout, u.timeout, err)
	}
	return err
}
