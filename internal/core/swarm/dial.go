package swarm

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
	"github.com/dep2p/go-p2pchat/internal/util/addrutil"
)

// Dial 拨号并升级连接
//
// addr 可带 /p2p/<id> 后缀，此时要求对端身份一致。失败时发出
// OutgoingConnectionError 并返回 *DialError。
func (s *Swarm) Dial(ctx context.Context, addr ma.Multiaddr) (*Conn, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}

	dialAddr, expected := addrutil.SplitPeerID(addr)
	if expected == s.localPeer {
		return nil, s.dialFailed(addr, expected, ErrDialToSelf)
	}

	s.Emit(Dialing{Addr: addr})
	log.Debug("开始拨号", "addr", dialAddr, "peerID", truncateID(expected.String(), 8))

	if !s.transport.CanDial(dialAddr) {
		return nil, s.dialFailed(addr, expected, ErrNoTransport)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	defer cancel()

	raw, err := s.transport.Dial(ctx, dialAddr)
	if err != nil {
		return nil, s.dialFailed(addr, expected, err)
	}

	uc, err := s.upgrader.Upgrade(ctx, raw, upgrader.DirOutbound, expected)
	if err != nil {
		return nil, s.dialFailed(addr, expected, err)
	}
	if uc.RemotePeer() == s.localPeer {
		_ = uc.Close()
		return nil, s.dialFailed(addr, expected, ErrDialToSelf)
	}

	c, err := s.addConn(uc)
	if err != nil {
		return nil, &DialError{Addr: addr, Err: err}
	}
	return c, nil
}

// DialAsync 在后台拨号，结果只通过事件流体现
func (s *Swarm) DialAsync(addr ma.Multiaddr) {
	go func() {
		if _, err := s.Dial(s.ctx, addr); err != nil {
			log.Debug("后台拨号失败", "addr", addr, "error", err)
		}
	}()
}

func (s *Swarm) dialFailed(addr ma.Multiaddr, expected peer.ID, err error) error {
	log.Debug("拨号失败", "addr", addr, "error", err)
	if !s.closed.Load() {
		s.metrics.ConnFailed(upgrader.DirOutbound.String())
		s.Emit(OutgoingConnectionError{Addr: addr, Peer: expected, Err: err})
	}
	return &DialError{Addr: addr, Err: err}
}
