package swarm

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// Listen 监听指定地址
//
// 绑定成功后为每个可达地址发出 NewListenAddr，并在后台接受连接。
func (s *Swarm) Listen(addrs ...ma.Multiaddr) error {
	if s.closed.Load() {
		return ErrSwarmClosed
	}
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses to listen")
	}

	log.Debug("开始监听地址", "count", len(addrs))
	for _, addr := range addrs {
		if err := s.listenAddr(addr); err != nil {
			log.Warn("监听地址失败", "addr", addr, "error", err)
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	}
	return nil
}

// listenAddr 监听单个地址
func (s *Swarm) listenAddr(addr ma.Multiaddr) error {
	if !s.transport.CanDial(addr) {
		return fmt.Errorf("%w: %s", ErrNoTransport, addr)
	}

	l, err := s.transport.Listen(addr)
	if err != nil {
		return fmt.Errorf("transport listen: %w", err)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = l.Close()
		return ErrSwarmClosed
	}
	s.listeners[l] = struct{}{}
	s.hadListener = true
	s.mu.Unlock()

	log.Info("监听成功", "addr", l.Multiaddr())
	for _, a := range expandAddr(l.Multiaddr()) {
		s.Emit(NewListenAddr{Addr: a})
	}

	go s.acceptLoop(l)
	return nil
}

// acceptLoop 接受连接循环
func (s *Swarm) acceptLoop(l *tcp.Listener) {
	var cause error
	for {
		raw, err := l.Accept()
		if err != nil {
			if !l.IsClosed() && !s.closed.Load() {
				cause = err
				log.Warn("接受连接失败，监听器关闭", "addr", l.Multiaddr(), "error", err)
			}
			break
		}
		go s.acceptConn(l, raw)
	}

	_ = l.Close()
	s.mu.Lock()
	_, tracked := s.listeners[l]
	delete(s.listeners, l)
	s.mu.Unlock()

	if !tracked || s.closed.Load() {
		return
	}
	s.Emit(ListenerClosed{Addr: l.Multiaddr(), Err: cause})
	s.checkExhausted()
}

// acceptConn 升级接受的连接
func (s *Swarm) acceptConn(l *tcp.Listener, raw manet.Conn) {
	local, remote := raw.LocalMultiaddr(), raw.RemoteMultiaddr()
	s.Emit(IncomingConnection{LocalAddr: local, RemoteAddr: remote})

	uc, err := s.upgrader.Upgrade(s.ctx, raw, upgrader.DirInbound, "")
	if err == nil && uc.RemotePeer() == s.localPeer {
		_ = uc.Close()
		err = ErrDialToSelf
	}
	if err != nil {
		if s.closed.Load() {
			return
		}
		log.Debug("入站连接升级失败", "remote", remote, "error", err)
		s.metrics.ConnFailed(upgrader.DirInbound.String())
		s.Emit(IncomingConnectionError{LocalAddr: local, RemoteAddr: remote, Err: err})
		return
	}

	if _, err := s.addConn(uc); err != nil && !errors.Is(err, ErrSwarmClosed) {
		log.Debug("添加入站连接失败", "error", err)
	}
}

// CloseListener 关闭监听在 addr 上的监听器
func (s *Swarm) CloseListener(addr ma.Multiaddr) bool {
	s.mu.RLock()
	var target *tcp.Listener
	for l := range s.listeners {
		if l.Multiaddr().Equal(addr) {
			target = l
			break
		}
	}
	s.mu.RUnlock()

	if target == nil {
		return false
	}
	_ = target.Close()
	return true
}

// Listeners 返回实际绑定的监听地址
func (s *Swarm) Listeners() []ma.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]ma.Multiaddr, 0, len(s.listeners))
	for l := range s.listeners {
		addrs = append(addrs, l.Multiaddr())
	}
	return addrs
}

// ListenAddresses 返回可达的监听地址
//
// 未指定 IP（0.0.0.0 / ::）展开为各网络接口的地址。
func (s *Swarm) ListenAddresses() []ma.Multiaddr {
	var out []ma.Multiaddr
	for _, a := range s.Listeners() {
		out = append(out, expandAddr(a)...)
	}
	return out
}

// expandAddr 展开未指定 IP 的监听地址，失败时原样返回
func expandAddr(addr ma.Multiaddr) []ma.Multiaddr {
	if !manet.IsIPUnspecified(addr) {
		return []ma.Multiaddr{addr}
	}
	ifaceAddrs, err := manet.InterfaceMultiaddrs()
	if err != nil {
		log.Debug("获取接口地址失败", "error", err)
		return []ma.Multiaddr{addr}
	}
	resolved, err := manet.ResolveUnspecifiedAddresses([]ma.Multiaddr{addr}, ifaceAddrs)
	if err != nil || len(resolved) == 0 {
		return []ma.Multiaddr{addr}
	}
	return resolved
}
