package swarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"
	mss "github.com/multiformats/go-multistream"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// Swarm 连接群管理
type Swarm struct {
	mu sync.RWMutex

	// 本地节点 ID
	localPeer peer.ID

	// 连接池：peerID -> []*Conn
	conns map[peer.ID][]*Conn

	transport *tcp.Transport
	upgrader  *upgrader.Upgrader

	// 监听器
	listeners   map[*tcp.Listener]struct{}
	hadListener bool

	// 通知器
	notifiers []Notifiee

	// 入站流协议分发
	handlersMu sync.RWMutex
	handlers   map[string]StreamHandler
	mux        *mss.MultistreamMuxer[string]

	events  *eventQueue
	metrics *metrics.Recorder

	nextConnID atomic.Uint64

	// 配置
	config *Config

	ctx    context.Context
	cancel context.CancelFunc

	// 状态
	closed atomic.Bool
}

// New 创建 Swarm
func New(localPeer peer.ID, up *upgrader.Upgrader, tr *tcp.Transport, opts ...Option) (*Swarm, error) {
	if localPeer == "" {
		return nil, fmt.Errorf("localPeer cannot be empty")
	}
	if up == nil || tr == nil {
		return nil, ErrNoTransport
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm{
		localPeer: localPeer,
		conns:     make(map[peer.ID][]*Conn),
		transport: tr,
		upgrader:  up,
		listeners: make(map[*tcp.Listener]struct{}),
		handlers:  make(map[string]StreamHandler),
		mux:       mss.NewMultistreamMuxer[string](),
		config:    DefaultConfig(),
		ctx:       ctx,
		cancel:    cancel,
	}

	// 应用选项
	for _, opt := range opts {
		if err := opt(s); err != nil {
			cancel()
			return nil, err
		}
	}

	s.events = newEventQueue()
	return s, nil
}

// LocalPeer 返回本地节点 ID
func (s *Swarm) LocalPeer() peer.ID {
	return s.localPeer
}

// Events 返回网络事件流
//
// 通道在 Close 后，或最后一个监听器关闭且没有连接时关闭。
func (s *Swarm) Events() <-chan Event {
	return s.events.out
}

// Emit 向事件流注入事件
//
// 事件流已结束时返回 false。
func (s *Swarm) Emit(ev Event) bool {
	if ev == nil {
		return false
	}
	return s.events.push(ev)
}

// Peers 返回所有已连接的节点 ID
func (s *Swarm) Peers() []peer.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]peer.ID, 0, len(s.conns))
	for p := range s.conns {
		peers = append(peers, p)
	}
	return peers
}

// Conns 返回所有活跃连接
func (s *Swarm) Conns() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []*Conn
	for _, peerConns := range s.conns {
		conns = append(conns, peerConns...)
	}
	return conns
}

// ConnsToPeer 返回到指定节点的所有连接
func (s *Swarm) ConnsToPeer(p peer.ID) []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := s.conns[p]
	if len(conns) == 0 {
		return nil
	}
	result := make([]*Conn, len(conns))
	copy(result, conns)
	return result
}

// ClosePeer 关闭与指定节点的所有连接
func (s *Swarm) ClosePeer(p peer.ID) error {
	var err error
	for _, c := range s.ConnsToPeer(p) {
		err = multierr.Append(err, c.Close())
	}
	if err != nil {
		return fmt.Errorf("close peer %s: %w", p, err)
	}
	return nil
}

// Notify 注册连接事件通知
func (s *Swarm) Notify(n Notifiee) {
	if n == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Close 关闭 Swarm
//
// 关闭所有监听器和连接，事件流随即结束。
func (s *Swarm) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSwarmClosed
	}

	log.Info("正在关闭 Swarm")
	s.cancel()

	// 收集需要关闭的资源（避免持锁调用 Close 导致死锁）
	s.mu.Lock()
	listeners := make([]*tcp.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listeners = make(map[*tcp.Listener]struct{})

	var allConns []*Conn
	for _, conns := range s.conns {
		allConns = append(allConns, conns...)
	}
	s.mu.Unlock()

	var errs error
	for _, l := range listeners {
		if err := l.Close(); err != nil {
			log.Warn("关闭监听器失败", "error", err)
			errs = multierr.Append(errs, fmt.Errorf("close listener: %w", err))
		}
	}
	for _, c := range allConns {
		if err := c.Close(); err != nil {
			log.Warn("关闭连接失败", "peerID", truncateID(c.RemotePeer().String(), 8), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("close conn: %w", err))
		}
	}

	s.events.shutdown()

	if errs != nil {
		log.Error("关闭 Swarm 时发生错误", "errorCount", len(multierr.Errors(errs)))
		return fmt.Errorf("close swarm: %w", errs)
	}

	log.Info("Swarm 已关闭", "closedConnections", len(allConns))
	return nil
}

// IsClosed 检查是否已关闭
func (s *Swarm) IsClosed() bool {
	return s.closed.Load()
}

// addConn 添加连接到池并通知订阅者
func (s *Swarm) addConn(uc *upgrader.Conn) (*Conn, error) {
	c := newConn(s, uc, s.nextConnID.Add(1))

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = uc.Close()
		return nil, ErrSwarmClosed
	}
	p := c.RemotePeer()
	s.conns[p] = append(s.conns[p], c)
	notifiers := append([]Notifiee(nil), s.notifiers...)
	s.mu.Unlock()

	s.metrics.ConnOpened(c.Direction().String())
	log.Info("连接已建立",
		"peerID", truncateID(p.String(), 8),
		"direction", c.Direction(),
		"addr", c.RemoteMultiaddr())

	s.Emit(ConnectionEstablished{
		Peer:      p,
		Addr:      c.RemoteMultiaddr(),
		Direction: c.Direction(),
	})
	for _, n := range notifiers {
		n.Connected(c)
	}

	go c.acceptStreams()
	return c, nil
}

// removeConn 从池中移除连接
func (s *Swarm) removeConn(c *Conn, cause error) {
	s.mu.Lock()
	p := c.RemotePeer()
	conns := s.conns[p]
	found := false
	for i, existing := range conns {
		if existing == c {
			conns = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return
	}
	if len(conns) == 0 {
		delete(s.conns, p)
	} else {
		s.conns[p] = conns
	}
	notifiers := append([]Notifiee(nil), s.notifiers...)
	s.mu.Unlock()

	s.metrics.ConnClosed(c.Direction().String())
	log.Debug("连接已关闭", "peerID", truncateID(p.String(), 8), "cause", cause)

	for _, n := range notifiers {
		n.Disconnected(c)
	}
	if s.closed.Load() {
		return
	}
	s.Emit(ConnectionClosed{
		Peer:      p,
		Addr:      c.RemoteMultiaddr(),
		Direction: c.Direction(),
		Cause:     cause,
	})
	s.checkExhausted()
}

// checkExhausted 曾经监听过、当前既无监听器也无连接时结束事件流
func (s *Swarm) checkExhausted() {
	s.mu.RLock()
	exhausted := s.hadListener && len(s.listeners) == 0 && len(s.conns) == 0
	s.mu.RUnlock()

	if exhausted && !s.closed.Load() {
		log.Info("没有监听器也没有连接，结束事件流")
		s.events.finish()
	}
}
