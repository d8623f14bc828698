package identify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/util/msgio"
)

// ProtocolID Identify 协议 ID
const ProtocolID = "/ipfs/id/1.0.0"

const (
	// MaxMessageSize Identify 消息最大字节数
	MaxMessageSize = 64 * 1024

	// StreamTimeout 单次交换的超时
	StreamTimeout = 30 * time.Second
)

var (
	// ErrKeyMismatch 公钥与节点 ID 不一致
	ErrKeyMismatch = errors.New("identify: public key does not match peer id")

	// ErrMissingKey 消息缺少公钥
	ErrMissingKey = errors.New("identify: message has no public key")
)

// Config identify 配置
type Config struct {
	ProtocolVersion string
	AgentVersion    string
	InitialDelay    time.Duration
	Interval        time.Duration
	// Clock 时钟，nil 使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ProtocolVersion: "/ipfs/0.1.0",
		AgentVersion:    "rust-ipfs-example",
		InitialDelay:    500 * time.Millisecond,
		Interval:        5 * time.Minute,
	}
}

// Host identify 依赖的网络能力
type Host interface {
	SetStreamHandler(protocol string, handler swarm.StreamHandler)
	NewStream(ctx context.Context, p peer.ID, protocols ...string) (*swarm.Stream, error)
	ConnsToPeer(p peer.ID) []*swarm.Conn
	Notify(n swarm.Notifiee)
	ListenAddresses() []ma.Multiaddr
	Protocols() []string
}

// Service Identify 服务
type Service struct {
	host   Host
	pubKey crypto.PubKey
	cfg    Config
	clock  clock.Clock
	emit   func(Event)

	mu      sync.Mutex
	workers map[peer.ID]context.CancelFunc
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建 Identify 服务
func New(host Host, pubKey crypto.PubKey, cfg Config, emit func(Event)) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		host:    host,
		pubKey:  pubKey,
		cfg:     cfg,
		clock:   cfg.Clock,
		emit:    emit,
		workers: make(map[peer.ID]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 注册协议处理器并订阅连接事件
func (s *Service) Start() {
	s.host.SetStreamHandler(ProtocolID, s.HandleStream)
	s.host.Notify(&swarm.NotifyBundle{
		ConnectedF:    func(c *swarm.Conn) { s.startWorker(c.RemotePeer()) },
		DisconnectedF: func(c *swarm.Conn) { s.peerDisconnected(c.RemotePeer()) },
	})
}

// Close 停止所有周期性 identify
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.workers = make(map[peer.ID]context.CancelFunc)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// LocalInfo 构造发给指定连接对端的身份信息
func (s *Service) LocalInfo(observed ma.Multiaddr) *Info {
	return &Info{
		PublicKey:       s.pubKey,
		ListenAddrs:     s.host.ListenAddresses(),
		Protocols:       s.host.Protocols(),
		ObservedAddr:    observed,
		ProtocolVersion: s.cfg.ProtocolVersion,
		AgentVersion:    s.cfg.AgentVersion,
	}
}

// HandleStream 处理 Identify 请求（服务器端）
//
// 写入本节点的身份信息后关闭流。
func (s *Service) HandleStream(stream *swarm.Stream) {
	defer stream.Close()

	p := stream.RemotePeer()
	_ = stream.SetDeadline(time.Now().Add(StreamTimeout))

	// 观测地址：我们看到的对端地址
	msg, err := s.LocalInfo(stream.Conn().RemoteMultiaddr()).Marshal()
	if err == nil {
		err = msgio.WriteMsg(stream, msg)
	}
	if err != nil {
		log.Debug("发送 identify 失败", "peer", p, "error", err)
		s.emit(Event{Peer: p, Kind: KindError, Err: err})
		return
	}
	s.emit(Event{Peer: p, Kind: KindSent})
}

// Identify 主动识别节点（客户端）
func (s *Service) Identify(ctx context.Context, p peer.ID) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, StreamTimeout)
	defer cancel()

	stream, err := s.host.NewStream(ctx, p, ProtocolID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if d, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(d)
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.SetDeadline(time.Now()) })
	defer stop()

	msg, err := msgio.ReadMsg(msgio.NewReader(stream), MaxMessageSize)
	if err != nil {
		return nil, fmt.Errorf("read identify message: %w", err)
	}

	info, err := Unmarshal(msg)
	if err != nil {
		return nil, err
	}
	if err := verify(p, info); err != nil {
		return nil, err
	}
	return info, nil
}

// verify 检查公钥与节点 ID 一致
func verify(p peer.ID, info *Info) error {
	if info.PublicKey == nil {
		return ErrMissingKey
	}
	if !p.MatchesPublicKey(info.PublicKey) {
		return ErrKeyMismatch
	}
	return nil
}

func (s *Service) startWorker(p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.workers[p]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.workers[p] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.identifyLoop(ctx, p)
	}()
}

func (s *Service) peerDisconnected(p peer.ID) {
	if len(s.host.ConnsToPeer(p)) > 0 {
		return
	}
	s.mu.Lock()
	cancel, ok := s.workers[p]
	delete(s.workers, p)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// identifyLoop 首次延迟 InitialDelay，之后每隔 Interval 识别一次
func (s *Service) identifyLoop(ctx context.Context, p peer.ID) {
	timer := s.clock.Timer(s.cfg.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		info, err := s.Identify(ctx, p)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug("identify 失败", "peer", p, "error", err)
			s.emit(Event{Peer: p, Kind: KindError, Err: err})
		} else {
			s.emit(Event{Peer: p, Kind: KindReceived, Info: info})
		}
		timer.Reset(s.cfg.Interval)
	}
}
