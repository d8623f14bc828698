package ping

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dep2p/go-p2pchat/internal/core/swarm"
)

// ProtocolID Ping 协议 ID
const ProtocolID = "/ipfs/ping/1.0.0"

const (
	// PingSize Ping 消息大小（32 字节）
	PingSize = 32

	// HandlerIdleTimeout Handler 空闲超时时间
	HandlerIdleTimeout = 60 * time.Second
)

var (
	// ErrDataMismatch Ping 回显数据不匹配
	ErrDataMismatch = errors.New("ping: echo data mismatch")

	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("ping: service closed")
)

// Config ping 配置
type Config struct {
	// Interval 两次探测之间的间隔
	Interval time.Duration
	// Timeout 单次探测超时
	Timeout time.Duration
	// MaxFailures 连续失败多少次后关闭连接，0 表示从不关闭
	MaxFailures int
	// Clock 时钟，nil 使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		Timeout:     20 * time.Second,
		MaxFailures: 1,
	}
}

// Host ping 依赖的网络能力
type Host interface {
	SetStreamHandler(protocol string, handler swarm.StreamHandler)
	NewStream(ctx context.Context, p peer.ID, protocols ...string) (*swarm.Stream, error)
	ConnsToPeer(p peer.ID) []*swarm.Conn
	ClosePeer(p peer.ID) error
	Notify(n swarm.Notifiee)
}

// Service Ping 服务
type Service struct {
	host  Host
	cfg   Config
	clock clock.Clock
	emit  func(Event)

	mu      sync.Mutex
	probers map[peer.ID]context.CancelFunc
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建 Ping 服务
//
// emit 接收所有 ping 事件，可为 nil。
func New(host Host, cfg Config, emit func(Event)) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if emit == nil {
		emit = func(Event) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		host:    host,
		cfg:     cfg,
		clock:   cfg.Clock,
		emit:    emit,
		probers: make(map[peer.ID]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 注册协议处理器并订阅连接事件
func (s *Service) Start() {
	s.host.SetStreamHandler(ProtocolID, s.HandleStream)
	s.host.Notify(&swarm.NotifyBundle{
		ConnectedF:    func(c *swarm.Conn) { s.startProber(c.RemotePeer()) },
		DisconnectedF: func(c *swarm.Conn) { s.peerDisconnected(c.RemotePeer()) },
	})
}

// Close 停止所有探测循环
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.probers = make(map[peer.ID]context.CancelFunc)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// HandleStream 处理 Ping 请求（服务器端）
//
// 读取数据并回显，每次回显产生一个 Pong 事件。
func (s *Service) HandleStream(stream *swarm.Stream) {
	defer stream.Close()

	p := stream.RemotePeer()
	buf := make([]byte, PingSize)

	// 循环处理 Ping 请求（支持连续 ping）
	for {
		_ = stream.SetReadDeadline(time.Now().Add(HandlerIdleTimeout))

		if _, err := io.ReadFull(stream, buf); err != nil {
			return
		}
		if _, err := stream.Write(buf); err != nil {
			return
		}
		s.emit(Event{Peer: p, Kind: KindPong})
	}
}

func (s *Service) startProber(p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.probers[p]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.probers[p] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.probeLoop(ctx, p)
	}()
}

func (s *Service) peerDisconnected(p peer.ID) {
	if len(s.host.ConnsToPeer(p)) > 0 {
		return
	}
	s.mu.Lock()
	cancel, ok := s.probers[p]
	delete(s.probers, p)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// probeLoop 周期性探测单个节点
func (s *Service) probeLoop(ctx context.Context, p peer.ID) {
	var (
		stream   *swarm.Stream
		failures int
	)
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if stream == nil {
			st, err := s.openStream(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				s.report(p, err)
			} else {
				stream = st
			}
		}

		if stream != nil {
			rtt, err := s.ping(ctx, stream)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				stream.Close()
				stream = nil
				failures++
				s.report(p, err)
			} else {
				failures = 0
				log.Debug("ping 成功", "peer", p, "rtt", rtt)
				s.emit(Event{Peer: p, Kind: KindPing, RTT: rtt})
			}
		}

		if s.cfg.MaxFailures > 0 && failures >= s.cfg.MaxFailures {
			log.Debug("ping 连续失败，关闭连接", "peer", p, "failures", failures)
			_ = s.host.ClosePeer(p)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) openStream(ctx context.Context, p peer.ID) (*swarm.Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.host.NewStream(ctx, p, ProtocolID)
}

// ping 在已打开的流上完成一次探测，返回往返时间（RTT）
func (s *Service) ping(ctx context.Context, stream *swarm.Stream) (time.Duration, error) {
	_ = stream.SetDeadline(time.Now().Add(s.cfg.Timeout))
	defer stream.SetDeadline(time.Time{})

	// 服务关闭时打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() {
		_ = stream.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, PingSize)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}

	start := s.clock.Now()
	if _, err := stream.Write(buf); err != nil {
		return 0, err
	}

	echo := make([]byte, PingSize)
	if _, err := io.ReadFull(stream, echo); err != nil {
		return 0, err
	}
	rtt := s.clock.Since(start)

	if !bytes.Equal(buf, echo) {
		return 0, ErrDataMismatch
	}
	return rtt, nil
}

// report 把探测失败归类为超时或其他失败
func (s *Service) report(p peer.ID, err error) {
	if isTimeout(err) {
		s.emit(Event{Peer: p, Kind: KindTimeout})
		return
	}
	s.emit(Event{Peer: p, Kind: KindFailure, Err: err})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
