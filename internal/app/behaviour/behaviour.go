package behaviour

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pchat/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/identify"
	"github.com/dep2p/go-p2pchat/internal/core/protocol/system/ping"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
)

// Host 组合协议依赖的网络能力，*swarm.Swarm 满足此接口
type Host interface {
	LocalPeer() peer.ID
	SetStreamHandler(protocol string, handler swarm.StreamHandler)
	NewStream(ctx context.Context, p peer.ID, protocols ...string) (*swarm.Stream, error)
	ConnsToPeer(p peer.ID) []*swarm.Conn
	ClosePeer(p peer.ID) error
	Notify(n swarm.Notifiee)
	ListenAddresses() []ma.Multiaddr
	Protocols() []string
	Emit(ev swarm.Event) bool
}

// Config 三个子协议的配置
type Config struct {
	Gossipsub gossipsub.Config
	Ping      ping.Config
	Identify  identify.Config
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Gossipsub: gossipsub.DefaultConfig(),
		Ping:      ping.DefaultConfig(),
		Identify:  identify.DefaultConfig(),
	}
}

// Option 组合体选项
type Option func(*Behaviour)

// WithOutput 设置观察者输出，默认 os.Stdout
func WithOutput(w io.Writer) Option {
	return func(b *Behaviour) {
		b.out = w
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(b *Behaviour) {
		b.metrics = rec
	}
}

// Behaviour 协议组合体
type Behaviour struct {
	host    Host
	out     io.Writer
	metrics *metrics.Recorder

	gossip   *gossipsub.Router
	ping     *ping.Service
	identify *identify.Service
}

// New 创建组合体
//
// 子协议的事件经 host.Emit 进入 swarm 事件流。
func New(host Host, pubKey crypto.PubKey, cfg Config, opts ...Option) (*Behaviour, error) {
	b := &Behaviour{host: host, out: os.Stdout}
	for _, opt := range opts {
		opt(b)
	}

	gossip, err := gossipsub.New(host, host.LocalPeer(), cfg.Gossipsub, func(ev gossipsub.Event) {
		b.host.Emit(Event{Kind: KindGossip, Gossip: &ev})
	}, gossipsub.WithMetrics(b.metrics))
	if err != nil {
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}
	b.gossip = gossip

	b.ping = ping.New(host, cfg.Ping, func(ev ping.Event) {
		b.host.Emit(Event{Kind: KindPing, Ping: &ev})
	})
	b.identify = identify.New(host, pubKey, cfg.Identify, func(ev identify.Event) {
		b.host.Emit(Event{Kind: KindIdentify, Identify: &ev})
	})
	return b, nil
}

// Start 注册三个子协议
func (b *Behaviour) Start() {
	b.gossip.Start()
	b.ping.Start()
	b.identify.Start()
}

// Close 停止三个子协议
func (b *Behaviour) Close() error {
	return multierr.Combine(
		b.identify.Close(),
		b.ping.Close(),
		b.gossip.Close(),
	)
}

// Gossipsub 返回 gossipsub 路由器
func (b *Behaviour) Gossipsub() *gossipsub.Router {
	return b.gossip
}

// ============================================================================
//                              操作
// ============================================================================

// Subscribe 订阅主题，新订阅返回 true
func (b *Behaviour) Subscribe(topic string) bool {
	return b.gossip.Subscribe(topic)
}

// Publish 发布消息，失败只记录日志
func (b *Behaviour) Publish(topic string, data []byte) {
	if err := b.gossip.Publish(context.Background(), topic, data); err != nil {
		log.Info("发布消息失败", "topic", topic, "error", err)
	}
}

// ============================================================================
//                              事件处理
// ============================================================================

// Handle 按事件类型输出到观察者
func (b *Behaviour) Handle(ev Event) {
	switch ev.Kind {
	case KindGossip:
		if ev.Gossip != nil {
			b.handleGossip(ev.Gossip)
		}
	case KindPing:
		if ev.Ping != nil {
			b.handlePing(ev.Ping)
		}
	case KindIdentify:
		if ev.Identify != nil {
			fmt.Fprintf(b.out, "identify: %s\n", ev.Identify)
		}
	}
}

func (b *Behaviour) handleGossip(ev *gossipsub.Event) {
	if ev.Kind != gossipsub.KindMessage {
		return
	}
	fmt.Fprintf(b.out, "Got message: %s with id: %s from peer: %s\n",
		strings.ToValidUTF8(string(ev.Message.Data), "\uFFFD"), ev.ID, ev.PropagationSource)
}

func (b *Behaviour) handlePing(ev *ping.Event) {
	switch ev.Kind {
	case ping.KindPing:
		b.metrics.PingRTT(ev.RTT)
		log.Debug("ping 成功", "peer", ev.Peer, "rtt", ev.RTT)
	case ping.KindPong:
		fmt.Fprintf(b.out, "ping: pong from %s\n", ev.Peer)
	case ping.KindTimeout:
		b.metrics.PingFailed("timeout")
		fmt.Fprintf(b.out, "ping: timeout to %s\n", ev.Peer)
	case ping.KindFailure:
		b.metrics.PingFailed("failure")
		fmt.Fprintf(b.out, "ping: failure with %s: %v\n", ev.Peer, ev.Err)
	}
}
