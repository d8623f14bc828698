package p2pchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/app/behaviour"
	"github.com/dep2p/go-p2pchat/internal/app/session"
	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/util/addrutil"
)

const (
	// initializeTimeout 启动超时（Fx App Start）
	initializeTimeout = 30 * time.Second

	// stopTimeout 停止超时
	stopTimeout = 10 * time.Second
)

// Node 聊天节点
//
// Node 聚合身份、swarm 和协议组合体。创建后需要调用 Start 开始监听，
// 再调用 Run 进入会话事件循环。
type Node struct {
	mu      sync.Mutex
	started bool
	closed  bool

	config *config.Config
	listen []string
	out    io.Writer
	app    *fx.App

	// 由 fx 注入
	identity  *identity.Identity
	key       pnet.Key
	swarm     *swarm.Swarm
	behaviour *behaviour.Behaviour
	metrics   *metrics.Recorder
}

// New 创建节点（不启动）
//
// 身份在此时生成，swarm.key 在此时加载；密钥格式错误或无法确定
// 仓库目录时返回错误。
func New(opts ...Option) (*Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	listen := o.listenAddrs
	if len(listen) == 0 {
		listen = o.config.Transport.ListenAddrs
	}

	n := &Node{
		config: o.config,
		listen: listen,
		out:    o.output,
	}
	app, err := buildFxApp(o, n)
	if err != nil {
		return nil, err
	}
	n.app = app
	return n, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动所有组件并开始监听
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	initCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()
	if err := n.app.Start(initCtx); err != nil {
		log.Error("节点初始化失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	addrs := make([]ma.Multiaddr, 0, len(n.listen))
	for _, s := range n.listen {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return multierr.Append(fmt.Errorf("invalid listen address %q: %w", s, err), n.stopApp())
		}
		addrs = append(addrs, addr)
	}
	if err := n.swarm.Listen(addrs...); err != nil {
		log.Error("监听地址失败", "error", err)
		return multierr.Append(fmt.Errorf("listen failed: %w", err), n.stopApp())
	}

	n.started = true
	log.Info("节点已启动", "peer", n.identity.ID(), "addrs", n.swarm.ListenAddresses())
	return nil
}

// Close 停止节点
//
// 未启动的节点也可以关闭，重复关闭返回 nil。
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	if !n.started {
		// 启动失败时 swarm 已由 OnStop 关闭
		err := n.swarm.Close()
		if errors.Is(err, swarm.ErrSwarmClosed) {
			err = nil
		}
		return multierr.Combine(n.behaviour.Close(), err)
	}
	n.started = false
	return n.stopApp()
}

func (n *Node) stopApp() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := n.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}
	return nil
}

func (n *Node) checkStarted() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	if !n.started {
		return ErrNotStarted
	}
	return nil
}

// ============================================================================
//                              访问器
// ============================================================================

// ID 返回本地节点 ID
func (n *Node) ID() peer.ID {
	return n.identity.ID()
}

// Identity 返回节点身份
func (n *Node) Identity() *identity.Identity {
	return n.identity
}

// SwarmKey 返回私有网络密钥，未配置时 Enabled() 为 false
func (n *Node) SwarmKey() pnet.Key {
	return n.key
}

// Swarm 返回连接管理器
func (n *Node) Swarm() *swarm.Swarm {
	return n.swarm
}

// Behaviour 返回协议组合体
func (n *Node) Behaviour() *behaviour.Behaviour {
	return n.behaviour
}

// Metrics 返回节点私有的指标 Registry
func (n *Node) Metrics() *prometheus.Registry {
	return n.metrics.Registry()
}

// ListenAddrs 返回监听地址
func (n *Node) ListenAddrs() []ma.Multiaddr {
	return n.swarm.ListenAddresses()
}

// ============================================================================
//                              操作
// ============================================================================

// Subscribe 订阅主题，新订阅返回 true
func (n *Node) Subscribe(topic string) bool {
	return n.behaviour.Subscribe(topic)
}

// Publish 向主题发布消息，失败只记录日志
func (n *Node) Publish(topic string, data []byte) {
	n.behaviour.Publish(topic, data)
}

// Dial 规范化地址后异步拨号
//
// 地址末尾的 /p2p/<id> 会被移除，并向观察者输出一行说明。
// 拨号结果以 swarm 事件的形式出现在事件流中；只有地址无法解析时返回错误。
func (n *Node) Dial(text string) (ma.Multiaddr, error) {
	if err := n.checkStarted(); err != nil {
		return nil, err
	}
	addr, err := addrutil.NormalizeTo(n.out, text)
	if err != nil {
		return nil, err
	}
	n.swarm.DialAsync(addr)
	return addr, nil
}

// Run 运行会话事件循环
//
// 返回 session.ErrStdinClosed 表示输入结束；返回 nil 表示网络事件流已关闭。
func (n *Node) Run(ctx context.Context, opts ...session.Option) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	opts = append([]session.Option{session.WithOutput(n.out)}, opts...)
	err := session.New(n.swarm, n.behaviour, opts...).Run(ctx)
	if err != nil && !errors.Is(err, session.ErrStdinClosed) {
		log.Debug("会话结束", "error", err)
	}
	return err
}
