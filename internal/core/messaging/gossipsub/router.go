package gossipsub

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/yamux"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/util/msgio"
)

// outboundQueueSize 每个对端的待发送 RPC 上限，超出即丢弃
const outboundQueueSize = 128

// Host GossipSub 依赖的网络能力
type Host interface {
	SetStreamHandler(protocol string, handler swarm.StreamHandler)
	NewStream(ctx context.Context, p peer.ID, protocols ...string) (*swarm.Stream, error)
	ConnsToPeer(p peer.ID) []*swarm.Conn
	Notify(n swarm.Notifiee)
}

// Option 路由器选项
type Option func(*Router)

// WithMetrics 设置指标记录器
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Router) {
		r.metrics = rec
	}
}

// Router GossipSub 路由器
type Router struct {
	host    Host
	local   peer.ID
	cfg     Config
	clock   clock.Clock
	emit    func(Event)
	metrics *metrics.Recorder

	mu sync.Mutex

	// peers 已建立发送队列的对端
	peers map[peer.ID]*peerState

	// topics 对端宣告的订阅
	topics map[string]map[peer.ID]struct{}

	// mesh 本地订阅主题的 mesh，键存在即表示本地已订阅
	mesh map[string]map[peer.ID]struct{}

	// fanout 未订阅但发布过的主题
	fanout  map[string]map[peer.ID]struct{}
	lastPub map[string]time.Time

	mcache *messageCache
	seen   *seenCache
	seqno  uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// peerState 单个对端的发送状态
type peerState struct {
	out    chan *RPC
	cancel context.CancelFunc
}

// New 创建路由器
//
// emit 接收本路由器产生的全部事件，可以为 nil。
func New(host Host, local peer.ID, cfg Config, emit func(Event), opts ...Option) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if emit == nil {
		emit = func(Event) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		host:    host,
		local:   local,
		cfg:     cfg,
		clock:   cfg.Clock,
		emit:    emit,
		peers:   make(map[peer.ID]*peerState),
		topics:  make(map[string]map[peer.ID]struct{}),
		mesh:    make(map[string]map[peer.ID]struct{}),
		fanout:  make(map[string]map[peer.ID]struct{}),
		lastPub: make(map[string]time.Time),
		mcache:  newMessageCache(cfg.HistoryGossip, cfg.HistoryLength),
		seen:    newSeenCache(cfg.SeenTTL, cfg.Clock),
		seqno:   uint64(cfg.Clock.Now().UnixNano()),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 注册协议处理器、订阅连接事件并启动心跳
func (r *Router) Start() {
	r.host.SetStreamHandler(ProtocolID, r.HandleStream)
	r.host.Notify(&swarm.NotifyBundle{
		ConnectedF:    func(c *swarm.Conn) { r.addPeer(c.RemotePeer()) },
		DisconnectedF: func(c *swarm.Conn) { r.peerDisconnected(c.RemotePeer()) },
	})

	r.wg.Add(1)
	go r.heartbeatLoop()

	log.Info("gossipsub 路由器已启动", "protocol", ProtocolID)
}

// Close 停止心跳和所有发送协程
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.peers = make(map[peer.ID]*peerState)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	log.Info("gossipsub 路由器已停止")
	return nil
}

// ============================================================================
//                              订阅与发布
// ============================================================================

// Subscribe 订阅主题，新订阅返回 true，已订阅返回 false
func (r *Router) Subscribe(topic string) bool {
	if topic == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.mesh[topic]; ok {
		return false
	}

	// fanout 中的节点优先进入 mesh
	mesh := make(map[peer.ID]struct{})
	for p := range r.fanout[topic] {
		if len(mesh) < r.cfg.D {
			mesh[p] = struct{}{}
		}
	}
	delete(r.fanout, topic)
	delete(r.lastPub, topic)
	for _, p := range r.selectPeers(topic, r.cfg.D-len(mesh), mesh) {
		mesh[p] = struct{}{}
	}
	r.mesh[topic] = mesh

	sub := []SubOpts{{Subscribe: true, Topic: topic}}
	for p := range r.peers {
		rpc := &RPC{Subscriptions: sub}
		if _, ok := mesh[p]; ok {
			rpc.Control = &ControlMessage{Graft: []ControlGraft{{Topic: topic}}}
		}
		r.enqueue(p, rpc)
	}

	log.Info("订阅主题", "topic", topic, "mesh", len(mesh))
	return true
}

// Unsubscribe 取消订阅，之前未订阅返回 false
func (r *Router) Unsubscribe(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	mesh, ok := r.mesh[topic]
	if !ok {
		return false
	}
	delete(r.mesh, topic)

	sub := []SubOpts{{Subscribe: false, Topic: topic}}
	for p := range r.peers {
		rpc := &RPC{Subscriptions: sub}
		if _, ok := mesh[p]; ok {
			rpc.Control = &ControlMessage{Prune: []ControlPrune{{Topic: topic}}}
		}
		r.enqueue(p, rpc)
	}

	log.Info("取消订阅主题", "topic", topic)
	return true
}

// Publish 向主题发布消息
//
// 本地不投递自己发布的消息。没有任何可发送的节点时返回 ErrInsufficientPeers。
func (r *Router) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrEmptyTopic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}

	r.seqno++
	msg := &Message{
		From:  r.local,
		Data:  append([]byte(nil), data...),
		Seqno: r.seqno,
		Topic: topic,
	}
	rpc := &RPC{Publish: []*Message{msg}}
	if size := len(encodeRPC(rpc)); size > r.cfg.MaxTransmitSize {
		r.metrics.MessageRejected("too_large")
		return ErrMessageTooLarge
	}

	peers := r.publishPeers(topic)
	if len(peers) == 0 {
		return ErrInsufficientPeers
	}

	id := msg.ID()
	r.seen.Add(id)
	r.mcache.Put(id, msg)
	for _, p := range peers {
		r.enqueue(p, rpc)
	}
	r.metrics.MessagePublished()

	log.Debug("消息已发布", "topic", topic, "id", id, "size", len(data), "peers", len(peers))
	return nil
}

// ============================================================================
//                              对端管理
// ============================================================================

func (r *Router) addPeer(p peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.peers[p]; ok {
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	ps := &peerState{out: make(chan *RPC, outboundQueueSize), cancel: cancel}
	r.peers[p] = ps

	// 首个 RPC 携带本地订阅快照
	if len(r.mesh) > 0 {
		hello := &RPC{}
		for topic := range r.mesh {
			hello.Subscriptions = append(hello.Subscriptions, SubOpts{Subscribe: true, Topic: topic})
		}
		ps.out <- hello
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.writeLoop(ctx, p, ps)
	}()
}

func (r *Router) peerDisconnected(p peer.ID) {
	if len(r.host.ConnsToPeer(p)) > 0 {
		return
	}
	r.removePeer(p, nil)
}

// removePeer 移除对端；ps 非空时只移除与之匹配的状态
func (r *Router) removePeer(p peer.ID, ps *peerState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.peers[p]
	if !ok || (ps != nil && cur != ps) {
		return
	}
	delete(r.peers, p)
	cur.cancel()

	for _, set := range r.topics {
		delete(set, p)
	}
	for _, set := range r.mesh {
		delete(set, p)
	}
	for _, set := range r.fanout {
		delete(set, p)
	}
}

// enqueue 把 RPC 放入对端发送队列，调用方持有锁
func (r *Router) enqueue(p peer.ID, rpc *RPC) {
	ps, ok := r.peers[p]
	if !ok {
		return
	}
	select {
	case ps.out <- rpc:
	default:
		log.Warn("发送队列已满，丢弃 RPC", "peer", p)
	}
}

// writeLoop 在一条长期出站流上顺序写出 RPC
func (r *Router) writeLoop(ctx context.Context, p peer.ID, ps *peerState) {
	var stream *swarm.Stream
	defer func() {
		if stream != nil {
			_ = stream.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rpc := <-ps.out:
			if stream == nil {
				s, err := r.host.NewStream(ctx, p, ProtocolID)
				if err != nil {
					log.Debug("打开 gossipsub 流失败", "peer", p, "error", err)
					r.removePeer(p, ps)
					return
				}
				stream = s
			}
			if err := writeRPC(stream, rpc); err != nil {
				log.Debug("写入 RPC 失败", "peer", p, "error", err)
				r.removePeer(p, ps)
				return
			}
		}
	}
}

// ============================================================================
//                              入站处理
// ============================================================================

// HandleStream 读取对端的入站流，直到流关闭
func (r *Router) HandleStream(stream *swarm.Stream) {
	defer stream.Close()

	from := stream.RemotePeer()
	rd := msgio.NewReader(stream)
	for {
		rpc, err := readRPC(rd, r.cfg.MaxTransmitSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, yamux.ErrStreamClosed) {
				log.Debug("读取 RPC 失败", "peer", from, "error", err)
			}
			return
		}
		r.handleRPC(from, rpc)
	}
}

func (r *Router) handleRPC(from peer.ID, rpc *RPC) {
	var events []Event

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for _, sub := range rpc.Subscriptions {
		events = r.handleSubscription(from, sub, events)
	}
	for _, msg := range rpc.Publish {
		events = r.handleMessage(from, msg, events)
	}
	if rpc.Control != nil {
		r.handleControl(from, rpc.Control)
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.emit(ev)
	}
}

func (r *Router) handleSubscription(from peer.ID, sub SubOpts, events []Event) []Event {
	if sub.Topic == "" {
		return events
	}

	set := r.topics[sub.Topic]
	if sub.Subscribe {
		if set == nil {
			set = make(map[peer.ID]struct{})
			r.topics[sub.Topic] = set
		}
		if _, ok := set[from]; ok {
			return events
		}
		set[from] = struct{}{}

		// mesh 不足时直接接纳新订阅者
		if mesh, ok := r.mesh[sub.Topic]; ok && len(mesh) < r.cfg.Dlo {
			if _, connected := r.peers[from]; connected {
				mesh[from] = struct{}{}
				r.enqueue(from, &RPC{Control: &ControlMessage{Graft: []ControlGraft{{Topic: sub.Topic}}}})
			}
		}
		return append(events, Event{Kind: KindSubscribed, Peer: from, Topic: sub.Topic})
	}

	if _, ok := set[from]; !ok {
		return events
	}
	delete(set, from)
	delete(r.mesh[sub.Topic], from)
	delete(r.fanout[sub.Topic], from)
	return append(events, Event{Kind: KindUnsubscribed, Peer: from, Topic: sub.Topic})
}

func (r *Router) handleMessage(from peer.ID, msg *Message, events []Event) []Event {
	if msg.Topic == "" || msg.From == "" {
		r.metrics.MessageRejected("invalid")
		return events
	}

	id := msg.ID()
	if !r.seen.Add(id) {
		r.metrics.MessageDuplicate()
		return events
	}

	mesh, subscribed := r.mesh[msg.Topic]
	if !subscribed {
		log.Debug("忽略未订阅主题的消息", "topic", msg.Topic, "from", from)
		return events
	}
	r.mcache.Put(id, msg)
	r.metrics.MessageDelivered()

	fwd := &RPC{Publish: []*Message{msg}}
	for p := range mesh {
		if p != from && p != msg.From {
			r.enqueue(p, fwd)
		}
	}

	return append(events, Event{
		Kind:              KindMessage,
		PropagationSource: from,
		ID:                id,
		Message:           msg,
	})
}

func (r *Router) handleControl(from peer.ID, ctrl *ControlMessage) {
	reply := &RPC{Control: &ControlMessage{}}

	var want []MessageID
	for _, ih := range ctrl.IHave {
		if _, ok := r.mesh[ih.Topic]; !ok {
			continue
		}
		for _, id := range ih.MessageIDs {
			if !r.seen.Has(id) {
				want = append(want, id)
			}
		}
	}
	if len(want) > 0 {
		reply.Control.IWant = []ControlIWant{{MessageIDs: want}}
	}

	for _, iw := range ctrl.IWant {
		for _, id := range iw.MessageIDs {
			if msg, ok := r.mcache.Get(id); ok {
				reply.Publish = append(reply.Publish, msg)
			}
		}
	}

	for _, g := range ctrl.Graft {
		mesh, ok := r.mesh[g.Topic]
		if !ok {
			reply.Control.Prune = append(reply.Control.Prune, ControlPrune{Topic: g.Topic})
			continue
		}
		mesh[from] = struct{}{}
	}

	for _, p := range ctrl.Prune {
		delete(r.mesh[p.Topic], from)
	}

	if len(reply.Publish) > 0 || !reply.Control.empty() {
		r.enqueue(from, reply)
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Topics 返回本地已订阅的主题
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, 0, len(r.mesh))
	for t := range r.mesh {
		topics = append(topics, t)
	}
	return topics
}

// MeshPeers 返回主题 mesh 中的节点
func (r *Router) MeshPeers(topic string) []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.mesh[topic])
}

// TopicPeers 返回宣告订阅了主题的节点
func (r *Router) TopicPeers(topic string) []peer.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.topics[topic])
}

func keys(set map[peer.ID]struct{}) []peer.ID {
	out := make([]peer.ID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
