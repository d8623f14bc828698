package gossipsub

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pchat/internal/core/identity"
	"github.com/dep2p/go-p2pchat/internal/core/pnet"
	"github.com/dep2p/go-p2pchat/internal/core/swarm"
	"github.com/dep2p/go-p2pchat/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pchat/internal/core/upgrader"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type node struct {
	id     peer.ID
	swarm  *swarm.Swarm
	router *Router
	events chan Event
}

func newNode(t *testing.T) *node {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	up, err := upgrader.New(id, pnet.Key{}, upgrader.DefaultConfig())
	require.NoError(t, err)
	tr := tcp.NewTransport(tcp.DefaultConfig())
	t.Cleanup(func() { tr.Close() })

	s, err := swarm.New(id.ID(), up, tr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0")))

	n := &node{id: id.ID(), swarm: s, events: make(chan Event, 64)}
	n.router, err = New(s, id.ID(), DefaultConfig(), func(ev Event) {
		select {
		case n.events <- ev:
		default:
		}
	})
	require.NoError(t, err)
	n.router.Start()
	t.Cleanup(func() { n.router.Close() })
	return n
}

func connect(t *testing.T, a, b *node) {
	t.Helper()
	_, err := a.swarm.Dial(context.Background(), b.swarm.Listeners()[0])
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return hasPeer(a.router, b.id) && hasPeer(b.router, a.id)
	}, 5*time.Second, 10*time.Millisecond)
}

func hasPeer(r *Router, p peer.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[p]
	return ok
}

// waitTopicPeers 等待 n 得知 peers 都订阅了 topic
func waitTopicPeers(t *testing.T, n *node, topic string, peers ...peer.ID) {
	t.Helper()
	require.Eventually(t, func() bool {
		known := n.router.TopicPeers(topic)
		for _, p := range peers {
			if !containsPeer(known, p) {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func waitMessage(t *testing.T, n *node) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-n.events:
			if ev.Kind == KindMessage {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for message")
			return Event{}
		}
	}
}

// countMessages 统计 d 时间内收到的消息事件数
func countMessages(n *node, d time.Duration) int {
	count := 0
	timeout := time.After(d)
	for {
		select {
		case ev := <-n.events:
			if ev.Kind == KindMessage {
				count++
			}
		case <-timeout:
			return count
		}
	}
}

func containsPeer(peers []peer.ID, p peer.ID) bool {
	for _, q := range peers {
		if q == p {
			return true
		}
	}
	return false
}

func randomPeer(t *testing.T) peer.ID {
	t.Helper()
	_, pub, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	id, err := peer.IDFromPublicKey(pub)
	require.NoError(t, err)
	return id
}

// newUnitRouter 创建不接入网络的路由器，用于测试内部状态
func newUnitRouter(t *testing.T, cfg Config) *Router {
	t.Helper()
	r, err := New(nil, randomPeer(t), cfg, nil)
	require.NoError(t, err)
	return r
}

// attachPeer 注册一个已连接且订阅了 topics 的对端，返回其发送队列
func attachPeer(r *Router, p peer.ID, topics ...string) chan *RPC {
	out := make(chan *RPC, outboundQueueSize)
	r.peers[p] = &peerState{out: out, cancel: func() {}}
	for _, topic := range topics {
		if r.topics[topic] == nil {
			r.topics[topic] = make(map[peer.ID]struct{})
		}
		r.topics[topic][p] = struct{}{}
	}
	return out
}

func drain(out chan *RPC) []*RPC {
	var rpcs []*RPC
	for {
		select {
		case rpc := <-out:
			rpcs = append(rpcs, rpc)
		default:
			return rpcs
		}
	}
}

// ============================================================================
//                              订阅
// ============================================================================

func TestRouter_SubscribeTwice(t *testing.T) {
	r := newUnitRouter(t, DefaultConfig())

	assert.True(t, r.Subscribe("chat"))
	assert.False(t, r.Subscribe("chat"))
	assert.Equal(t, []string{"chat"}, r.Topics())

	assert.True(t, r.Unsubscribe("chat"))
	assert.False(t, r.Unsubscribe("chat"))
	assert.Empty(t, r.Topics())

	assert.False(t, r.Subscribe(""))
}

func TestRouter_SubscribeAnnouncesAndGrafts(t *testing.T) {
	r := newUnitRouter(t, DefaultConfig())
	p := randomPeer(t)
	out := attachPeer(r, p, "chat")

	require.True(t, r.Subscribe("chat"))

	rpcs := drain(out)
	require.Len(t, rpcs, 1)
	assert.Equal(t, []SubOpts{{Subscribe: true, Topic: "chat"}}, rpcs[0].Subscriptions)
	require.NotNil(t, rpcs[0].Control)
	assert.Equal(t, []ControlGraft{{Topic: "chat"}}, rpcs[0].Control.Graft)
	assert.Equal(t, []peer.ID{p}, r.MeshPeers("chat"))

	require.True(t, r.Unsubscribe("chat"))
	rpcs = drain(out)
	require.Len(t, rpcs, 1)
	assert.Equal(t, []ControlPrune{{Topic: "chat"}}, rpcs[0].Control.Prune)
}

func TestRouter_SubscriptionEvents(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	connect(t, a, b)

	require.True(t, b.router.Subscribe("chat"))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-a.events:
			if ev.Kind != KindSubscribed {
				continue
			}
			assert.Equal(t, b.id, ev.Peer)
			assert.Equal(t, "chat", ev.Topic)
		case <-timeout:
			t.Fatal("timed out waiting for subscription")
		}
		break
	}

	require.True(t, b.router.Unsubscribe("chat"))
	timeout = time.After(5 * time.Second)
	for {
		select {
		case ev := <-a.events:
			if ev.Kind != KindUnsubscribed {
				continue
			}
			assert.Equal(t, b.id, ev.Peer)
		case <-timeout:
			t.Fatal("timed out waiting for unsubscription")
		}
		break
	}
}

// ============================================================================
//                              发布
// ============================================================================

func TestRouter_PublishDelivers(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	connect(t, a, b)

	require.True(t, a.router.Subscribe("chat"))
	require.True(t, b.router.Subscribe("chat"))
	waitTopicPeers(t, a, "chat", b.id)

	require.NoError(t, a.router.Publish(context.Background(), "chat", []byte("hello")))

	ev := waitMessage(t, b)
	assert.Equal(t, a.id, ev.PropagationSource)
	assert.Equal(t, []byte("hello"), ev.Message.Data)
	assert.Equal(t, a.id, ev.Message.From)
	assert.Equal(t, "chat", ev.Message.Topic)
	assert.Equal(t, ev.Message.ID(), ev.ID)

	// 发布者自己不收到
	assert.Zero(t, countMessages(a, 200*time.Millisecond))
}

func TestRouter_NoDuplicateDelivery(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	c := newNode(t)
	connect(t, a, b)
	connect(t, a, c)
	connect(t, b, c)

	for _, n := range []*node{a, b, c} {
		require.True(t, n.router.Subscribe("chat"))
	}
	waitTopicPeers(t, a, "chat", b.id, c.id)
	waitTopicPeers(t, b, "chat", a.id, c.id)
	waitTopicPeers(t, c, "chat", a.id, b.id)

	require.NoError(t, a.router.Publish(context.Background(), "chat", []byte("once")))

	waitMessage(t, b)
	waitMessage(t, c)
	assert.Zero(t, countMessages(b, 300*time.Millisecond))
	assert.Zero(t, countMessages(c, 300*time.Millisecond))
}

func TestRouter_PublishWithoutSubscribe(t *testing.T) {
	a := newNode(t)
	b := newNode(t)
	connect(t, a, b)

	require.True(t, b.router.Subscribe("chat"))
	waitTopicPeers(t, a, "chat", b.id)

	// 未订阅的发布走 fanout
	require.NoError(t, a.router.Publish(context.Background(), "chat", []byte("fanout")))
	ev := waitMessage(t, b)
	assert.Equal(t, []byte("fanout"), ev.Message.Data)
	assert.Zero(t, countMessages(a, 200*time.Millisecond))
}

func TestRouter_PublishErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTransmitSize = 200
	r := newUnitRouter(t, cfg)

	err := r.Publish(context.Background(), "chat", []byte("nobody listens"))
	assert.ErrorIs(t, err, ErrInsufficientPeers)

	err = r.Publish(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyTopic)

	err = r.Publish(context.Background(), "chat", make([]byte, 256))
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Publish(ctx, "chat", []byte("x")), context.Canceled)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Publish(context.Background(), "chat", []byte("x")), ErrRouterClosed)
}

func TestRouter_HandleMessage(t *testing.T) {
	r := newUnitRouter(t, DefaultConfig())
	events := make(chan Event, 8)
	r.emit = func(ev Event) { events <- ev }

	src := randomPeer(t)
	relay := randomPeer(t)
	other := randomPeer(t)
	attachPeer(r, relay, "chat")
	otherOut := attachPeer(r, other, "chat")
	require.True(t, r.Subscribe("chat"))
	drain(otherOut)

	msg := &Message{From: src, Data: []byte("hi"), Seqno: 7, Topic: "chat"}
	r.handleRPC(relay, &RPC{Publish: []*Message{msg}})
	r.handleRPC(other, &RPC{Publish: []*Message{msg}})

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, KindMessage, ev.Kind)
	assert.Equal(t, relay, ev.PropagationSource)
	assert.Equal(t, MessageID(src.String()+"7"), ev.ID)

	// 转发给 mesh 中除来源外的节点
	rpcs := drain(otherOut)
	require.Len(t, rpcs, 1)
	assert.Equal(t, msg, rpcs[0].Publish[0])
}

func TestRouter_HandleControl(t *testing.T) {
	r := newUnitRouter(t, DefaultConfig())
	p := randomPeer(t)
	out := attachPeer(r, p, "chat")
	require.True(t, r.Subscribe("chat"))
	drain(out)

	// 未订阅主题的 GRAFT 回 PRUNE
	r.handleRPC(p, &RPC{Control: &ControlMessage{Graft: []ControlGraft{{Topic: "other"}}}})
	rpcs := drain(out)
	require.Len(t, rpcs, 1)
	assert.Equal(t, []ControlPrune{{Topic: "other"}}, rpcs[0].Control.Prune)

	// PRUNE 移出 mesh，GRAFT 加回
	r.handleRPC(p, &RPC{Control: &ControlMessage{Prune: []ControlPrune{{Topic: "chat"}}}})
	assert.Empty(t, r.MeshPeers("chat"))
	r.handleRPC(p, &RPC{Control: &ControlMessage{Graft: []ControlGraft{{Topic: "chat"}}}})
	assert.Equal(t, []peer.ID{p}, r.MeshPeers("chat"))

	// IHAVE 中未见过的消息换成 IWANT
	r.handleRPC(p, &RPC{Control: &ControlMessage{IHave: []ControlIHave{{Topic: "chat", MessageIDs: []MessageID{"m1"}}}}})
	rpcs = drain(out)
	require.Len(t, rpcs, 1)
	assert.Equal(t, []ControlIWant{{MessageIDs: []MessageID{"m1"}}}, rpcs[0].Control.IWant)

	// IWANT 从缓存回应
	msg := &Message{From: r.local, Data: []byte("cached"), Seqno: 1, Topic: "chat"}
	r.mcache.Put(msg.ID(), msg)
	r.handleRPC(p, &RPC{Control: &ControlMessage{IWant: []ControlIWant{{MessageIDs: []MessageID{msg.ID()}}}}})
	rpcs = drain(out)
	require.Len(t, rpcs, 1)
	assert.Equal(t, []*Message{msg}, rpcs[0].Publish)
}

// ============================================================================
//                              心跳
// ============================================================================

func TestHeartbeat_FillsAndPrunesMesh(t *testing.T) {
	cfg := DefaultConfig()
	r := newUnitRouter(t, cfg)
	require.True(t, r.Subscribe("chat"))

	outs := make(map[peer.ID]chan *RPC)
	for i := 0; i < 20; i++ {
		p := randomPeer(t)
		outs[p] = attachPeer(r, p, "chat")
	}

	r.heartbeat()
	assert.Len(t, r.MeshPeers("chat"), cfg.D)
	grafts := 0
	for _, out := range outs {
		for _, rpc := range drain(out) {
			grafts += len(rpc.Control.Graft)
		}
	}
	assert.Equal(t, cfg.D, grafts)

	// 超过 Dhi 时裁剪到 D
	r.mu.Lock()
	for p := range outs {
		r.mesh["chat"][p] = struct{}{}
	}
	r.mu.Unlock()
	r.heartbeat()
	assert.Len(t, r.MeshPeers("chat"), cfg.D)
	prunes := 0
	for _, out := range outs {
		for _, rpc := range drain(out) {
			prunes += len(rpc.Control.Prune)
		}
	}
	assert.Equal(t, 20-cfg.D, prunes)
}

func TestHeartbeat_GossipAndFanoutExpiry(t *testing.T) {
	mock := clock.NewMock()
	cfg := DefaultConfig()
	cfg.Clock = mock
	r := newUnitRouter(t, cfg)

	p := randomPeer(t)
	out := attachPeer(r, p, "news")

	require.NoError(t, r.Publish(context.Background(), "news", []byte("x")))
	rpcs := drain(out)
	require.Len(t, rpcs, 1)
	require.Len(t, r.fanout["news"], 1)

	// fanout 成员同样不接收 IHAVE
	r.heartbeat()
	assert.Empty(t, drain(out))

	mock.Add(cfg.FanoutTTL + time.Second)
	r.heartbeat()
	assert.NotContains(t, r.fanout, "news")

	// 订阅主题中 mesh 之外的节点收到 IHAVE
	q := randomPeer(t)
	attachPeer(r, q, "chat")
	require.True(t, r.Subscribe("chat"))
	lazy := randomPeer(t)
	attachPeer(r, lazy, "chat")

	msg := &Message{From: p, Data: []byte("y"), Seqno: 1, Topic: "chat"}
	r.mcache.Put(msg.ID(), msg)

	r.mu.Lock()
	batch := make(controlBatch)
	r.emitGossip("chat", r.mesh["chat"], batch)
	r.mu.Unlock()
	assert.NotContains(t, batch, q)
	require.Contains(t, batch, lazy)
	assert.Equal(t, []ControlIHave{{Topic: "chat", MessageIDs: []MessageID{msg.ID()}}}, batch[lazy].IHave)
}

// ============================================================================
//                              缓存
// ============================================================================

func TestMessageCache(t *testing.T) {
	mc := newMessageCache(2, 3)
	m1 := &Message{Topic: "a", Seqno: 1}
	m2 := &Message{Topic: "b", Seqno: 2}

	mc.Put("m1", m1)
	mc.Put("m1", m1)
	mc.Put("m2", m2)
	assert.Equal(t, 2, mc.Len())
	assert.Equal(t, []MessageID{"m1"}, mc.GossipIDs("a"))

	mc.Shift()
	assert.Equal(t, []MessageID{"m1"}, mc.GossipIDs("a"))

	// 超出 gossip 窗口但仍在缓存中
	mc.Shift()
	assert.Empty(t, mc.GossipIDs("a"))
	got, ok := mc.Get("m1")
	require.True(t, ok)
	assert.Same(t, m1, got)

	mc.Shift()
	_, ok = mc.Get("m1")
	assert.False(t, ok)
	assert.Zero(t, mc.Len())
}

func TestSeenCache_TTL(t *testing.T) {
	mock := clock.NewMock()
	sc := newSeenCache(time.Minute, mock)

	assert.True(t, sc.Add("m"))
	assert.False(t, sc.Add("m"))
	assert.True(t, sc.Has("m"))

	mock.Add(time.Minute)
	assert.False(t, sc.Has("m"))
	assert.True(t, sc.Add("m"))
}

// ============================================================================
//                              编解码
// ============================================================================

func TestRPC_EncodeDecode(t *testing.T) {
	from := randomPeer(t)
	rpc := &RPC{
		Subscriptions: []SubOpts{{Subscribe: true, Topic: "chat"}, {Subscribe: false, Topic: "old"}},
		Publish:       []*Message{{From: from, Data: []byte("hello"), Seqno: 1<<40 + 5, Topic: "chat"}},
		Control: &ControlMessage{
			IHave: []ControlIHave{{Topic: "chat", MessageIDs: []MessageID{"a", "b"}}},
			IWant: []ControlIWant{{MessageIDs: []MessageID{"c"}}},
			Graft: []ControlGraft{{Topic: "chat"}},
			Prune: []ControlPrune{{Topic: "old"}},
		},
	}

	got, err := decodeRPC(encodeRPC(rpc))
	require.NoError(t, err)
	assert.Equal(t, rpc, got)
}

func TestDecodeRPC_UnknownAndMalformed(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 42, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = appendBytes(b, fieldRPCSubscriptions, appendString(nil, fieldSubTopic, "t"))

	rpc, err := decodeRPC(b)
	require.NoError(t, err)
	assert.Equal(t, []SubOpts{{Topic: "t"}}, rpc.Subscriptions)

	_, err = decodeRPC([]byte{0x0a, 0x10})
	assert.ErrorIs(t, err, ErrMalformedRPC)

	bad := appendBytes(nil, fieldRPCPublish, appendBytes(nil, fieldMsgFrom, []byte("junk")))
	_, err = decodeRPC(bad)
	assert.ErrorIs(t, err, ErrMalformedRPC)
}

// ============================================================================
//                              其它
// ============================================================================

func TestEvent_String(t *testing.T) {
	p := randomPeer(t)
	ev := Event{Kind: KindSubscribed, Peer: p, Topic: "chat"}
	assert.Equal(t, "Subscribed { peer_id: "+p.String()+", topic: chat }", ev.String())

	msg := &Message{From: p, Data: []byte("hi"), Seqno: 3, Topic: "chat"}
	ev = Event{Kind: KindMessage, PropagationSource: p, ID: msg.ID(), Message: msg}
	assert.Contains(t, ev.String(), "message_id: "+p.String()+"3")
	assert.Contains(t, ev.String(), `data: "hi"`)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Dlo = 7
	assert.Error(t, cfg.Validate())

	_, err := New(nil, "", cfg, nil)
	assert.Error(t, err)

	c := ConfigFromUnified(nil)
	assert.Equal(t, 6, c.D)
	assert.Equal(t, 262144, c.MaxTransmitSize)
}
