package gossipsub

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ============================================================================
//                              消息缓存
// ============================================================================

// messageCache 按心跳窗口缓存最近的消息
//
// 最新窗口位于 history[0]。Shift 丢弃最老窗口，gossip 只取前 gossip 个窗口。
// 调用方负责加锁。
type messageCache struct {
	msgs    map[MessageID]*Message
	history [][]cacheEntry
	gossip  int
}

type cacheEntry struct {
	id    MessageID
	topic string
}

func newMessageCache(gossip, length int) *messageCache {
	return &messageCache{
		msgs:    make(map[MessageID]*Message),
		history: make([][]cacheEntry, length),
		gossip:  gossip,
	}
}

// Put 缓存消息，重复 ID 忽略
func (mc *messageCache) Put(id MessageID, msg *Message) {
	if _, ok := mc.msgs[id]; ok {
		return
	}
	mc.msgs[id] = msg
	mc.history[0] = append(mc.history[0], cacheEntry{id: id, topic: msg.Topic})
}

// Get 按 ID 查找消息
func (mc *messageCache) Get(id MessageID) (*Message, bool) {
	m, ok := mc.msgs[id]
	return m, ok
}

// GossipIDs 返回 gossip 窗口内属于 topic 的消息 ID
func (mc *messageCache) GossipIDs(topic string) []MessageID {
	var ids []MessageID
	for _, window := range mc.history[:mc.gossip] {
		for _, e := range window {
			if e.topic == topic {
				ids = append(ids, e.id)
			}
		}
	}
	return ids
}

// Shift 滑动到新窗口
func (mc *messageCache) Shift() {
	last := mc.history[len(mc.history)-1]
	for _, e := range last {
		delete(mc.msgs, e.id)
	}
	copy(mc.history[1:], mc.history[:len(mc.history)-1])
	mc.history[0] = nil
}

// Len 返回缓存消息数
func (mc *messageCache) Len() int {
	return len(mc.msgs)
}

// ============================================================================
//                              已见消息缓存
// ============================================================================

// seenCacheSize 已见缓存容量上限
const seenCacheSize = 100000

// seenCache 已见消息去重
//
// 条目记录首次看到的时间，超过 ttl 视为未见。LRU 自身的过期
// 使用系统时间，只负责回收内存。
type seenCache struct {
	lru   *expirable.LRU[MessageID, time.Time]
	clock clock.Clock
	ttl   time.Duration
}

func newSeenCache(ttl time.Duration, clk clock.Clock) *seenCache {
	return &seenCache{
		lru:   expirable.NewLRU[MessageID, time.Time](seenCacheSize, nil, ttl),
		clock: clk,
		ttl:   ttl,
	}
}

// Add 记录消息，已见过时返回 false
func (sc *seenCache) Add(id MessageID) bool {
	now := sc.clock.Now()
	if at, ok := sc.lru.Get(id); ok && now.Sub(at) < sc.ttl {
		return false
	}
	sc.lru.Add(id, now)
	return true
}

// Has 检查消息是否已见
func (sc *seenCache) Has(id MessageID) bool {
	at, ok := sc.lru.Peek(id)
	return ok && sc.clock.Now().Sub(at) < sc.ttl
}
