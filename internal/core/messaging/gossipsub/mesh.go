package gossipsub

import (
	"math/rand"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ============================================================================
//                              Mesh 维护
// ============================================================================
//
// 以下方法均要求调用方持有 r.mu。

// selectPeers 从订阅了 topic 的已连接节点中随机选出至多 n 个，跳过 exclude
func (r *Router) selectPeers(topic string, n int, exclude map[peer.ID]struct{}) []peer.ID {
	if n <= 0 {
		return nil
	}
	var candidates []peer.ID
	for p := range r.topics[topic] {
		if _, ok := r.peers[p]; !ok {
			continue
		}
		if _, skip := exclude[p]; skip {
			continue
		}
		candidates = append(candidates, p)
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// publishPeers 返回自己发布消息时的目标节点
func (r *Router) publishPeers(topic string) []peer.ID {
	if r.cfg.FloodPublish {
		return r.selectPeers(topic, len(r.topics[topic]), nil)
	}

	if mesh, ok := r.mesh[topic]; ok {
		peers := keys(mesh)
		// mesh 尚未填满时用其它订阅者补足
		return append(peers, r.selectPeers(topic, r.cfg.D-len(mesh), mesh)...)
	}

	fan := r.fanout[topic]
	if fan == nil {
		fan = make(map[peer.ID]struct{})
	}
	for _, p := range r.selectPeers(topic, r.cfg.D-len(fan), fan) {
		fan[p] = struct{}{}
	}
	if len(fan) > 0 {
		r.fanout[topic] = fan
		r.lastPub[topic] = r.clock.Now()
	}
	return keys(fan)
}

// controlBatch 按节点聚合一次心跳产生的控制消息
type controlBatch map[peer.ID]*ControlMessage

func (b controlBatch) get(p peer.ID) *ControlMessage {
	c, ok := b[p]
	if !ok {
		c = &ControlMessage{}
		b[p] = c
	}
	return c
}

// maintainMesh 把 topic 的 mesh 度数调整到 [Dlo, Dhi] 内
func (r *Router) maintainMesh(topic string, mesh map[peer.ID]struct{}, batch controlBatch) {
	// 已取消订阅或断开的节点
	for p := range mesh {
		_, subscribed := r.topics[topic][p]
		_, connected := r.peers[p]
		if !subscribed || !connected {
			delete(mesh, p)
		}
	}

	if len(mesh) < r.cfg.Dlo {
		for _, p := range r.selectPeers(topic, r.cfg.D-len(mesh), mesh) {
			mesh[p] = struct{}{}
			c := batch.get(p)
			c.Graft = append(c.Graft, ControlGraft{Topic: topic})
		}
	}

	if len(mesh) > r.cfg.Dhi {
		peers := keys(mesh)
		rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
		for _, p := range peers[r.cfg.D:] {
			delete(mesh, p)
			c := batch.get(p)
			c.Prune = append(c.Prune, ControlPrune{Topic: topic})
		}
	}
}

// maintainFanout 清理过期 fanout 并补足度数，返回 topic 是否仍保留
func (r *Router) maintainFanout(topic string, fan map[peer.ID]struct{}) bool {
	if r.clock.Since(r.lastPub[topic]) > r.cfg.FanoutTTL {
		delete(r.fanout, topic)
		delete(r.lastPub, topic)
		return false
	}

	for p := range fan {
		if _, ok := r.topics[topic][p]; !ok {
			delete(fan, p)
		}
	}
	for _, p := range r.selectPeers(topic, r.cfg.D-len(fan), fan) {
		fan[p] = struct{}{}
	}
	return true
}

// emitGossip 向 mesh/fanout 之外的 Dlazy 个订阅者宣告缓存中的消息
func (r *Router) emitGossip(topic string, exclude map[peer.ID]struct{}, batch controlBatch) {
	ids := r.mcache.GossipIDs(topic)
	if len(ids) == 0 {
		return
	}
	for _, p := range r.selectPeers(topic, r.cfg.Dlazy, exclude) {
		c := batch.get(p)
		c.IHave = append(c.IHave, ControlIHave{Topic: topic, MessageIDs: ids})
	}
}
