// Package gossipsub 实现 GossipSub 发布订阅协议（/meshsub/1.0.0）
//
// 每个已订阅主题维护一个 mesh，消息在 mesh 内转发；未订阅主题的发布
// 走 fanout。心跳负责 mesh 度数维护、fanout 过期、IHAVE gossip 和消息
// 缓存窗口滑动。
//
// 已见消息缓存基于 golang-lru 的 expirable LRU，时间来自可注入的
// clock.Clock，测试中可用 mock 时钟推进。
package gossipsub

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("messaging/gossipsub")
