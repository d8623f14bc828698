// Package behaviour 组合 gossipsub、ping 与 identify 三个子协议
//
// 子协议的事件统一包装为 Event，经 swarm 的事件流送达会话驱动，
// 再由 Handle 按固定格式输出给观察者。
package behaviour

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("app/behaviour")
