// Package swarm 实现连接群管理
//
// swarm 负责节点间的所有连接和流：监听、拨号、连接升级、入站流的
// 协议分发，并把网络事件合并为一条事件流供会话循环消费。
//
// # 核心功能
//
// 连接管理：
//   - 监听地址并接受入站连接，每个连接在独立 goroutine 中升级
//   - 按地址拨号（ConnectTimeout 内完成 TCP 与全部升级阶段）
//   - 连接关闭时自动移出连接池
//
// 流管理：
//   - SetStreamHandler 注册协议处理器
//   - 入站流经 multistream-select 分发到处理器
//   - NewStream 在已有连接上打开流并协商协议
//
// 事件：
//   - Dialing、ConnectionEstablished、ConnectionClosed、IncomingConnection、
//     IncomingConnectionError、OutgoingConnectionError、NewListenAddr、
//     ListenerClosed
//   - 子协议通过 Emit 注入自己的事件，会话循环只需读取 Events()
//   - 事件队列无界；Close 后，或最后一个监听器关闭且没有连接时，
//     事件流结束
//
// # 快速开始
//
//	s, err := swarm.New(id.ID(), up, tcp.NewTransport(tcp.DefaultConfig()))
//	defer s.Close()
//
//	s.SetStreamHandler(ping.ID, svc.HandleStream)
//	err = s.Listen(ma.StringCast("/ip4/0.0.0.0/tcp/0"))
//
//	for ev := range s.Events() {
//	    fmt.Println(ev)
//	}
package swarm

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("core/swarm")

// truncateID 安全截取 ID 用于日志显示
func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
