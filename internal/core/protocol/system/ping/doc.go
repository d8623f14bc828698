// Package ping 实现存活检测协议
//
// ping 协议用于检测节点是否存活，测量往返延迟（RTT）。
//
// # 协议 ID
//
//	/ipfs/ping/1.0.0
//
// # 消息格式
//
// 请求和响应都是 32 字节的随机数据，响应必须与请求相同。
// 同一条流上可以连续探测。
//
// # 行为
//
// 每个已连接节点有一个探测循环：每隔 Interval 发送一次探测，
// Timeout 内未收到回显记为超时。连续失败 MaxFailures 次后关闭
// 与该节点的连接（MaxFailures 为 0 时从不关闭）。
// 入站流逐个回显探测，每次回显产生一个 Pong 事件。
//
// # 使用示例
//
//	svc := ping.New(swarm, ping.DefaultConfig(), func(ev ping.Event) {
//	    fmt.Println(ev)
//	})
//	svc.Start()
//	defer svc.Close()
package ping

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("protocol/ping")
