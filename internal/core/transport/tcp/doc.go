// Package tcp 实现 TCP 传输层
//
// 只负责原始字节流：拨号、监听、TCP_NODELAY 与 keep-alive。
// 私有网络、安全层与多路复用由 upgrader 在其上逐层叠加。
//
// # 地址格式
//
//	/ip4/1.2.3.4/tcp/4001
//	/ip6/::1/tcp/4001
//
// # 使用示例
//
//	t := tcp.NewTransport(tcp.DefaultConfig())
//	l, err := t.Listen(ma.StringCast("/ip4/0.0.0.0/tcp/0"))
//	c, err := t.Dial(ctx, ma.StringCast("/ip4/127.0.0.1/tcp/4001"))
package tcp

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("core/transport/tcp")
