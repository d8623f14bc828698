// Package upgrader 实现连接升级器
//
// # 概述
//
// upgrader 负责将原始 TCP 连接升级为经过认证、多路复用的 P2P 连接。
//
// # 升级流程
//
//  1. 私有网络保护（仅在配置了 swarm key 时）
//     - 交换 24 字节 nonce，之后所有字节经 XSalsa20 加密
//
//  2. 安全协议协商（multistream-select）
//     - 客户端提议：/noise
//
//  3. Noise XX 握手
//     - 交换身份载荷并校验签名，得到对端 PeerID
//
//  4. 多路复用器协商（multistream-select）
//     - 客户端提议：/yamux/1.0.0
//
//  5. 多路复用设置
//     - 创建 yamux session
//
// 全部阶段共享一个超时（默认 20 秒），超时返回 ErrUpgradeTimeout。
//
// # 使用示例
//
//	up, err := upgrader.New(id, key, upgrader.DefaultConfig())
//	raw, _ := tcpTransport.Dial(ctx, addr)
//	conn, err := up.Upgrade(ctx, raw, upgrader.DirOutbound, "")
//	stream, _ := conn.OpenStream(ctx)
//
// # Fx 集成
//
//	fx.New(
//	    identity.Module(),
//	    pnet.Module(),
//	    upgrader.Module(),
//	)
package upgrader

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("core/upgrader")
