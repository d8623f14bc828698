// Package p2pchat 提供最小的点对点聊天节点
//
// 节点使用随机 ed25519 身份，通过 TCP 建立连接并依次升级：
// 可选的私有网络握手（swarm.key）、Noise 安全握手、yamux 多路复用。
// 每条连接上运行三个子协议：
//
//   - gossipsub (/meshsub/1.0.0): 按主题广播聊天消息
//   - ping (/ipfs/ping/1.0.0): 存活探测
//   - identify (/ipfs/id/1.0.0): 交换身份与监听地址
//
// # 快速开始
//
//	node, err := p2pchat.New(p2pchat.WithListenAddrs("/ip4/0.0.0.0/tcp/0"))
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	node.Subscribe("chat")
//
//	// 读取标准输入的 SUB / PUB 命令并输出网络事件
//	err = node.Run(ctx)
//
// 组件由 go.uber.org/fx 组装，模块清单见 internal/app。
package p2pchat

import "github.com/dep2p/go-p2pchat/internal/util/logger"

var log = logger.Logger("node")
